package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/spf13/afero"
)

// ===================================
// File Tools
// ===================================

const maxReadBytes = 1 << 20

type ReadFileInput struct {
	FilePath string `json:"file_path"`
}

type ReadFileOutput struct {
	Status
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type WriteFileInput struct {
	FilePath string `json:"file_path"`
	Content  string `json:"content"`
}

type WriteFileOutput struct {
	Status
	FilePath string `json:"file_path"`
	Message  string `json:"message"`
}

type ListFilesInput struct {
	Directory string `json:"directory,omitempty"`
}

type ListFilesOutput struct {
	Status
	Directory string   `json:"directory"`
	Files     []string `json:"files"`
}

var errOutsideWorkDir = errors.New("path escapes the working directory")

// scopedPath cleans p and rejects anything that would leave the sandbox root.
func scopedPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("file path is required")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("%s: %w", p, errOutsideWorkDir)
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, errOutsideWorkDir)
	}
	return clean, nil
}

func createReadFileTool(fs afero.Fs) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolReadFile,
			Desc: "Read a UTF-8 text file from the working directory.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"file_path": {
					Type:     schema.String,
					Desc:     "Path relative to the working directory",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *ReadFileInput) (*ReadFileOutput, error) {
			path, err := scopedPath(in.FilePath)
			if err != nil {
				return nil, err
			}
			info, err := fs.Stat(path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("file %s does not exist", in.FilePath)
				}
				return nil, fmt.Errorf("stat %s: %w", in.FilePath, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", in.FilePath)
			}
			if info.Size() > maxReadBytes {
				return nil, fmt.Errorf("%s is larger than %d bytes", in.FilePath, maxReadBytes)
			}
			content, err := afero.ReadFile(fs, path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", in.FilePath, err)
			}
			return &ReadFileOutput{Status: succeeded, FilePath: in.FilePath, Content: string(content)}, nil
		},
	)
}

func createWriteFileTool(fs afero.Fs) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWriteFile,
			Desc: "Write text to a file in the working directory, replacing any existing content. Parent directories are created as needed.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"file_path": {
					Type:     schema.String,
					Desc:     "Path relative to the working directory",
					Required: true,
				},
				"content": {
					Type:     schema.String,
					Desc:     "Text to write",
					Required: true,
				},
			}),
		},
		func(ctx context.Context, in *WriteFileInput) (*WriteFileOutput, error) {
			path, err := scopedPath(in.FilePath)
			if err != nil {
				return nil, err
			}
			if dir := filepath.Dir(path); dir != "." {
				if err := fs.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create directory for %s: %w", in.FilePath, err)
				}
			}
			if err := afero.WriteFile(fs, path, []byte(in.Content), 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", in.FilePath, err)
			}
			return &WriteFileOutput{
				Status:   succeeded,
				FilePath: in.FilePath,
				Message:  fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.FilePath),
			}, nil
		},
	)
}

func createListFilesTool(fs afero.Fs) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolListFiles,
			Desc: "List the entries of a directory inside the working directory. Directories end with a slash.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"directory": {
					Type: schema.String,
					Desc: "Directory relative to the working directory (default: .)",
				},
			}),
		},
		func(ctx context.Context, in *ListFilesInput) (*ListFilesOutput, error) {
			dir := in.Directory
			if strings.TrimSpace(dir) == "" {
				dir = "."
			}
			path, err := scopedPath(dir)
			if err != nil {
				return nil, err
			}
			entries, err := afero.ReadDir(fs, path)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return nil, fmt.Errorf("directory %s does not exist", dir)
				}
				return nil, fmt.Errorf("list %s: %w", dir, err)
			}
			files := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				files = append(files, name)
			}
			return &ListFilesOutput{Status: succeeded, Directory: dir, Files: files}, nil
		},
	)
}
