package tools

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/bookshelf-agent/server/internal/agent/graph/conversations"
	"github.com/bookshelf-agent/server/internal/agent/model"
	"github.com/bookshelf-agent/server/internal/catalog"
)

const (
	defaultSerperURL     = "https://google.serper.dev/search"
	defaultSearchTimeout = 10 * time.Second
)

// Config wires the general assistant tools to their environment.
type Config struct {
	// Fs is the sandbox the file tools operate in. Paths are relative to its root.
	Fs afero.Fs

	SerperAPIKey string
	SerperURL    string
	HTTPClient   *http.Client

	Now      func() time.Time
	Location *time.Location
}

// NewConfig builds a Config rooted at the configured working directory.
func NewConfig(cfg model.ToolsConfig) Config {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = "."
	}
	timeout := time.Duration(cfg.SearchTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultSearchTimeout
	}
	return Config{
		Fs:           sandboxFs(workDir),
		SerperAPIKey: cfg.SerperAPIKey,
		SerperURL:    cfg.SerperURL,
		HTTPClient:   &http.Client{Timeout: timeout},
	}
}

// sandboxFs roots the OS filesystem at dir. BasePathFs rejects every path under a
// relative base such as ".", so dir is made absolute first.
func sandboxFs(dir string) afero.Fs {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return afero.NewBasePathFs(afero.NewOsFs(), dir)
}

func (c Config) withDefaults() Config {
	if c.Fs == nil {
		c.Fs = sandboxFs(".")
	}
	if c.SerperURL == "" {
		c.SerperURL = defaultSerperURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: defaultSearchTimeout}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// BookDeps wires the book tools to the catalog and the session tracker.
type BookDeps struct {
	Store   *catalog.Store
	Tracker *conversations.Tracker
}
