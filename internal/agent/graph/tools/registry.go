package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// GetGeneralTools returns the guarded tools of the general assistant.
func GetGeneralTools(cfg Config) []tool.BaseTool {
	cfg = cfg.withDefaults()
	return guardAll(
		createCalculatorTool(),
		createWebSearchTool(cfg),
		createReadFileTool(cfg.Fs),
		createWriteFileTool(cfg.Fs),
		createListFilesTool(cfg.Fs),
		createAnalyzeDataTool(),
		createCurrentTimeTool(cfg),
		createFormatTimeTool(cfg),
	)
}

// GetBookTools returns the guarded tools of the book agent.
func GetBookTools(deps BookDeps) ([]tool.BaseTool, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("book tools: catalog store is nil")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("book tools: session tracker is nil")
	}
	return guardAll(
		createSearchBooksTool(deps.Store),
		createBookDetailsTool(deps.Store),
		createRecommendByAuthorTool(deps.Store),
		createRecommendByGenreTool(deps.Store),
		createKnowledgeGraphTool(deps.Store),
		createUserPreferencesTool(deps.Tracker),
		createUpdatePreferencesTool(deps.Store, deps.Tracker),
		createReadingTrendsTool(),
		createSimilarBooksTool(deps.Store),
	), nil
}

// GetToolInfos collects the schema of every tool for binding to a chat model.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func guardAll(ts ...tool.InvokableTool) []tool.BaseTool {
	out := make([]tool.BaseTool, 0, len(ts))
	for _, t := range ts {
		out = append(out, Guard(t))
	}
	return out
}

// SanitizeArguments normalises model-produced arguments before a tool decodes them:
// strings are trimmed, numeric limits clamped, and arrays or objects that arrive
// JSON-encoded as strings are decoded. Arguments that are not a JSON object are
// returned unchanged.
func SanitizeArguments(name, arguments string) string {
	if strings.TrimSpace(arguments) == "" {
		return "{}"
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}

	for k, v := range m {
		if s, isString := v.(string); isString {
			m[k] = strings.TrimSpace(s)
		}
	}

	switch name {
	case ToolSearchBooks:
		clampField(m, "limit", 1, maxBookLimit)
	case ToolWebSearch:
		clampField(m, "num_results", 1, maxNumResults)
	case ToolRecommendByAuthor, ToolRecommendByGenre:
		decodeField(m, "exclude_books")
		if s, isString := m["exclude_books"].(string); isString {
			if s == "" {
				delete(m, "exclude_books")
			} else {
				m["exclude_books"] = splitList(s)
			}
		}
	case ToolRecommendByKnowledgeGraph, ToolGetSimilarBooks:
		decodeField(m, "book_info")
		if s, isString := m["book_info"].(string); isString {
			// a bare title
			m["book_info"] = map[string]any{"title": s}
		}
		if _, present := m["book_info"]; !present {
			if title, isString := m["title"].(string); isString {
				m["book_info"] = map[string]any{"title": title, "author": m["author"], "genre": m["genre"]}
			}
		}
		if info, isObject := m["book_info"].(map[string]any); isObject {
			for k, v := range info {
				switch vv := v.(type) {
				case string:
					info[k] = strings.TrimSpace(vv)
				case nil:
					delete(info, k)
				}
			}
		}
	case ToolAnalyzeReadingTrends:
		decodeField(m, "user_history")
	case ToolAnalyzeData:
		decodeField(m, "data")
	}

	b, err := json.Marshal(m)
	if err != nil {
		return arguments
	}
	return string(b)
}

// decodeField replaces a JSON-encoded string value with the structure it encodes.
func decodeField(m map[string]any, key string) {
	s, isString := m[key].(string)
	if !isString {
		return
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "{") {
		return
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		m[key] = decoded
	}
}

func clampField(m map[string]any, key string, min, max int) {
	v, present := m[key]
	if !present {
		return
	}
	switch vv := v.(type) {
	case float64:
		m[key] = clampInt(int(vv), min, max)
	case string:
		if n, err := strconv.Atoi(vv); err == nil {
			m[key] = clampInt(n, min, max)
		} else {
			delete(m, key)
		}
	default:
		delete(m, key)
	}
}

func splitList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '，' || r == '、' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
