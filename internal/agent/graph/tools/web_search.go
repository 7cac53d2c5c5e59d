package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	logx "github.com/bookshelf-agent/server/pkg/logger"
)

// ===================================
// Web Search Tool
// ===================================

const (
	defaultNumResults = 5
	maxNumResults     = 10
	placeholderCount  = 3
)

type WebSearchInput struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

type WebSearchOutput struct {
	Status
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []SearchResult `json:"organic"`
}

type webSearcher struct {
	apiKey string
	url    string
	client *http.Client
}

func (w *webSearcher) search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	if w.apiKey == "" {
		return placeholderResults(query, n), nil
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: n})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("X-API-KEY", w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logx.Warn().Int("status", resp.StatusCode).Str("body", string(snippet)).Msg("Web search returned non-OK status")
		return nil, fmt.Errorf("web search failed with status %d", resp.StatusCode)
	}

	var out serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	results := out.Organic
	if len(results) > n {
		results = results[:n]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// placeholderResults keeps the result shape stable when no search backend is configured.
func placeholderResults(query string, n int) []SearchResult {
	if n > placeholderCount {
		n = placeholderCount
	}
	out := make([]SearchResult, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, SearchResult{
			Title:   fmt.Sprintf("Search result %d for %s", i, query),
			Snippet: fmt.Sprintf("No search backend is configured; this is placeholder result %d for %q.", i, query),
			Link:    fmt.Sprintf("https://example.com/search?q=%s&result=%d", strings.ReplaceAll(query, " ", "+"), i),
		})
	}
	return out
}

func createWebSearchTool(cfg Config) tool.InvokableTool {
	searcher := &webSearcher{apiKey: cfg.SerperAPIKey, url: cfg.SerperURL, client: cfg.HTTPClient}
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolWebSearch,
			Desc: "Search the web and return the top results with title, snippet and link. Use it for facts that may have changed recently or that you do not know.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "Search keywords",
					Required: true,
				},
				"num_results": {
					Type: schema.Integer,
					Desc: "Number of results to return (default: 5, max: 10)",
				},
			}),
		},
		func(ctx context.Context, in *WebSearchInput) (*WebSearchOutput, error) {
			query := strings.TrimSpace(in.Query)
			if query == "" {
				return nil, fmt.Errorf("query is required")
			}
			n := in.NumResults
			if n <= 0 {
				n = defaultNumResults
			}
			n = clampInt(n, 1, maxNumResults)

			results, err := searcher.search(ctx, query, n)
			if err != nil {
				return nil, err
			}
			return &WebSearchOutput{Status: succeeded, Query: query, Results: results}, nil
		},
	)
}
