// Package websearch implements the web_search function tool the Streaming
// LLM Adapter wires in whenever a tenant enables web search (§4.4), fronted
// by a SearXNG JSON endpoint. Grounded on the teacher's
// internal/tools/web/search.go, trimmed of its rate-limiter and
// user-agent-rotation machinery: those guard against a single shared
// SearXNG instance being hammered by one multi-tenant process, a concern
// out of scope for this spec's tool surface.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type tool struct {
	http       *http.Client
	searxngURL string
}

// New constructs the web_search tool against a SearXNG instance.
func New(searxngURL string) *tool {
	return &tool{
		http:       &http.Client{Timeout: 12 * time.Second},
		searxngURL: strings.TrimSuffix(searxngURL, "/"),
	}
}

func (t *tool) Name() string { return "web_search" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Search the web and return top result links with short snippets. Use for fact lookup and recent information.",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":       map[string]any{"type": "string", "description": "Search query"},
				"max_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 10, "default": 5},
			},
			"required": []string{"query"},
		},
	}
}

// Result is one search hit. Snippet feeds evidence reconstruction the same
// way a retrieval.Chunk does, when the tenant's citation policy requires it
// (§4.5, §4.6).
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	if args.MaxResults <= 0 || args.MaxResults > 10 {
		args.MaxResults = 5
	}
	q := strings.TrimSpace(args.Query)
	if q == "" {
		return map[string]any{"ok": false, "error": "empty query"}, nil
	}

	results, err := t.search(ctx, q, args.MaxResults)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "results": results}, nil
}

func (t *tool) search(ctx context.Context, query string, max int) ([]Result, error) {
	searchURL := fmt.Sprintf("%s/search", t.searxngURL)
	v := url.Values{}
	v.Set("q", query)
	v.Set("format", "json")
	v.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL+"?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "esqueleto-gateway/1.0")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("searxng http %d", resp.StatusCode)
	}

	var searxngResp struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searxngResp); err != nil {
		return nil, err
	}

	out := make([]Result, 0, max)
	for i, r := range searxngResp.Results {
		if i >= max {
			break
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Snippet: strings.TrimSpace(r.Content),
		})
	}
	return out, nil
}
