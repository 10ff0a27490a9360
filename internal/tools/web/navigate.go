// internal/tools/web/navigate.go
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// NavigationMode selects how AllowDomains/DenyDomains are interpreted.
type NavigationMode string

const (
	ModeAllowlist NavigationMode = "allowlist"
	ModeDenylist  NavigationMode = "denylist"
)

// NavigationConfig is the tenant-scoped configuration for the navigate_web
// tool (part of the tenant's web-navigation tool-enable flags).
type NavigationConfig struct {
	Enabled      bool
	Mode         NavigationMode
	AllowDomains []string
	DenyDomains  []string
	MaxPages     int
	MaxDepth     int
	Timeout      time.Duration
	UserAgent    string
}

// PageResult is one crawled page.
type PageResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

const excerptCap = 4000

// Navigator crawls a restricted set of domains starting from a seed URL.
type Navigator struct{}

// NewNavigator constructs a Navigator.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// Crawl performs a breadth-first crawl from seed, honoring cfg's admission
// rules, depth/page limits, and per-request timeout. Returns {error:"disabled"}
// semantics are the caller's (navigateWebTool.Call) responsibility; Crawl
// itself assumes the tool is enabled.
func (n *Navigator) Crawl(ctx context.Context, seed string, cfg NavigationConfig) ([]PageResult, error) {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	maxDepth := cfg.MaxDepth
	if maxDepth < 0 {
		maxDepth = 0
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := []Option{WithTimeout(timeout), WithPreferReadable(false)}
	if cfg.UserAgent != "" {
		opts = append(opts, WithUserAgent(cfg.UserAgent))
	}
	fetcher := NewFetcher(opts...)

	type queued struct {
		url   string
		depth int
	}

	visited := map[string]bool{}
	var results []PageResult

	seedURL, err := normalizeURL(seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}
	if !admitted(seedURL, cfg) {
		return nil, fmt.Errorf("seed url not permitted by domain policy")
	}

	queue := []queued{{url: seedURL, depth: 0}}

	for len(queue) > 0 && len(results) < maxPages {
		// Process one BFS level at a time, bounded by remaining page budget.
		var level []queued
		for len(queue) > 0 {
			item := queue[0]
			queue = queue[1:]
			level = append(level, item)
		}

		type levelOut struct {
			page  *PageResult
			links []string
		}
		outs := make([]levelOut, len(level))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, item := range level {
			if visited[item.url] {
				continue
			}
			visited[item.url] = true
			i, item := i, item
			g.Go(func() error {
				page, links, ferr := fetchAndExtract(gctx, fetcher, item.url)
				if ferr != nil {
					return nil // skip unreachable pages; not fatal for the crawl
				}
				outs[i] = levelOut{page: page, links: links}
				return nil
			})
		}
		_ = g.Wait()

		for _, o := range outs {
			if o.page == nil {
				continue
			}
			results = append(results, *o.page)
			if len(results) >= maxPages {
				break
			}
		}

		if len(results) >= maxPages {
			break
		}

		nextDepth := level[0].depth + 1
		if nextDepth > maxDepth {
			continue
		}
		for _, o := range outs {
			for _, link := range o.links {
				norm, nerr := normalizeURL(link)
				if nerr != nil || visited[norm] {
					continue
				}
				if !admitted(norm, cfg) {
					continue
				}
				queue = append(queue, queued{url: norm, depth: nextDepth})
			}
		}
	}

	return results, nil
}

func fetchAndExtract(ctx context.Context, f *Fetcher, rawURL string) (*PageResult, []string, error) {
	body, err := f.fetchRawHTML(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	title := extractTitle(doc)
	stripHTMLNodes(doc)
	text := collapseWhitespace(renderText(doc))
	if len(text) > excerptCap {
		text = text[:excerptCap]
	}
	links := extractLinks(doc, rawURL)
	return &PageResult{URL: rawURL, Title: title, Excerpt: text}, links, nil
}

// admitted implements the §4.9 admission rule. Per §9's resolved open
// question: in allowlist mode the allow list applies and the deny list is
// ignored.
func admitted(rawURL string, cfg NavigationConfig) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	switch cfg.Mode {
	case ModeDenylist:
		return !domainOrParentIn(host, cfg.DenyDomains)
	default: // allowlist is the default per §4.9
		return domainOrParentIn(host, cfg.AllowDomains)
	}
}

func domainOrParentIn(host string, set []string) bool {
	for _, d := range set {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Fragment = ""
	return u.String(), nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// --- DOM helpers (golang.org/x/net/html) ---

func extractTitle(n *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if title != "" {
			return
		}
		if node.Type == html.ElementNode && node.Data == "title" && node.FirstChild != nil {
			title = strings.TrimSpace(node.FirstChild.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return title
}

func stripHTMLNodes(n *html.Node) {
	var remove []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			remove = append(remove, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, node := range remove {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

func renderText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func extractLinks(n *html.Node, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var links []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			for _, attr := range node.Attr {
				if attr.Key == "href" {
					if ref, rerr := baseURL.Parse(attr.Val); rerr == nil {
						links = append(links, ref.String())
					}
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return links
}

// --- tool wrapper (§4.1-style JSON tool contract) ---

type navigateWebTool struct {
	nav *Navigator
	cfg func() NavigationConfig
}

// NewNavigateWebTool constructs the navigate_web function tool described in
// §4.4 (tool wiring) and §4.9 (restricted crawl semantics). cfgFn is called
// on every invocation so tenant config changes take effect without
// rebuilding the registry.
func NewNavigateWebTool(cfgFn func() NavigationConfig) *navigateWebTool {
	return &navigateWebTool{nav: NewNavigator(), cfg: cfgFn}
}

func (t *navigateWebTool) Name() string { return "navigate_web" }

func (t *navigateWebTool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Navigate a restricted set of web pages starting from a URL and return page excerpts.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"url"},
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "description": "Absolute seed URL (http or https)."},
			},
		},
	}
}

func (t *navigateWebTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	cfg := t.cfg()
	if !cfg.Enabled {
		return map[string]any{"error": "disabled"}, nil
	}
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	pages, err := t.nav.Crawl(ctx, args.URL, cfg)
	if err != nil {
		return map[string]any{"ok": false, "error": err.Error()}, nil
	}
	return map[string]any{"ok": true, "pages": pages}, nil
}
