package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAdmittedAllowlist(t *testing.T) {
	cfg := NavigationConfig{Mode: ModeAllowlist, AllowDomains: []string{"example.com"}}
	if !admitted("https://www.example.com/a", cfg) {
		t.Fatalf("expected www.example.com to be admitted via parent domain")
	}
	if admitted("https://evil.com/a", cfg) {
		t.Fatalf("expected evil.com to be rejected")
	}
}

func TestAdmittedDenylist(t *testing.T) {
	cfg := NavigationConfig{Mode: ModeDenylist, DenyDomains: []string{"blocked.com"}}
	if admitted("https://blocked.com/x", cfg) {
		t.Fatalf("expected blocked.com to be rejected")
	}
	if !admitted("https://anything-else.com/x", cfg) {
		t.Fatalf("expected non-denied host to be admitted")
	}
}

func TestCrawlDisabledReturnsError(t *testing.T) {
	tool := NewNavigateWebTool(func() NavigationConfig { return NavigationConfig{Enabled: false} })
	out, err := tool.Call(context.Background(), []byte(`{"url":"https://example.com"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := out.(map[string]any)
	if m["error"] != "disabled" {
		t.Fatalf("expected disabled error, got %v", m)
	}
}

func TestCrawlSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Home</title><style>.x{color:red}</style></head>
			<body><script>alert(1)</script><p>Hello   world</p></body></html>`))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(strings.TrimPrefix(srv.URL, "http://"), "https://")
	host = strings.Split(host, ":")[0]

	nav := NewNavigator()
	pages, err := nav.Crawl(context.Background(), srv.URL, NavigationConfig{
		Enabled:      true,
		Mode:         ModeAllowlist,
		AllowDomains: []string{host},
		MaxPages:     1,
		MaxDepth:     0,
		Timeout:      5 * time.Second,
	})
	if err != nil {
		t.Fatalf("crawl failed: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Title != "Home" {
		t.Fatalf("expected title Home, got %q", pages[0].Title)
	}
	if strings.Contains(pages[0].Excerpt, "alert(1)") {
		t.Fatalf("expected script content stripped, got %q", pages[0].Excerpt)
	}
	if !strings.Contains(pages[0].Excerpt, "Hello world") {
		t.Fatalf("expected collapsed whitespace text, got %q", pages[0].Excerpt)
	}
}

func TestCrawlSeedNotAdmitted(t *testing.T) {
	nav := NewNavigator()
	_, err := nav.Crawl(context.Background(), "https://denied.example", NavigationConfig{
		Enabled:      true,
		Mode:         ModeAllowlist,
		AllowDomains: []string{"allowed.example"},
		MaxPages:     1,
	})
	if err == nil {
		t.Fatalf("expected seed admission error")
	}
}
