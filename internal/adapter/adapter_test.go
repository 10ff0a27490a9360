package adapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools"
)

// scriptedProvider replays one assistant message per ChatStream call, in
// order, so a test can exercise multi-step tool-call recursion.
type scriptedProvider struct {
	steps []llm.Message
	calls int
}

func (p *scriptedProvider) Chat(ctx context.Context, msgs []llm.Message, toolSchemas []llm.ToolSchema, model string) (llm.Message, error) {
	return llm.Message{}, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, msgs []llm.Message, toolSchemas []llm.ToolSchema, model string, h llm.StreamHandler) error {
	step := p.steps[p.calls]
	p.calls++
	if step.Content != "" {
		h.OnDelta(step.Content)
	}
	for _, tc := range step.ToolCalls {
		h.OnToolCall(tc)
	}
	if ur, ok := h.(llm.UsageReporter); ok {
		ur.OnUsage(llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15})
	}
	return nil
}

type echoTool struct{}

func (echoTool) Name() string { return "echo" }
func (echoTool) JSONSchema() map[string]any {
	return map[string]any{"name": "echo", "parameters": map[string]any{"type": "object"}}
}
func (echoTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	return map[string]any{"ok": true, "echo": string(raw)}, nil
}

func TestStreamNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{steps: []llm.Message{{Content: "hello world"}}}
	reg := tools.NewRegistry()
	a := &Adapter{Provider: provider, Registry: reg, Model: "test-model", MaxSteps: 4}

	var got Result
	var deltas []string
	a.Stream(context.Background(), "hi", nil, Callbacks{
		OnDelta:    func(d string) { deltas = append(deltas, d) },
		OnComplete: func(r Result) { got = r },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
	})

	if got.Text == "" {
		t.Fatalf("expected non-empty final text")
	}
	if len(deltas) != 1 || deltas[0] != "hello world" {
		t.Fatalf("unexpected deltas: %v", deltas)
	}
	if got.Usage.TotalTokens != 15 {
		t.Fatalf("expected usage to be captured, got %+v", got.Usage)
	}
	if provider.calls != 1 {
		t.Fatalf("expected exactly one ChatStream call, got %d", provider.calls)
	}
}

func TestStreamRecursesOnToolCall(t *testing.T) {
	provider := &scriptedProvider{steps: []llm.Message{
		{ToolCalls: []llm.ToolCall{{Name: "echo", Args: json.RawMessage(`{"x":1}`), ID: "call-1"}}},
		{Content: "final answer"},
	}}
	reg := tools.NewRegistry()
	reg.Register(echoTool{})
	a := &Adapter{Provider: provider, Registry: reg, Model: "test-model", MaxSteps: 4}

	var got Result
	a.Stream(context.Background(), "hi", nil, Callbacks{
		OnDelta:    func(string) {},
		OnComplete: func(r Result) { got = r },
		OnError:    func(err error) { t.Fatalf("unexpected error: %v", err) },
	})

	if got.Text != "final answer" {
		t.Fatalf("expected final answer after tool recursion, got %q", got.Text)
	}
	if provider.calls != 2 {
		t.Fatalf("expected two ChatStream calls (tool round-trip), got %d", provider.calls)
	}
}

func TestPolicyPrefixDisabledWhenNoToolsEnabled(t *testing.T) {
	a := &Adapter{}
	if p := a.PolicyPrefix(); p != "" {
		t.Fatalf("expected empty policy prefix, got %q", p)
	}
}

func TestPolicyPrefixEnumeratesAllowedDomains(t *testing.T) {
	a := &Adapter{
		WebSearchEnabled: true,
		AllowedDomains:   []string{"example.org", "law.example"},
		CitationEnforced: true,
	}
	p := a.PolicyPrefix()
	if p == "" {
		t.Fatalf("expected non-empty policy prefix")
	}
	if !contains(p, "example.org") || !contains(p, "law.example") {
		t.Fatalf("expected allowed domains in prefix, got %q", p)
	}
	if !contains(p, "attribution") {
		t.Fatalf("expected citation-enforcement clause in prefix, got %q", p)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
