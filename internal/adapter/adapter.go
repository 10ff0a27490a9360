// Package adapter implements the Streaming LLM Adapter (§4.4): it issues a
// single streaming call, wires the configured tools, consumes the provider
// event stream, forwards textual deltas to a callback, and returns a
// completion summary (final text, usage, evidence, URL-validation report).
//
// The spec describes the provider emitting discrete "delta" /
// "tool-call-required" / "retrieval-results" / "completed" / "error"
// events. This codebase's llm.StreamHandler contract only exposes
// OnDelta/OnToolCall/OnImage/OnThoughtSummary/OnThoughtSignature/OnUsage —
// there is no native retrieval-result or tool-call-required stream event.
// Tool-call recursion is therefore driven by the adapter's own step loop,
// grounded on the teacher's internal/agent/engine.go runStreamLoop /
// dispatchTools: each step streams once, accumulates any tool calls the
// handler observed, dispatches them, appends the results as tool messages,
// and loops until the assistant message carries no further tool calls.
// Evidence for the URL Validator is accumulated from retrieval_search tool
// dispatch results rather than from a native "retrieval-results" event.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/legitimus-pro/esqueleto-gateway/internal/llm"
	"github.com/legitimus-pro/esqueleto-gateway/internal/markdown"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tenant"
	"github.com/legitimus-pro/esqueleto-gateway/internal/tools"
	"github.com/legitimus-pro/esqueleto-gateway/internal/turnerr"
	"github.com/legitimus-pro/esqueleto-gateway/internal/urlvalidate"
)

// InformationalMarker is the prefix for short status deltas shown while a
// retrieval or web search is in flight (§4.4's "visible marker"). The
// adapter does not emit such deltas, and nothing references this constant.
const InformationalMarker = "• "

// Evidence is one retrieval-evidence chunk gathered from a retrieval_search
// tool dispatch, shaped for urlvalidate.Validate.
type Evidence struct {
	ID   string
	Body string
}

// Result is the on_complete payload (§4.4).
type Result struct {
	Text          string
	Usage         llm.Usage
	Evidence      []Evidence
	URLValidation *urlvalidate.Result
}

// Callbacks are the three hooks the contract names.
type Callbacks struct {
	OnDelta    func(delta string)
	OnComplete func(Result)
	OnError    func(error)
}

// Adapter issues one streaming turn call, including its tool-call
// recursion, against a Provider.
type Adapter struct {
	Provider llm.Provider
	Registry tools.Registry
	Model    string
	MaxSteps int

	// RetrievalEnabled / URLValidationEnabled / WebSearchEnabled mirror the
	// tenant's ToolsConfig flags (§4.4's deterministic tool-wiring rules).
	RetrievalEnabled     bool
	URLValidationEnabled bool
	WebSearchEnabled     bool

	// AllowedDomains / CitationEnforced feed the policy prefix.
	AllowedDomains   []string
	CitationEnforced bool
}

// New constructs an Adapter from a resolved tenant config and tool registry.
// The registry is expected to already carry the tenant's wired tools
// (retrieval_search, web_search, navigate_web, user-declared function
// tools); New only reads flags needed to build the policy prefix and to
// decide whether URL validation should run.
func New(provider llm.Provider, registry tools.Registry, cfg tenant.TenantConfig) *Adapter {
	maxSteps := 8
	return &Adapter{
		Provider:             provider,
		Registry:             registry,
		Model:                cfg.Model,
		MaxSteps:             maxSteps,
		RetrievalEnabled:     cfg.Tools.RetrievalEnabled,
		URLValidationEnabled: cfg.Tools.URLValidation,
		WebSearchEnabled:     cfg.Tools.WebSearchEnabled,
		AllowedDomains:       cfg.WebNavigation.AllowDomains,
		CitationEnforced:     cfg.Tools.CitationEnforced,
	}
}

// PolicyPrefix builds the directive prepended to the input when either
// web-search or retrieval is enabled (§4.4).
func (a *Adapter) PolicyPrefix() string {
	if !a.RetrievalEnabled && !a.WebSearchEnabled {
		return ""
	}
	var b strings.Builder
	b.WriteString("Source policy: ")
	if len(a.AllowedDomains) > 0 {
		b.WriteString("only cite sources from these domains: ")
		b.WriteString(strings.Join(a.AllowedDomains, ", "))
		b.WriteString(". ")
	} else {
		b.WriteString("cite sources you actually consulted. ")
	}
	if a.CitationEnforced {
		b.WriteString("Every factual claim drawn from a tool result must carry an explicit source attribution.")
	}
	return strings.TrimSpace(b.String())
}

// Stream runs the streaming call plus any tool-call recursion to
// completion, invoking cb at the appropriate points. It blocks until the
// stream (and any recursive tool round-trips) terminate, writes nothing to
// persistent state, and returns only after on_complete or on_error fired.
func (a *Adapter) Stream(ctx context.Context, inputText string, history []llm.Message, cb Callbacks) {
	prefix := a.PolicyPrefix()
	text := inputText
	if prefix != "" {
		text = prefix + "\n\n" + inputText
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: text})

	schemas := a.Registry.Schemas()

	var (
		finalText string
		evidence  []Evidence
		usage     llm.Usage
	)

	for step := 0; step < a.MaxSteps; step++ {
		select {
		case <-ctx.Done():
			cb.OnError(turnerr.Wrap(codeFor(ctx.Err()), "stream aborted", ctx.Err()))
			return
		default:
		}

		h := &stepHandler{onDelta: cb.OnDelta}
		if err := a.Provider.ChatStream(ctx, msgs, schemas, a.Model, h); err != nil {
			cb.OnError(turnerr.Wrap(codeFor(err), "provider stream failed", err))
			return
		}

		if h.usage != (llm.Usage{}) {
			usage = h.usage
		}

		toolCalls := ensureToolCallIDs(msgs, h.toolCalls)
		assistant := llm.Message{
			Role:      "assistant",
			Content:   h.content,
			ToolCalls: toolCalls,
			Images:    h.images,
		}
		msgs = append(msgs, assistant)

		if len(toolCalls) == 0 {
			finalText = h.content
			break
		}

		results, newEvidence := a.dispatchTools(ctx, toolCalls)
		evidence = append(evidence, newEvidence...)
		msgs = append(msgs, results...)
		finalText = h.content
	}

	if a.URLValidationEnabled && len(evidence) > 0 {
		chunks := make([]urlvalidate.EvidenceChunk, len(evidence))
		for i, e := range evidence {
			chunks[i] = urlvalidate.EvidenceChunk{ID: e.ID, Body: e.Body}
		}
		v := urlvalidate.Validate(finalText, chunks)
		finalText = v.Text
		finalText = markdown.Normalize(finalText)
		cb.OnComplete(Result{Text: finalText, Usage: usage, Evidence: evidence, URLValidation: &v})
		return
	}

	finalText = markdown.Normalize(finalText)
	cb.OnComplete(Result{Text: finalText, Usage: usage, Evidence: evidence})
}

func codeFor(err error) turnerr.Code {
	if err == context.DeadlineExceeded {
		return turnerr.CodeDeadlineExceeded
	}
	if err == context.Canceled {
		return turnerr.CodeCancelled
	}
	return turnerr.CodeUpstreamTransient
}

// dispatchTools executes a batch of tool calls concurrently, one goroutine
// per call with no further bound,
// returning the tool-response messages to append to the conversation plus
// any retrieval evidence chunks the calls surfaced.
func (a *Adapter) dispatchTools(ctx context.Context, calls []llm.ToolCall) ([]llm.Message, []Evidence) {
	results := make([]llm.Message, len(calls))
	evidenceByIdx := make([][]Evidence, len(calls))

	sem := make(chan struct{}, len(calls))
	var wg sync.WaitGroup
	for i, tc := range calls {
		i, tc := i, tc
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			payload, err := a.Registry.Dispatch(ctx, tc.Name, tc.Args)
			if err != nil {
				payload = []byte(fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error()))
			}
			results[i] = llm.Message{Role: "tool", Content: string(payload), ToolID: tc.ID}
			if tc.Name == "retrieval_search" {
				evidenceByIdx[i] = extractEvidence(payload)
			}
		}()
	}
	wg.Wait()

	var evidence []Evidence
	for _, e := range evidenceByIdx {
		evidence = append(evidence, e...)
	}
	return results, evidence
}

func extractEvidence(payload []byte) []Evidence {
	var parsed struct {
		Chunks []struct {
			ID   string `json:"id"`
			Body string `json:"body"`
		} `json:"chunks"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil
	}
	out := make([]Evidence, 0, len(parsed.Chunks))
	for _, c := range parsed.Chunks {
		if c.Body == "" {
			continue
		}
		out = append(out, Evidence{ID: c.ID, Body: c.Body})
	}
	return out
}

// stepHandler implements llm.StreamHandler and llm.UsageReporter,
// accumulating one step's deltas/tool calls/images/usage — grounded on the
// teacher's streamHandler in internal/agent/engine.go.
type stepHandler struct {
	onDelta func(string)

	content   string
	toolCalls []llm.ToolCall
	images    []llm.GeneratedImage
	usage     llm.Usage
}

func (h *stepHandler) OnDelta(content string) {
	h.content += content
	if h.onDelta != nil {
		h.onDelta(content)
	}
}

func (h *stepHandler) OnToolCall(tc llm.ToolCall) { h.toolCalls = append(h.toolCalls, tc) }
func (h *stepHandler) OnImage(img llm.GeneratedImage) { h.images = append(h.images, img) }
func (h *stepHandler) OnThoughtSummary(string)        {}
func (h *stepHandler) OnThoughtSignature(string)      {}
func (h *stepHandler) OnUsage(u llm.Usage)            { h.usage = u }

var toolCallSeq uint64

func ensureToolCallIDs(msgs []llm.Message, calls []llm.ToolCall) []llm.ToolCall {
	used := make(map[string]struct{})
	for _, m := range msgs {
		if m.Role != "assistant" {
			continue
		}
		for _, tc := range m.ToolCalls {
			if id := strings.TrimSpace(tc.ID); id != "" {
				used[id] = struct{}{}
			}
		}
	}
	for i := range calls {
		id := strings.TrimSpace(calls[i].ID)
		for id == "" {
			id = nextToolCallID()
			if _, ok := used[id]; ok {
				id = ""
			}
		}
		for {
			if _, ok := used[id]; !ok {
				break
			}
			id = nextToolCallID()
		}
		calls[i].ID = id
		used[id] = struct{}{}
	}
	return calls
}

func nextToolCallID() string {
	seq := atomic.AddUint64(&toolCallSeq, 1)
	return fmt.Sprintf("adapter-call-%d", seq)
}
