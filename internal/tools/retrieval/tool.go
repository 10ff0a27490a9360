// Package retrieval implements the function-tool form of the Streaming LLM
// Adapter's retrieval wiring (§4.4): "add a vector-store tool referencing
// the configured store ids; if none listed, use the tool without an id
// restriction." Grounded on the teacher's rag_retrieve tool
// (internal/tools/rag/tool.go) but adapted to the kept VectorStore
// interface (databases.VectorStore / Qdrant), which the domain stack names
// as the "local fallback similarity search used when the configured
// retrieval tool has no provider-managed backend."
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/legitimus-pro/esqueleto-gateway/internal/persistence/databases"
)

// Embedder turns a query string into the dense vector the configured
// VectorStore indexes against. The teacher has no embedding client; this is
// a small new interface so the retrieval tool doesn't hard-wire one
// provider's embeddings endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config is the tenant-scoped retrieval policy, supplied by the orchestrator
// from tenant.TenantConfig.VectorStoreIDs (§4.4).
type Config struct {
	// StoreIDs restricts the search to these ids when non-empty; an empty
	// list means "no id restriction" per §4.4.
	StoreIDs []string
	TopK     int
}

// Chunk is one retrieved passage, shaped so the adapter can fold it
// directly into a urlvalidate.EvidenceChunk (§4.5).
type Chunk struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Body  string  `json:"body"`
	Title string  `json:"title,omitempty"`
}

type tool struct {
	store databases.VectorStore
	embed Embedder
	cfg   func() Config
}

// New constructs the "retrieval_search" function tool. cfgFn is consulted on
// every call so tenant config changes take effect without rebuilding the
// registry (mirrors tools/web.NewNavigateWebTool's cfgFn pattern).
func New(store databases.VectorStore, embed Embedder, cfgFn func() Config) *tool {
	return &tool{store: store, embed: embed, cfg: cfgFn}
}

func (t *tool) Name() string { return "retrieval_search" }

func (t *tool) JSONSchema() map[string]any {
	return map[string]any{
		"name":        t.Name(),
		"description": "Search the tenant's indexed knowledge base for passages relevant to a query.",
		"parameters": map[string]any{
			"type":     "object",
			"required": []string{"query"},
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Natural-language search query"},
			},
		},
	}
}

func (t *tool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	if t.store == nil || t.embed == nil {
		return map[string]any{"ok": false, "error": "retrieval not configured"}, nil
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	cfg := t.cfg()
	vec, err := t.embed.Embed(ctx, args.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	k := cfg.TopK
	if k <= 0 {
		k = 5
	}

	var results []databases.VectorResult
	if len(cfg.StoreIDs) == 0 {
		results, err = t.store.SimilaritySearch(ctx, vec, k, nil)
		if err != nil {
			return nil, err
		}
	} else {
		// No single filter key can express membership in a set of store ids
		// against the VectorStore's flat-match filter, so run one search per
		// id and merge. Tenants configuring more than a handful of store ids
		// should expect proportionally more latency here.
		seen := map[string]bool{}
		for _, id := range cfg.StoreIDs {
			hits, serr := t.store.SimilaritySearch(ctx, vec, k, map[string]string{"store_id": id})
			if serr != nil {
				continue
			}
			for _, h := range hits {
				if seen[h.ID] {
					continue
				}
				seen[h.ID] = true
				results = append(results, h)
			}
		}
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{
			ID:    r.ID,
			Score: r.Score,
			Body:  r.Metadata["body"],
			Title: r.Metadata["title"],
		})
	}
	return map[string]any{"ok": true, "chunks": chunks}, nil
}
