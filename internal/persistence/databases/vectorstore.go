package databases

import "context"

// VectorResult is one hit from a similarity search.
type VectorResult struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// VectorStore is the retrieval backend contract used to validate and fall
// back on `vector_store_ids` configured per tenant (§3's TenantConfig,
// §9's knowledge-roots). Qdrant is the concrete implementation; the
// Streaming LLM Adapter's retrieval tool depends only on this interface.
type VectorStore interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]VectorResult, error)
	Dimension() int
	Close() error
}
