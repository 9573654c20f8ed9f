package pipeline

import (
	"context"

	"github.com/verity-rag/verity/internal/domain"
)

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs first-stage nearest-neighbor retrieval.
type Searcher interface {
	Search(vector []float32, k int) ([]domain.Candidate, error)
}

// Reranker runs second-stage cross-encoder scoring.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.Candidate) (domain.RerankResult, error)
}
