package domain

import "context"

// Reranker is the second-stage scoring contract. It rates every candidate
// pairwise against the query and returns evidence ordered by descending
// relevance (ties by ascending document ID). Candidates it cannot score —
// empty text, provider noise floor — are dropped and counted, never fatal
// for the request.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) (RerankResult, error)
}

// RerankResult carries scored evidence plus the per-candidate drop count.
type RerankResult struct {
	Evidence []Evidence
	Dropped  int
}
