package domain

// Similarity is the first-stage nearest-neighbor score (cosine, recall-tuned).
// Relevance is the cross-encoder score from the second stage. The two live on
// incomparable scales, so they are distinct declared types: mixing them in a
// comparison or sort is a compile error.

// Similarity is a cosine similarity score from vector search.
type Similarity float64

// Relevance is a cross-encoder relevance score from reranking.
type Relevance float64
