// Package index holds the immutable in-memory vector index. The corpus is
// order-10⁴ chunks, so an exact brute-force cosine scan beats the complexity
// of an approximate structure. The index is built once at startup and shared
// by all requests without locking.
package index

import (
	"fmt"
	"math"
	"sort"

	"github.com/verity-rag/verity/internal/domain"
)

// Index is a read-only nearest-neighbor index over corpus embeddings.
type Index struct {
	docs  []domain.Document
	norms []float64
	dim   int
}

// New builds an index from loaded documents. All vectors must share one
// dimensionality. Zero-norm vectors are rejected: a chunk the embedder maps
// to the origin can never be retrieved and indicates a broken snapshot.
func New(docs []domain.Document) (*Index, error) {
	ix := &Index{
		docs:  docs,
		norms: make([]float64, len(docs)),
	}

	for i := range docs {
		vec := docs[i].Vector()
		if ix.dim == 0 {
			ix.dim = len(vec)
		}
		if len(vec) != ix.dim {
			return nil, fmt.Errorf("document %s has %d dimensions, index has %d: %w",
				docs[i].ID(), len(vec), ix.dim, domain.ErrVectorDimMismatch)
		}

		n := norm(vec)
		if n == 0 {
			return nil, fmt.Errorf("document %s has a zero-norm embedding", docs[i].ID())
		}
		ix.norms[i] = n
	}

	return ix, nil
}

// Len returns the corpus size.
func (ix *Index) Len() int { return len(ix.docs) }

// Dimensions returns the embedding dimensionality (0 for an empty index).
func (ix *Index) Dimensions() int { return ix.dim }

// Search returns up to k candidates ordered by descending cosine similarity,
// ties broken by ascending document ID. An empty index yields an empty slice.
// If k exceeds the corpus size, every document is returned.
func (ix *Index) Search(vector []float32, k int) ([]domain.Candidate, error) {
	if len(ix.docs) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vector) != ix.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(vector), ix.dim, domain.ErrVectorDimMismatch)
	}

	qnorm := norm(vector)
	if qnorm == 0 {
		return nil, fmt.Errorf("query embedding has zero norm")
	}

	candidates := make([]domain.Candidate, len(ix.docs))
	for i := range ix.docs {
		score := dot(vector, ix.docs[i].Vector()) / (qnorm * ix.norms[i])
		candidates[i] = domain.NewCandidate(ix.docs[i], domain.Similarity(score))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score() != candidates[j].Score() {
			return candidates[i].Score() > candidates[j].Score()
		}
		return candidates[i].Document().ID() < candidates[j].Document().ID()
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
