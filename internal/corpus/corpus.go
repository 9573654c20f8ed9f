// Package corpus loads the immutable document snapshot produced by the
// offline ingestion process. Sources only differ in where the snapshot
// lives; after loading, serving never touches them again.
package corpus

import (
	"context"
	"fmt"

	"github.com/verity-rag/verity/internal/domain"
)

// Source loads the full corpus snapshot at process start.
type Source interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// Record is the on-the-wire shape the ingestion process publishes.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Locator   string    `json:"locator"`
	Embedding []float32 `json:"embedding"`
}

// toDocument validates a record into a domain Document.
func (r *Record) toDocument() (domain.Document, error) {
	doc, err := domain.NewDocument(r.ID, r.Text, r.Source, r.Locator, r.Embedding)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %w", domain.ErrCorpusUnreadable, err)
	}
	return doc, nil
}
