package domain

import "fmt"

// Document is one corpus chunk (immutable value object). Its embedding is
// computed by the offline ingestion process; serving never mutates it.
type Document struct {
	id      string
	text    string
	source  string
	locator string
	vector  []float32
}

// NewDocument validates and creates a Document.
// ID and text are required; the embedding vector must be non-empty.
func NewDocument(id, text, source, locator string, vector []float32) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if text == "" {
		return Document{}, fmt.Errorf("document %s: text is required", id)
	}
	if len(vector) == 0 {
		return Document{}, fmt.Errorf("document %s: embedding vector is required", id)
	}
	return Document{id: id, text: text, source: source, locator: locator, vector: vector}, nil
}

// ReconstructDocument creates a Document without validation (test fixtures
// and sources that validate on their own terms).
func ReconstructDocument(id, text, source, locator string, vector []float32) Document {
	return Document{id: id, text: text, source: source, locator: locator, vector: vector}
}

// ID returns the stable document identifier.
func (d Document) ID() string { return d.id }

// Text returns the chunk content.
func (d Document) Text() string { return d.text }

// Source returns the origin file or page name.
func (d Document) Source() string { return d.source }

// Locator returns the position within the source (page, offset, section).
func (d Document) Locator() string { return d.locator }

// Vector returns the precomputed embedding.
func (d Document) Vector() []float32 { return d.vector }
