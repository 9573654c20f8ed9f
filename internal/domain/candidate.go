package domain

// Candidate is a single first-stage search hit, not yet relevance-verified.
type Candidate struct {
	doc   Document
	score Similarity
}

// NewCandidate creates a search candidate.
func NewCandidate(doc Document, score Similarity) Candidate {
	return Candidate{doc: doc, score: score}
}

// Document returns the matched document.
func (c Candidate) Document() Document { return c.doc }

// Score returns the first-stage similarity score.
func (c Candidate) Score() Similarity { return c.score }
