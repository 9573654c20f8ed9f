package domain

import "time"

// Evidence is a reranked document that may ground an answer.
type Evidence struct {
	doc   Document
	score Relevance
}

// NewEvidence creates a reranked evidence entry.
func NewEvidence(doc Document, score Relevance) Evidence {
	return Evidence{doc: doc, score: score}
}

// Document returns the underlying document.
func (e Evidence) Document() Document { return e.doc }

// Score returns the cross-encoder relevance score.
func (e Evidence) Score() Relevance { return e.score }

// Citation is the reader-facing provenance of an evidence entry.
type Citation struct {
	Source  string
	Locator string
}

// PipelineMetrics aggregates per-stage timings and counts for one request.
// Always populated, including on failure and on the empty-evidence outcome.
type PipelineMetrics struct {
	EmbedLatency    time.Duration
	SearchLatency   time.Duration
	RerankLatency   time.Duration
	FilterLatency   time.Duration
	AssembleLatency time.Duration

	CandidateCount int  // hits returned by vector search
	DroppedCount   int  // malformed candidates dropped during reranking
	RerankedCount  int  // candidates that received a relevance score
	EvidenceCount  int  // entries surviving threshold and cap
	Truncated      bool // context budget forced dropping ranked evidence
}

// EvidencePackage is the ordered, threshold-filtered, budget-bounded evidence
// set returned to the generation layer. An empty package is a valid outcome:
// it means the corpus holds no grounding for the question.
type EvidencePackage struct {
	entries   []Evidence
	citations []Citation
	metrics   PipelineMetrics
}

// NewEvidencePackage creates an evidence package.
func NewEvidencePackage(entries []Evidence, citations []Citation, metrics PipelineMetrics) EvidencePackage {
	return EvidencePackage{entries: entries, citations: citations, metrics: metrics}
}

// Entries returns evidence ordered by descending relevance, ties broken by
// ascending document ID.
func (p EvidencePackage) Entries() []Evidence { return p.entries }

// Citations returns unique sources in rank order.
func (p EvidencePackage) Citations() []Citation { return p.citations }

// Metrics returns the per-stage pipeline metrics.
func (p EvidencePackage) Metrics() PipelineMetrics { return p.metrics }

// Empty reports whether no evidence survived the threshold.
func (p EvidencePackage) Empty() bool { return len(p.entries) == 0 }
