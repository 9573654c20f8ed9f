// Package pipeline sequences the query-to-evidence stages: embed the
// question, search the vector index wide for recall, rerank the candidates
// for precision, gate them on the calibrated threshold, and assemble the
// survivors into a bounded evidence package. An empty package is the
// designed "no grounded answer" signal, not a failure.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verity-rag/verity/internal/domain"
	"github.com/verity-rag/verity/internal/metrics"
)

// Config holds the calibration values the pipeline runs with.
// Validation (threshold range, k >= cap) happens at config load.
type Config struct {
	InitialK        int
	FinalCap        int
	Threshold       domain.Relevance
	MaxContextBytes int
}

// Service orchestrates one pipeline execution per request. All shared state
// (index, model clients) is read-only after startup, so concurrent requests
// need no locking.
type Service struct {
	embed  Embedder
	index  Searcher
	rerank Reranker
	cfg    Config
	logger *zap.Logger
}

// New creates the pipeline service.
func New(embed Embedder, index Searcher, rerank Reranker, cfg Config, logger *zap.Logger) *Service {
	return &Service{embed: embed, index: index, rerank: rerank, cfg: cfg, logger: logger}
}

// Answer runs the full pipeline for one question. The returned package
// always carries populated metrics, including when err is non-nil. Errors
// are *domain.PipelineError naming the failed stage; they mean
// infrastructure trouble, never "nothing relevant found".
func (s *Service) Answer(ctx context.Context, text string) (domain.EvidencePackage, error) {
	var m domain.PipelineMetrics

	if strings.TrimSpace(text) == "" {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return domain.NewEvidencePackage(nil, nil, m), domain.NewPipelineError(domain.StageEmbedding, domain.ErrEmptyQuery)
	}

	// Embedding: computed once per request, never cached across requests.
	start := time.Now()
	embRes, err := s.embed.Embed(ctx, text)
	m.EmbedLatency = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageEmbedding)).Observe(m.EmbedLatency.Seconds())
	if err != nil {
		return s.fail(m, domain.StageEmbedding, err)
	}

	// Searching: wide recall-oriented candidate sweep.
	start = time.Now()
	candidates, err := s.index.Search(embRes.Embedding, s.cfg.InitialK)
	m.SearchLatency = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageSearching)).Observe(m.SearchLatency.Seconds())
	if err != nil {
		return s.fail(m, domain.StageSearching, err)
	}
	m.CandidateCount = len(candidates)

	// Reranking: precision correction, per-pair scoring.
	start = time.Now()
	rerankRes, err := s.rerank.Rerank(ctx, text, candidates)
	m.RerankLatency = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageReranking)).Observe(m.RerankLatency.Seconds())
	if err != nil {
		return s.fail(m, domain.StageReranking, err)
	}
	m.DroppedCount = rerankRes.Dropped
	m.RerankedCount = len(rerankRes.Evidence)

	// Filtering: the hallucination gate. Results below the threshold are
	// never backfilled — too little evidence means "not found".
	start = time.Now()
	kept := applyThreshold(rerankRes.Evidence, s.cfg.Threshold, s.cfg.FinalCap)
	m.FilterLatency = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageFiltering)).Observe(m.FilterLatency.Seconds())
	m.EvidenceCount = len(kept)

	// Assembling: citation packaging plus the context byte budget.
	start = time.Now()
	entries, cites := assemble(kept, s.cfg.MaxContextBytes, &m)
	m.AssembleLatency = time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(string(domain.StageAssembling)).Observe(m.AssembleLatency.Seconds())

	pkg := domain.NewEvidencePackage(entries, cites, m)

	metrics.PipelineEvidenceCount.Observe(float64(m.EvidenceCount))
	if pkg.Empty() {
		metrics.PipelineRequestsTotal.WithLabelValues("empty").Inc()
		s.logger.Info("no grounded evidence for query",
			zap.Int("candidates", m.CandidateCount),
			zap.Int("reranked", m.RerankedCount),
		)
	} else {
		metrics.PipelineRequestsTotal.WithLabelValues("grounded").Inc()
	}

	return pkg, nil
}

func (s *Service) fail(m domain.PipelineMetrics, stage domain.Stage, err error) (domain.EvidencePackage, error) {
	metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
	s.logger.Error("pipeline stage failed", zap.String("stage", string(stage)), zap.Error(err))
	return domain.NewEvidencePackage(nil, nil, m), domain.NewPipelineError(stage, err)
}

// applyThreshold keeps evidence scoring at or above the threshold, capped at
// limit entries. Input is sorted by descending relevance, so both are prefix
// takes.
func applyThreshold(evidence []domain.Evidence, threshold domain.Relevance, limit int) []domain.Evidence {
	cut := len(evidence)
	for i, e := range evidence {
		if e.Score() < threshold {
			cut = i
			break
		}
	}
	if cut > limit {
		cut = limit
	}
	return evidence[:cut]
}
