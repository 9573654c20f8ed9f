// Package chi exposes the pipeline over HTTP to the generation/UI layer.
// The answer endpoint keeps the two non-success shapes distinct: an empty
// evidence set is a 200 with an explicit no-grounded-answer code (the caller
// must answer "information not found"), while infrastructure failures are a
// 502 the caller may retry on its own policy.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/verity-rag/verity/internal/domain"
	healthuc "github.com/verity-rag/verity/internal/usecase/health"
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeEmptyQuery       = "empty_query"
	codeNoGroundedAnswer = "no_grounded_answer"
	codeUnavailable      = "temporarily_unavailable"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal_error"
)

// Pipeline answers one question with grounded evidence.
type Pipeline interface {
	Answer(ctx context.Context, text string) (domain.EvidencePackage, error)
}

// Server exposes the answer and health endpoints.
type Server struct {
	pipeline Pipeline
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Pipeline, health *healthuc.Service, logger *zap.Logger) *Server {
	return &Server{pipeline: pipeline, health: health, logger: logger}
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/answer", s.AnswerQuery)
	r.Get("/health", s.Health)
	r.Handle("/metrics", promhttp.Handler())
}

type answerRequest struct {
	Question string `json:"question"`
}

type evidenceEntry struct {
	Text           string  `json:"text"`
	Source         string  `json:"source"`
	Locator        string  `json:"locator"`
	RelevanceScore float64 `json:"relevance_score"`
}

type citationEntry struct {
	Source  string `json:"source"`
	Locator string `json:"locator"`
}

type answerMetrics struct {
	EmbedMs        float64 `json:"embed_ms"`
	SearchMs       float64 `json:"search_ms"`
	RerankMs       float64 `json:"rerank_ms"`
	FilterMs       float64 `json:"filter_ms"`
	AssembleMs     float64 `json:"assemble_ms"`
	CandidateCount int     `json:"candidate_count"`
	DroppedCount   int     `json:"dropped_count"`
	RerankedCount  int     `json:"reranked_count"`
	EvidenceCount  int     `json:"evidence_count"`
	Truncated      bool    `json:"truncated"`
}

type answerResponse struct {
	Grounded  bool            `json:"grounded"`
	Code      string          `json:"code,omitempty"`
	Evidence  []evidenceEntry `json:"evidence"`
	Citations []citationEntry `json:"citations"`
	Metrics   answerMetrics   `json:"metrics"`
}

// AnswerQuery handles POST /v1/answer.
func (s *Server) AnswerQuery(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	pkg, err := s.pipeline.Answer(r.Context(), req.Question)
	if err != nil {
		s.handlePipelineError(w, err)
		return
	}

	resp := answerResponse{
		Grounded:  !pkg.Empty(),
		Evidence:  make([]evidenceEntry, 0, len(pkg.Entries())),
		Citations: make([]citationEntry, 0, len(pkg.Citations())),
		Metrics:   metricsToAPI(pkg.Metrics()),
	}
	if pkg.Empty() {
		resp.Code = codeNoGroundedAnswer
	}

	for _, e := range pkg.Entries() {
		doc := e.Document()
		resp.Evidence = append(resp.Evidence, evidenceEntry{
			Text:           doc.Text(),
			Source:         doc.Source(),
			Locator:        doc.Locator(),
			RelevanceScore: float64(e.Score()),
		})
	}
	for _, c := range pkg.Citations() {
		resp.Citations = append(resp.Citations, citationEntry{Source: c.Source, Locator: c.Locator})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":    report.Status,
		"checks":    report.Checks,
		"documents": report.Documents,
	})
}

// handlePipelineError maps pipeline failures to HTTP. Infrastructure errors
// deliberately return a generic message: the provider detail goes to the log,
// not to the caller.
func (s *Server) handlePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, codeEmptyQuery, "question must not be empty")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "temporarily unavailable, retry later")
	case errors.Is(err, domain.ErrEmbeddingProvider), errors.Is(err, domain.ErrRerankProvider):
		s.logger.Error("pipeline provider failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, codeUnavailable, "temporarily unavailable")
	default:
		s.logger.Error("pipeline failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func metricsToAPI(m domain.PipelineMetrics) answerMetrics {
	toMs := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }
	return answerMetrics{
		EmbedMs:        toMs(m.EmbedLatency),
		SearchMs:       toMs(m.SearchLatency),
		RerankMs:       toMs(m.RerankLatency),
		FilterMs:       toMs(m.FilterLatency),
		AssembleMs:     toMs(m.AssembleLatency),
		CandidateCount: m.CandidateCount,
		DroppedCount:   m.DroppedCount,
		RerankedCount:  m.RerankedCount,
		EvidenceCount:  m.EvidenceCount,
		Truncated:      m.Truncated,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
