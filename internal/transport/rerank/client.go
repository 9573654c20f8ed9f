// Package rerank talks to a cross-encoder scoring service over HTTP
// (text-embeddings-inference /rerank API). The cross-encoder reads the query
// and the candidate text together, so its scores measure semantic relevance
// rather than embedding proximity — a different scale than first-stage
// similarity.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/verity-rag/verity/internal/domain"
	"github.com/verity-rag/verity/internal/metrics"
)

// Client implements domain.Reranker against a TEI-compatible endpoint.
type Client struct {
	baseURL    string
	scoreFloor float64
	client     *http.Client
	logger     *zap.Logger
}

// Config holds the reranker provider settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// ScoreFloor is the provider noise floor. Scores at or below it are
	// discarded before the threshold filter ever sees them.
	ScoreFloor float64
	Logger     *zap.Logger
}

// NewClient creates a cross-encoder rerank client.
func NewClient(cfg *Config) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		scoreFloor: cfg.ScoreFloor,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankScore struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores every candidate against the query. Candidates with empty
// text are dropped up front and counted — one broken chunk must not fail the
// whole query. Scores at or below the noise floor are discarded. The result
// is ordered by descending relevance, ties by ascending document ID.
func (c *Client) Rerank(
	ctx context.Context, query string, candidates []domain.Candidate,
) (domain.RerankResult, error) {
	scorable := make([]domain.Candidate, 0, len(candidates))
	dropped := 0
	for _, cand := range candidates {
		doc := cand.Document()
		if doc.Text() == "" {
			dropped++
			c.logger.Warn("dropping candidate with empty text", zap.String("document_id", doc.ID()))
			continue
		}
		scorable = append(scorable, cand)
	}
	metrics.PipelineCandidatesDropped.Add(float64(dropped))

	if len(scorable) == 0 {
		return domain.RerankResult{Dropped: dropped}, nil
	}

	texts := make([]string, len(scorable))
	for i := range scorable {
		doc := scorable[i].Document()
		texts[i] = doc.Text()
	}

	scores, err := c.post(ctx, rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return domain.RerankResult{}, err
	}

	evidence := make([]domain.Evidence, 0, len(scores))
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(scorable) {
			return domain.RerankResult{}, fmt.Errorf(
				"rerank response index %d out of range [0,%d): %w",
				s.Index, len(scorable), domain.ErrRerankProvider)
		}
		if s.Score <= c.scoreFloor {
			continue
		}
		evidence = append(evidence, domain.NewEvidence(scorable[s.Index].Document(), domain.Relevance(s.Score)))
	}

	sort.Slice(evidence, func(i, j int) bool {
		if evidence[i].Score() != evidence[j].Score() {
			return evidence[i].Score() > evidence[j].Score()
		}
		return evidence[i].Document().ID() < evidence[j].Document().ID()
	})

	return domain.RerankResult{Evidence: evidence, Dropped: dropped}, nil
}

// HealthCheck verifies the scoring service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("rerank health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rerank health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rerank health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload rerankRequest) ([]rerankScore, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank: %w: %w", domain.ErrRerankProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank: status %d: %s: %w", resp.StatusCode, detail, domain.ErrRerankProvider)
	}

	var scores []rerankScore
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		metrics.RerankRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("rerank decode: %w: %w", domain.ErrRerankProvider, err)
	}

	metrics.RerankRequestsTotal.WithLabelValues("success").Inc()
	metrics.RerankRequestDuration.Observe(duration.Seconds())

	return scores, nil
}
