package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/verity-rag/verity/internal/domain"
)

func candidate(id, text string) domain.Candidate {
	doc := domain.ReconstructDocument(id, text, "src", "p1", []float32{0.1})
	return domain.NewCandidate(doc, 0.5)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Config{
		BaseURL:    server.URL,
		Timeout:    2 * time.Second,
		ScoreFloor: 0.001,
		Logger:     zap.NewNop(),
	})
}

func TestRerank_ScoresAndOrders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "what is the scholarship" {
			t.Errorf("unexpected query: %q", req.Query)
		}
		if len(req.Texts) != 3 {
			t.Fatalf("expected 3 texts, got %d", len(req.Texts))
		}

		json.NewEncoder(w).Encode([]rerankScore{
			{Index: 0, Score: 0.2},
			{Index: 1, Score: 0.9},
			{Index: 2, Score: 0.7},
		})
	})

	result, err := client.Rerank(context.Background(), "what is the scholarship", []domain.Candidate{
		candidate("a", "first"),
		candidate("b", "second"),
		candidate("c", "third"),
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}

	wantOrder := []string{"b", "c", "a"}
	if len(result.Evidence) != len(wantOrder) {
		t.Fatalf("expected %d evidence entries, got %d", len(wantOrder), len(result.Evidence))
	}
	for i, want := range wantOrder {
		if got := result.Evidence[i].Document().ID(); got != want {
			t.Errorf("evidence[%d] = %s, want %s", i, got, want)
		}
	}
}

func TestRerank_TiesBrokenByAscendingID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]rerankScore{
			{Index: 0, Score: 0.8},
			{Index: 1, Score: 0.8},
		})
	})

	result, err := client.Rerank(context.Background(), "q", []domain.Candidate{
		candidate("zeta", "one"),
		candidate("alpha", "two"),
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if result.Evidence[0].Document().ID() != "alpha" {
		t.Errorf("tie not broken by ascending ID: first is %s", result.Evidence[0].Document().ID())
	}
}

func TestRerank_DropsEmptyTextCandidates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		// The empty candidate must never reach the provider.
		if len(req.Texts) != 2 {
			t.Fatalf("expected 2 texts, got %d", len(req.Texts))
		}

		json.NewEncoder(w).Encode([]rerankScore{
			{Index: 0, Score: 0.9},
			{Index: 1, Score: 0.6},
		})
	})

	result, err := client.Rerank(context.Background(), "q", []domain.Candidate{
		candidate("a", "kept"),
		candidate("broken", ""),
		candidate("c", "also kept"),
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("expected 1 dropped candidate, got %d", result.Dropped)
	}
	if len(result.Evidence) != 2 {
		t.Fatalf("expected 2 evidence entries, got %d", len(result.Evidence))
	}
	for _, e := range result.Evidence {
		if e.Document().ID() == "broken" {
			t.Error("dropped candidate appeared in evidence")
		}
	}
}

func TestRerank_DiscardsScoresAtNoiseFloor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]rerankScore{
			{Index: 0, Score: 0.0005},
			{Index: 1, Score: 0.5},
		})
	})

	result, err := client.Rerank(context.Background(), "q", []domain.Candidate{
		candidate("noise", "one"),
		candidate("signal", "two"),
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if len(result.Evidence) != 1 || result.Evidence[0].Document().ID() != "signal" {
		t.Fatalf("expected only the above-floor entry, got %d entries", len(result.Evidence))
	}
}

func TestRerank_AllCandidatesEmpty(t *testing.T) {
	called := false
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	})

	result, err := client.Rerank(context.Background(), "q", []domain.Candidate{
		candidate("a", ""),
	})
	if err != nil {
		t.Fatalf("Rerank: %v", err)
	}
	if called {
		t.Error("provider should not be called with zero scorable candidates")
	}
	if len(result.Evidence) != 0 || result.Dropped != 1 {
		t.Errorf("expected empty evidence with 1 drop, got %d/%d", len(result.Evidence), result.Dropped)
	}
}

func TestRerank_ProviderErrorWrapsSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Rerank(context.Background(), "q", []domain.Candidate{candidate("a", "text")})
	if !errors.Is(err, domain.ErrRerankProvider) {
		t.Fatalf("expected ErrRerankProvider, got %v", err)
	}
}

func TestRerank_OutOfRangeIndex(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]rerankScore{{Index: 7, Score: 0.9}})
	})

	_, err := client.Rerank(context.Background(), "q", []domain.Candidate{candidate("a", "text")})
	if !errors.Is(err, domain.ErrRerankProvider) {
		t.Fatalf("expected ErrRerankProvider, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
