package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbedderUnavailable signals the embedding model could not be reached at startup.
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
	// ErrEmbeddingProvider signals an embedding provider failure during a request.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrRerankerUnavailable signals the reranking model could not be reached at startup.
	ErrRerankerUnavailable = errors.New("reranker unavailable")
	// ErrRerankProvider signals a reranking provider failure during a request.
	ErrRerankProvider = errors.New("rerank provider error")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrCorpusUnreadable signals the corpus snapshot could not be loaded.
	ErrCorpusUnreadable = errors.New("corpus unreadable")
	// ErrEmptyQuery signals a blank question.
	ErrEmptyQuery = errors.New("empty query")
	// ErrRateLimited signals an exhausted outbound rate budget.
	ErrRateLimited = errors.New("rate limited")
)

// Stage identifies a pipeline stage for error reporting and metrics.
type Stage string

// Pipeline stages in execution order.
const (
	StageEmbedding  Stage = "embedding"
	StageSearching  Stage = "searching"
	StageReranking  Stage = "reranking"
	StageFiltering  Stage = "filtering"
	StageAssembling Stage = "assembling"
)

// PipelineError is an infrastructure failure inside one pipeline stage.
// It is distinct from the empty-evidence outcome, which is a success.
type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps a stage failure.
func NewPipelineError(stage Stage, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}
