package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and reranker Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Per-stage pipeline duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"},
	)

	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "pipeline_requests_total",
			Help:      "Pipeline executions by outcome",
		},
		[]string{"outcome"}, // "grounded" / "empty" / "error"
	)

	PipelineEvidenceCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "pipeline_evidence_count",
			Help:      "Evidence entries surviving the threshold per request",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
	)

	PipelineCandidatesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "pipeline_candidates_dropped_total",
			Help:      "Malformed candidates dropped during reranking",
		},
	)

	PipelineContextTruncated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "pipeline_context_truncated_total",
			Help:      "Requests where the context budget dropped ranked evidence",
		},
	)

	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verity",
			Name:      "rerank_requests_total",
			Help:      "Total number of rerank requests",
		},
		[]string{"status"},
	)

	RerankRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "verity",
			Name:      "rerank_request_duration_seconds",
			Help:      "Rerank request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline and rerank metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineRequestsTotal)
	prometheus.MustRegister(PipelineEvidenceCount)
	prometheus.MustRegister(PipelineCandidatesDropped)
	prometheus.MustRegister(PipelineContextTruncated)
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(RerankRequestDuration)
	pipelineMetricsRegistered = true
}
