package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Research tree metrics
	ResearchRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_research_runs_total",
			Help: "Total number of research runs started",
		},
	)

	BranchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deep_research_branches_active",
			Help: "Number of branches currently holding a concurrency slot",
		},
	)

	BranchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deep_research_branches_total",
			Help: "Total number of branches executed, by outcome",
		},
		[]string{"status"},
	)

	FindingsExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deep_research_findings_extracted_total",
			Help: "Total number of findings extracted before deduplication",
		},
	)

	// External service metrics
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deep_research_external_call_duration_seconds",
			Help:    "Duration of calls to the search and language model services",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"service", "status"},
	)
)

// Branch outcome labels.
const (
	StatusOK      = "ok"
	StatusTimeout = "timeout"
	StatusError   = "error"
)
