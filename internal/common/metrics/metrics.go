// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PolicyDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_policy_decisions_total",
			Help: "Conversation policy decisions by action and application",
		},
		[]string{"action", "application"},
	)

	PumpMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_pump_matches_total",
			Help: "Catalog matches produced, by top-ranked pump family",
		},
		[]string{"family"},
	)

	NoMatchTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisor_no_match_total",
			Help: "Duty points no catalog pump could cover",
		},
	)

	LLMFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisor_llm_fallbacks_total",
			Help: "LLM calls that fell back to deterministic output",
		},
		[]string{"stage"},
	)
)
