// Package metrics registers this module's gauges and counters against
// prometheus.DefaultRegisterer and exposes them via promhttp.Handler()
// at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ttc_monitor",
		Subsystem: "jobstore",
		Name:      "queue_depth",
		Help:      "Number of jobs currently Pending.",
	})

	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ttc_monitor",
		Subsystem: "prover",
		Name:      "jobs_completed_total",
		Help:      "Total number of jobs that reached Completed.",
	})

	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ttc_monitor",
		Subsystem: "prover",
		Name:      "jobs_failed_total",
		Help:      "Total number of jobs that reached Failed.",
	})

	WatcherPhaseTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ttc_monitor",
		Subsystem: "chainwatcher",
		Name:      "phase_transitions_total",
		Help:      "Count of phase transitions observed, labeled by the destination phase.",
	}, []string{"to_phase"})

	ProofDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ttc_monitor",
		Subsystem: "prover",
		Name:      "proof_duration_seconds",
		Help:      "Wall-clock time spent producing one proof.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
	})

	RPCRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ttc_monitor",
		Subsystem: "jsonrpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests dispatched, labeled by method.",
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(JobQueueDepth, JobsCompleted, JobsFailed,
		WatcherPhaseTransitions, ProofDuration, RPCRequests)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
