package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	sweepFlaggedProfiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse",
		Subsystem: "monitor",
		Name:      "flagged_profiles",
		Help:      "Number of profiles carrying the high-risk flag at the last sweep.",
	})

	sweepAlertsBackfilled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Subsystem: "monitor",
		Name:      "alerts_backfilled_total",
		Help:      "Total admin alerts opened by the sweep for flagged profiles that had none.",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mindfuse",
		Subsystem: "monitor",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of high-risk sweep runs in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	})

	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Subsystem: "monitor",
		Name:      "sweep_errors_total",
		Help:      "Total high-risk sweep errors.",
	})
)

func init() {
	prometheus.MustRegister(
		sweepFlaggedProfiles,
		sweepAlertsBackfilled,
		sweepDuration,
		sweepErrors,
	)
}
