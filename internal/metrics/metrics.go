// Package metrics provides Prometheus instrumentation for the mindfuse platform.
package metrics

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindfuse",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, path pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mindfuse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// EvaluationsTotal counts completed risk evaluations by resulting level.
	EvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindfuse",
			Name:      "evaluations_total",
			Help:      "Total risk evaluations by resulting risk level.",
		},
		[]string{"risk_level"},
	)

	// EvaluationDuration observes end-to-end evaluation latency,
	// including the profile commit.
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mindfuse",
		Name:      "evaluation_duration_seconds",
		Help:      "End-to-end risk evaluation duration in seconds.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	// CrisisDetectionsTotal counts crisis-phrase matches.
	CrisisDetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Name:      "crisis_detections_total",
		Help:      "Total evaluations short-circuited by a crisis phrase.",
	})

	// CorrectionsTotal counts applied corrections by modality and rule.
	CorrectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindfuse",
			Name:      "corrections_total",
			Help:      "Total label corrections applied by modality and rule.",
		},
		[]string{"modality", "rule"},
	)

	// EscalationsTotal counts evaluations where disagreement escalation
	// raised the combined score.
	EscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Name:      "escalations_total",
		Help:      "Total evaluations where modality disagreement floored the combined score upward.",
	})

	// ModalitiesPresent counts evaluations by which modalities carried signal.
	ModalitiesPresent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindfuse",
			Name:      "modalities_present_total",
			Help:      "Total evaluations by present-modality combination (e.g. text+image).",
		},
		[]string{"combination"},
	)

	// CommitConflictsTotal counts profile commit races detected.
	CommitConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Name:      "commit_conflicts_total",
		Help:      "Total profile commit conflicts detected (each is retried).",
	})

	// CommitFailuresTotal counts commits that exhausted retries or failed outright.
	CommitFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Name:      "commit_failures_total",
		Help:      "Total profile commits that failed after retries; the assessment was returned unsaved.",
	})

	// HighRiskFlagsRaised counts high-risk flags raised by the monitor policy.
	HighRiskFlagsRaised = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mindfuse",
		Name:      "high_risk_flags_raised_total",
		Help:      "Total high-risk flags raised on commit.",
	})

	// HighRiskFlagsCleared counts flags cleared, by who cleared them.
	HighRiskFlagsCleared = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mindfuse",
			Name:      "high_risk_flags_cleared_total",
			Help:      "Total high-risk flags cleared, by source (auto or admin).",
		},
		[]string{"source"},
	)

	// ActiveWebSocketClients tracks connected WebSocket clients.
	ActiveWebSocketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mindfuse",
			Name:      "active_websocket_clients",
			Help:      "Number of currently connected WebSocket clients.",
		},
	)

	// DBOpenConnections tracks open database connections.
	DBOpenConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "db_open_connections",
		Help: "Number of open database connections.",
	})
	// DBIdleConnections tracks idle database connections.
	DBIdleConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "db_idle_connections",
		Help: "Number of idle database connections.",
	})
	// DBInUseConnections tracks in-use database connections.
	DBInUseConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "db_in_use_connections",
		Help: "Number of in-use database connections.",
	})
	// DBWaitCount tracks the total number of connections waited for.
	DBWaitCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "db_wait_count_total",
		Help: "Total number of connections waited for.",
	})
	// DBWaitDuration tracks total time waited for connections.
	DBWaitDuration = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "db_wait_duration_seconds_total",
		Help: "Total time waited for connections in seconds.",
	})
	// GoroutineCount tracks the current number of goroutines.
	GoroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mindfuse", Name: "goroutines",
		Help: "Current number of goroutines.",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		EvaluationsTotal,
		EvaluationDuration,
		CrisisDetectionsTotal,
		CorrectionsTotal,
		EscalationsTotal,
		ModalitiesPresent,
		CommitConflictsTotal,
		CommitFailuresTotal,
		HighRiskFlagsRaised,
		HighRiskFlagsCleared,
		ActiveWebSocketClients,
		DBOpenConnections,
		DBIdleConnections,
		DBInUseConnections,
		DBWaitCount,
		DBWaitDuration,
		GoroutineCount,
	)
}

// StartDBStatsCollector periodically samples sql.DBStats and runtime goroutine
// count into Prometheus gauges. Call in a goroutine; exits when ctx is done.
func StartDBStatsCollector(ctx context.Context, db *sql.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := db.Stats()
			DBOpenConnections.Set(float64(stats.OpenConnections))
			DBIdleConnections.Set(float64(stats.Idle))
			DBInUseConnections.Set(float64(stats.InUse))
			DBWaitCount.Set(float64(stats.WaitCount))
			DBWaitDuration.Set(stats.WaitDuration.Seconds())
			GoroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

// Middleware returns a gin middleware that records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := prometheus.NewTimer(HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(), // Uses route pattern, not actual path (avoids cardinality explosion)
		))

		c.Next()

		timer.ObserveDuration()
		HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			statusBucket(c.Writer.Status()),
		).Inc()
	}
}

// Handler returns the Prometheus metrics HTTP handler for /metrics endpoint.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// statusBucket groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
