package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll tick outcomes.
const (
	TickOK        = "ok"
	TickEmpty     = "empty"
	TickError     = "error"
	TickSkipped   = "skipped"
	TickDiscarded = "discarded"
)

var (
	JobSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbot_job_submissions_total",
			Help: "Brand analysis submissions by terminal status",
		},
		[]string{"status"},
	)

	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbot_poll_ticks_total",
			Help: "Poller ticks by outcome",
		},
		[]string{"result"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbot_backend_request_duration_seconds",
			Help:    "Latency of requests to the analysis backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	LiveViews = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedbot_live_views",
			Help: "Insights views currently attached to a poller",
		},
	)

	BackendHealthy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedbot_backend_healthy",
			Help: "1 when the last backend health probe succeeded",
		},
	)
)

func ObserveBackendRequest(operation string, start time.Time) {
	BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
