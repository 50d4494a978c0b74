package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the bot.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	SessionEvents    *prometheus.CounterVec
	InitialSends     *prometheus.CounterVec
	RefreshOutcomes  *prometheus.CounterVec
	PendingRefreshes prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of voice channel sessions currently active.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		InitialSends: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "initial_sends_total",
			Help:      "Initial notification DM attempts by result.",
		}, []string{"result"}),
		RefreshOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_outcomes_total",
			Help:      "Per-recipient refresh outcomes by result.",
		}, []string{"result"}),
		PendingRefreshes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_refreshes",
			Help:      "Debounced refresh actions currently queued.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
