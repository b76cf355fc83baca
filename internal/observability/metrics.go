package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions      prometheus.Gauge
	SessionEvents       *prometheus.CounterVec
	WSMessages          *prometheus.CounterVec
	IntentResolutions   *prometheus.CounterVec
	DocumentsAssembled  *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		IntentResolutions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_resolutions_total",
			Help:      "Free-text inputs by the category that resolved them.",
		}, []string{"resolution"}),
		DocumentsAssembled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_assembled_total",
			Help:      "Documents assembled by type.",
		}, []string{"doc"}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Response log writes that failed and degraded to memory.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
