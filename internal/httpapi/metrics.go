package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"gridd/internal/eventbus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gridd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gridd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridd",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Total backpressure rejections (429)",
		},
		[]string{"reason"},
	)

	sessionsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridd",
			Subsystem: "scheduler",
			Name:      "sessions_created_total",
			Help:      "Total sessions successfully placed on a node",
		},
	)

	sessionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridd",
			Subsystem: "scheduler",
			Name:      "session_failures_total",
			Help:      "Total session requests that failed, by reason",
		},
		[]string{"reason"},
	)

	nodeEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridd",
			Subsystem: "scheduler",
			Name:      "node_evictions_total",
			Help:      "Total nodes removed from the registry",
		},
	)

	registeredNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridd",
			Subsystem: "scheduler",
			Name:      "registered_nodes",
			Help:      "Nodes currently registered",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridd",
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Session requests waiting in the backlog",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal,
		sessionsCreatedTotal, sessionFailuresTotal, nodeEvictionsTotal,
		registeredNodes, queueDepth,
	)
}

// EventSource is the subscription slice of the bus the metrics observe.
type EventSource interface {
	Subscribe(handler func(eventbus.Event), only ...eventbus.EventType) func()
}

// ObserveBus keeps the scheduler metrics in step with bus events. The node
// gauge is recomputed from the service on every node event, so duplicate
// delivery cannot drift it. The returned function detaches.
func ObserveBus(b EventSource, svc Service) func() {
	return b.Subscribe(func(e eventbus.Event) {
		switch e.Type {
		case eventbus.SessionCreated:
			sessionsCreatedTotal.Inc()
		case eventbus.NodeRemoved:
			nodeEvictionsTotal.Inc()
			registeredNodes.Set(float64(len(svc.Status().Nodes)))
		case eventbus.NodeAdded:
			registeredNodes.Set(float64(len(svc.Status().Nodes)))
		}
	}, eventbus.SessionCreated, eventbus.NodeAdded, eventbus.NodeRemoved)
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure is called when returning 429 to the client
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
