package metrics

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// EnvLatencyBuckets overrides the latency buckets in seconds, formatted like "0.05,0.3,1".
	EnvLatencyBuckets = "CHEMAUDIT_LATENCY_BUCKETS"

	unmatchedRoute = "unmatched"
)

// Exports and uploads dominate the slow end, single validations the fast one.
var defaultLatencyBuckets = []float64{0.01, 0.05, 0.25, 1, 5, 30}

// Middleware records requests, latency and in-flight requests of one HTTP service, labelled by
// the chi route pattern so ids in paths do not explode the cardinality.
type Middleware struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func latencyBuckets() []float64 {
	conf, ok := os.LookupEnv(EnvLatencyBuckets)
	if !ok {
		return defaultLatencyBuckets
	}
	buckets := make([]float64, 0)
	for _, v := range strings.Split(conf, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			panic(err)
		}
		buckets = append(buckets, f)
	}
	return buckets
}

func NewMiddleware(service string) *Middleware {
	labels := prometheus.Labels{"service": service}
	return &Middleware{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem:   chemaudit,
			Name:        "http_requests_total",
			Help:        "HTTP requests partitioned by status code, method and route.",
			ConstLabels: labels,
		}, []string{"code", "method", "route"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem:   chemaudit,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency partitioned by status code, method and route.",
			ConstLabels: labels,
			Buckets:     latencyBuckets(),
		}, []string{"code", "method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem:   chemaudit,
			Name:        "http_requests_in_flight",
			Help:        "HTTP requests currently being served.",
			ConstLabels: labels,
		}),
	}
}

// Handler is the chi middleware. The route is read after the request went through the router.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := strconv.Itoa(ww.Status())
		m.requests.WithLabelValues(code, r.Method, route).Inc()
		m.latency.WithLabelValues(code, r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Middleware) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.requests, m.latency, m.inFlight}
}

// Register adds the collectors to reg.
func (m *Middleware) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegisterDefault registers the collectors with the default registry and panics on conflicts.
func (m *Middleware) MustRegisterDefault() {
	if err := m.Register(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}
