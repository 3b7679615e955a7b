package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	authOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_operations_total",
			Help: "Auth operations by outcome.",
		},
		[]string{"op", "result"},
	)

	revokedTokens = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auth_revoked_refresh_tokens",
		Help: "Refresh tokens currently held in the revocation set.",
	})
)

// Init registers the collectors in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authOperations, revokedTokens)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAuth counts one auth operation.
func RecordAuth(op, result string) {
	authOperations.WithLabelValues(op, result).Inc()
}

// SetRevokedTokens publishes the current size of the revocation set.
func SetRevokedTokens(n int) {
	revokedTokens.Set(float64(n))
}

// UnmatchedRoute labels requests that hit no registered pattern.
const UnmatchedRoute = "other"

// RouteMatcher resolves a request to its registered pattern. *http.ServeMux satisfies it.
type RouteMatcher interface {
	Handler(r *http.Request) (http.Handler, string)
}

// RouteLabel returns the pattern serving r, or UnmatchedRoute.
func RouteLabel(routes RouteMatcher, r *http.Request) string {
	if routes == nil {
		return UnmatchedRoute
	}
	if _, pattern := routes.Handler(r); pattern != "" {
		return pattern
	}
	return UnmatchedRoute
}

// Instrument records request count, latency and in-flight requests,
// labelled by route pattern so arbitrary paths do not create new series.
func Instrument(next http.Handler, routes RouteMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()
		route := RouteLabel(routes, r)

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
