package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) (*httpMetrics, error) {
	m := &httpMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "towdispatch",
			Name:      "http_request_duration_seconds",
			Help:      "The duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "towdispatch",
			Name:      "http_requests_total",
			Help:      "The total number of HTTP requests",
		}, []string{"method", "route", "status"}),
	}
	for _, c := range []prometheus.Collector{m.duration, m.requests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// middleware labels requests by their chi route pattern so path parameters
// do not explode the label cardinality.
func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
			m.duration.WithLabelValues(r.Method, routePattern(r)).Observe(v)
		}))
		next.ServeHTTP(rw, r)
		timer.ObserveDuration()
		m.requests.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(rw.statusCode)).Inc()
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
