package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels for RefreshTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultNoToken = "no_token"
	ResultRetry   = "transient_retry"
)

// Session client metrics
var (
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsmart_token_refresh_total",
			Help: "Refresh attempts by outcome.",
		},
		[]string{"result"},
	)

	RefreshWaiters = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "finsmart_token_refresh_waiters",
		Help:    "Callers released by one settled refresh, leader excluded.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
	})

	RequestRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finsmart_request_retries_total",
		Help: "Requests resubmitted after a 401 and a token refresh.",
	})

	SessionClears = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finsmart_session_clears_total",
			Help: "Sessions dropped by reason.",
		},
		[]string{"reason"},
	)
)

// HTTP server metrics for the development backend
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
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var initOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RefreshTotal, RefreshWaiters, RequestRetries, SessionClears,
			httpInFlight, httpRequestsTotal, httpRequestDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records request count, latency and in-flight gauge. pattern is
// used as the path label so ids in URLs do not explode cardinality.
func Instrument(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
