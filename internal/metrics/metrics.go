package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheRequestsTotal counts request-path cache outcomes per cache.
	// result is one of hit, miss, dedup.
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmo_cache_requests_total",
			Help: "Cache lookup outcomes by cache (chat, tts) and result.",
		},
		[]string{"cache", "result"},
	)

	// CacheEntries reports current cache occupancy.
	CacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bmo_cache_entries",
			Help: "Resident entries per cache.",
		},
		[]string{"cache"},
	)

	// UpstreamErrorsTotal counts failed upstream calls by provider.
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmo_upstream_errors_total",
			Help: "Failed upstream provider calls.",
		},
		[]string{"provider"},
	)

	// GatewayLatencySeconds is HTTP request latency for the gateway.
	GatewayLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmo_gateway_latency_seconds",
			Help:    "HTTP request latency for the gateway in seconds.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"path", "method", "status_code"},
	)
)

// Register is called once in main() to register metrics.
func Register() {
	prometheus.MustRegister(
		CacheRequestsTotal,
		CacheEntries,
		UpstreamErrorsTotal,
		GatewayLatencySeconds,
	)
}

// Handler exposes the /metrics endpoint for Prometheus to scrape.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware measures gateway latency for each HTTP request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// capture status code
		rec := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rec, r)

		GatewayLatencySeconds.
			WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(rec.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}
