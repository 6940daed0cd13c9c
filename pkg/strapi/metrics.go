package strapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics records request and cache activity in Prometheus. A nil *Metrics
// records nothing. It is safe for concurrent use.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	fetchDuration   *prometheus.HistogramVec
	responseBytes   *prometheus.HistogramVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetrics registers the collectors on registry, or on the default
// registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "strapi_requests_total",
				Help: "Total number of content API requests by outcome",
			},
			[]string{"resource", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strapi_request_duration_seconds",
				Help:    "Duration of content API requests in seconds, cache hits included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strapi_fetch_duration_seconds",
				Help:    "Duration of upstream HTTP calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		),
		responseBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "strapi_response_bytes",
				Help:    "Size of content API response bodies",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"resource"},
		),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "strapi_cache_hits_total",
			Help: "Total number of memoized responses served from cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "strapi_cache_misses_total",
			Help: "Total number of memoized lookups that missed the cache",
		}),
	}
}

// RecordRequest records one finished Get.
func (m *Metrics) RecordRequest(resource, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(resource, outcome).Inc()
	m.requestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordFetch records one upstream call, successful or not.
func (m *Metrics) RecordFetch(resource string, duration time.Duration) {
	if m == nil {
		return
	}

	m.fetchDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordResponseSize records the size of a response body.
func (m *Metrics) RecordResponseSize(resource string, size int) {
	if m == nil {
		return
	}

	m.responseBytes.WithLabelValues(resource).Observe(float64(size))
}

func (m *Metrics) cacheHit() {
	if m == nil {
		return
	}

	m.cacheHits.Inc()
}

func (m *Metrics) cacheMiss() {
	if m == nil {
		return
	}

	m.cacheMisses.Inc()
}
