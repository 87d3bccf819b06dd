package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/temcen/bookshelf/internal/cache"
)

// MetricsCollector owns the service's Prometheus instruments. A nil
// collector records nothing.
type MetricsCollector struct {
	recommendationRequests *prometheus.CounterVec
	recommendationLatency  *prometheus.HistogramVec
	recommendationErrors   *prometheus.CounterVec
	strategyContributions  *prometheus.CounterVec
	ratingsRecorded        prometheus.Counter
	catalogEvents          *prometheus.CounterVec
}

// NewMetricsCollector registers instruments on reg. The cache counters are
// exported as function-backed metrics reading c.Stats().
func NewMetricsCollector(reg prometheus.Registerer, c *cache.Cache) *MetricsCollector {
	factory := promauto.With(reg)

	mc := &MetricsCollector{
		recommendationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests by strategy",
		}, []string{"strategy"}),

		recommendationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recommendation_latency_seconds",
			Help:    "Recommendation request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
		}, []string{"strategy"}),

		recommendationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_errors_total",
			Help: "Recommendation strategy failures",
		}, []string{"strategy"}),

		strategyContributions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_strategy_books_total",
			Help: "Books contributed to hybrid feeds by strategy",
		}, []string{"strategy"}),

		ratingsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ratings_recorded_total",
			Help: "Ratings created or updated",
		}),

		catalogEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_events_total",
			Help: "Catalog events applied by type and outcome",
		}, []string{"type", "outcome"}),
	}

	if c != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Recommendation cache hits",
		}, func() float64 { return float64(c.Stats().Hits) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Recommendation cache misses, expired entries included",
		}, func() float64 { return float64(c.Stats().Misses) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "cache_expired_total",
			Help: "Entries dropped on read after their TTL passed",
		}, func() float64 { return float64(c.Stats().Expired) })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Entries currently held by the recommendation cache",
		}, func() float64 { return float64(c.Len()) })
	}

	return mc
}

func (mc *MetricsCollector) RecordRecommendationRequest(strategy string, latency time.Duration) {
	if mc == nil {
		return
	}
	mc.recommendationRequests.WithLabelValues(strategy).Inc()
	mc.recommendationLatency.WithLabelValues(strategy).Observe(latency.Seconds())
}

func (mc *MetricsCollector) RecordRecommendationError(strategy string) {
	if mc == nil {
		return
	}
	mc.recommendationErrors.WithLabelValues(strategy).Inc()
}

func (mc *MetricsCollector) RecordStrategyContribution(strategy string, books int) {
	if mc == nil {
		return
	}
	mc.strategyContributions.WithLabelValues(strategy).Add(float64(books))
}

func (mc *MetricsCollector) RecordRating() {
	if mc == nil {
		return
	}
	mc.ratingsRecorded.Inc()
}

func (mc *MetricsCollector) RecordCatalogEvent(eventType, outcome string) {
	if mc == nil {
		return
	}
	mc.catalogEvents.WithLabelValues(eventType, outcome).Inc()
}
