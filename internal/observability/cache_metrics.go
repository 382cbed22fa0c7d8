package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheMetrics tracks the run-history summary cache.
type CacheMetrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	purges  prometheus.Counter
	entries prometheus.Gauge
}

var (
	defaultCacheMetrics     *CacheMetrics
	defaultCacheMetricsOnce sync.Once
)

// NewCacheMetrics builds a CacheMetrics recorder using the default registry.
func NewCacheMetrics() *CacheMetrics {
	defaultCacheMetricsOnce.Do(func() {
		defaultCacheMetrics = newCacheMetrics(prometheus.DefaultRegisterer)
	})
	return defaultCacheMetrics
}

// NewCacheMetricsWithRegisterer allows tests to provide a dedicated registry.
func NewCacheMetricsWithRegisterer(reg prometheus.Registerer) *CacheMetrics {
	return newCacheMetrics(reg)
}

func newCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &CacheMetrics{
		hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "history",
			Name:      "summary_cache_hit_total",
			Help:      "Run summaries served from the in-process cache",
		}),
		misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "history",
			Name:      "summary_cache_miss_total",
			Help:      "Run summaries rebuilt from the checkpoint store",
		}),
		purges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentcore",
			Subsystem: "history",
			Name:      "summary_cache_purge_total",
			Help:      "Explicit refreshes that dropped every cached summary",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentcore",
			Subsystem: "history",
			Name:      "summary_cache_entries",
			Help:      "Summaries currently held in the cache",
		}),
	}
}

// RecordLookup counts a cache hit or miss.
func (m *CacheMetrics) RecordLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.hits.Inc()
		return
	}
	m.misses.Inc()
}

// RecordPurge counts an explicit refresh.
func (m *CacheMetrics) RecordPurge() {
	if m == nil {
		return
	}
	m.purges.Inc()
}

// SetEntries records the current cache size.
func (m *CacheMetrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}
