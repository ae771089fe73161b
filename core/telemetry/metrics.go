// Package telemetry exposes prompt-composition metrics through Prometheus
// collectors. The cache and resolver keep their own exact counters;
// telemetry mirrors those snapshots into gauges and observes per-request
// latencies, so scraping never touches the cache lock.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adalundhe/agentpm/core/promptcache"
)

// Metrics holds all Prometheus instruments for agentpm.
type Metrics struct {
	CompositionsTotal   *prometheus.CounterVec
	CompositionDuration *prometheus.HistogramVec
	CompositionErrors   *prometheus.CounterVec

	CacheHits        prometheus.Gauge
	CacheMisses      prometheus.Gauge
	CacheEvictions   prometheus.Gauge
	CacheExpirations prometheus.Gauge
	CacheSize        prometheus.Gauge

	ProfilesLoaded prometheus.Gauge
	ParseWarnings  prometheus.Gauge
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all instruments once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			CompositionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentpm_compositions_total",
					Help: "Completed prompt compositions",
				},
				[]string{"agent", "tier", "cache_hit"},
			),
			CompositionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentpm_composition_duration_seconds",
					Help:    "Prompt composition latency",
					Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10), // 0.5ms to ~256ms
				},
				[]string{"cache_hit"},
			),
			CompositionErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentpm_composition_errors_total",
					Help: "Failed prompt compositions",
				},
				[]string{"kind"},
			),
			CacheHits: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_prompt_cache_hits",
				Help: "Exact prompt cache hit count",
			}),
			CacheMisses: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_prompt_cache_misses",
				Help: "Exact prompt cache miss count",
			}),
			CacheEvictions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_prompt_cache_evictions",
				Help: "Exact prompt cache LRU eviction count",
			}),
			CacheExpirations: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_prompt_cache_expirations",
				Help: "Exact prompt cache TTL expiration count",
			}),
			CacheSize: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_prompt_cache_entries",
				Help: "Current prompt cache entry count",
			}),
			ProfilesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_profiles_loaded",
				Help: "Profiles resolved since process start",
			}),
			ParseWarnings: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "agentpm_profile_parse_warnings",
				Help: "Profile documents skipped for parse errors",
			}),
		}
	})
	return sharedMetrics
}

// ObserveComposition records one successful composition.
func (m *Metrics) ObserveComposition(agent, tier string, cacheHit bool, d time.Duration) {
	hit := "false"
	if cacheHit {
		hit = "true"
	}
	m.CompositionsTotal.WithLabelValues(agent, tier, hit).Inc()
	m.CompositionDuration.WithLabelValues(hit).Observe(d.Seconds())
}

// ObserveError records one failed composition by error kind.
func (m *Metrics) ObserveError(kind string) {
	m.CompositionErrors.WithLabelValues(kind).Inc()
}

// SyncCache mirrors an exact cache metrics snapshot into the gauges.
func (m *Metrics) SyncCache(snapshot promptcache.Metrics) {
	m.CacheHits.Set(float64(snapshot.Hits))
	m.CacheMisses.Set(float64(snapshot.Misses))
	m.CacheEvictions.Set(float64(snapshot.Evictions))
	m.CacheExpirations.Set(float64(snapshot.Expirations))
	m.CacheSize.Set(float64(snapshot.Size))
}

// SyncResolver mirrors resolver counters into the gauges.
func (m *Metrics) SyncResolver(profilesLoaded, parseWarnings uint64) {
	m.ProfilesLoaded.Set(float64(profilesLoaded))
	m.ParseWarnings.Set(float64(parseWarnings))
}
