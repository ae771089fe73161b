package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/agentpm/core/promptcache"
)

func TestNewMetricsSingleton(t *testing.T) {
	assert.Same(t, NewMetrics(), NewMetrics(),
		"instruments register once; a second registration would panic promauto")
}

func TestObserveComposition(t *testing.T) {
	m := NewMetrics()

	m.ObserveComposition("engineer", "project", true, 2*time.Millisecond)
	m.ObserveComposition("engineer", "project", true, 1*time.Millisecond)
	m.ObserveComposition("qa", "system", false, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.CompositionsTotal.WithLabelValues("engineer", "project", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.CompositionsTotal.WithLabelValues("qa", "system", "false")))
}

func TestObserveError(t *testing.T) {
	m := NewMetrics()

	m.ObserveError("agent_unknown")
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.CompositionErrors.WithLabelValues("agent_unknown")))
}

func TestSyncCache(t *testing.T) {
	m := NewMetrics()

	m.SyncCache(promptcache.Metrics{Hits: 7, Misses: 3, Evictions: 1, Expirations: 2, Size: 4})
	assert.Equal(t, 7.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheExpirations))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CacheSize))

	// Gauges track snapshots, not deltas.
	m.SyncCache(promptcache.Metrics{Hits: 9})
	assert.Equal(t, 9.0, testutil.ToFloat64(m.CacheHits))
}

func TestSyncResolver(t *testing.T) {
	m := NewMetrics()

	m.SyncResolver(12, 2)
	require.Equal(t, 12.0, testutil.ToFloat64(m.ProfilesLoaded))
	require.Equal(t, 2.0, testutil.ToFloat64(m.ParseWarnings))
}
