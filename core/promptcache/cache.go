// Package promptcache implements the shared rendered-prompt cache: a
// bounded, mutex-guarded LRU with per-entry TTL and exact metrics.
//
// Keys cover only the stable portion of a composition (agent, tier,
// content hashes); volatile per-request fields are appended by the
// composer after retrieval, so identical profiles hit regardless of task.
package promptcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

const (
	// DefaultCapacity bounds the entry count when none is configured.
	DefaultCapacity = 500

	// DefaultTTL applies to entries stored with a zero TTL.
	DefaultTTL = 30 * time.Minute
)

// Value is a cached base-rendered prompt with its composition metadata.
type Value struct {
	Text             string
	Tier             string
	ImprovedPromptID string
	ImprovementScore float64

	// Degraded records that enhancement was unusable when the base text
	// was rendered, so hits on this entry report it the same as the
	// original miss did.
	Degraded bool

	RenderedAt time.Time
}

// entry is the internal per-key record. last access drives LRU order.
type entry struct {
	key          string
	value        Value
	createdAt    time.Time
	lastAccessed time.Time
	ttl          time.Duration
	accessCount  uint64
	element      *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// Metrics is an exact snapshot of cache counters. Every Get increments
// hits or misses by one; every capacity eviction increments evictions by
// one; TTL removals count as both a miss and an expiration.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
	Size        int
	Capacity    int
}

// HitRate is hits / (hits + misses), or 0 before any lookup.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// Cache is safe for concurrent use. One mutex guards the whole structure;
// nothing inside the lock performs I/O.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recent, back = least recent

	capacity   int
	defaultTTL time.Duration

	hits        uint64
	misses      uint64
	evictions   uint64
	expirations uint64

	// now is replaceable in tests to exercise TTL expiry.
	now func() time.Time
}

// Config configures a prompt cache.
type Config struct {
	Capacity   int           // 0 uses DefaultCapacity
	DefaultTTL time.Duration // 0 uses DefaultTTL
}

// New creates an isolated cache. Most callers share one instance per
// process (see Shared); tests construct their own.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	return &Cache{
		entries:    make(map[string]*entry),
		lruList:    list.New(),
		capacity:   cfg.Capacity,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

var (
	shared     *Cache
	sharedOnce sync.Once
)

// Shared returns the process-wide cache, creating it with defaults on
// first call. Construction is idempotent.
func Shared() *Cache {
	sharedOnce.Do(func() {
		shared = New(Config{})
	})
	return shared
}

// Get returns the cached value for key. An entry past its TTL is removed,
// counted as an expiration and a miss, and never returned. A hit refreshes
// the entry's recency.
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return Value{}, false
	}
	now := c.now()
	if e.expired(now) {
		c.removeLocked(e)
		c.expirations++
		c.misses++
		return Value{}, false
	}

	e.lastAccessed = now
	e.accessCount++
	c.lruList.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

// Put stores a value under key. A zero ttl uses the configured default.
// Inserting past capacity evicts the least-recently-used entry first.
func (c *Cache) Put(key string, value Value, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if existing, ok := c.entries[key]; ok {
		existing.value = value
		existing.createdAt = now
		existing.lastAccessed = now
		existing.ttl = ttl
		c.lruList.MoveToFront(existing.element)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
		c.evictions++
	}

	e := &entry{
		key:          key,
		value:        value,
		createdAt:    now,
		lastAccessed: now,
		ttl:          ttl,
	}
	e.element = c.lruList.PushFront(e)
	c.entries[key] = e
}

// Invalidate removes a single key. Returns whether it was present.
func (c *Cache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(e)
	return true
}

// InvalidatePattern removes every key matching a glob pattern, e.g.
// "profile:engineer:*" after the engineer profile changes on disk.
// Returns the number of entries removed.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("compiling invalidation pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if g.Match(key) {
			c.removeLocked(e)
			removed++
		}
	}
	return removed, nil
}

// Clear removes every entry without touching hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.lruList.Init()
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GetMetrics returns an exact counter snapshot.
func (c *Cache) GetMetrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		Expirations: c.expirations,
		Size:        len(c.entries),
		Capacity:    c.capacity,
	}
}

func (c *Cache) removeLocked(e *entry) {
	c.lruList.Remove(e.element)
	delete(c.entries, e.key)
}

// StableKey derives the cache key for a composition from inputs that do
// not vary per request. Volatile fields (task text, timestamps) must never
// reach this function or the cache would never hit.
func StableKey(agentName, tier, profileHash string) string {
	sum := sha256.Sum256([]byte(profileHash))
	return fmt.Sprintf("profile:%s:%s:%s", agentName, tier, hex.EncodeToString(sum[:8]))
}

// AgentPattern matches every stable key for one agent across tiers and
// content versions.
func AgentPattern(agentName string) string {
	return fmt.Sprintf("profile:%s:*", agentName)
}
