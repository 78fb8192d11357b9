// Package dnscache contains the in-memory cache of resolved DNS answers used
// by the resolver.  The cache is volatile and is rebuilt from upstream
// answers, so it gives no durability guarantees.
package dnscache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AdguardTeam/golibs/timeutil"

	"github.com/shielddns/shielddns/internal/hostpat"
)

// Key identifies a cached answer.  The name must be normalized with
// [hostpat.Normalize] before constructing a key, see [NewKey].
type Key struct {
	// Name is the lowercased domain name without the trailing dot.
	Name string

	// Type is the DNS record type, e.g. "A" or "AAAA".
	Type string
}

// NewKey returns a cache key with name normalized.
func NewKey(name, recType string) (k Key) {
	return Key{
		Name: hostpat.Normalize(name),
		Type: recType,
	}
}

// entry is a single cached answer.  Entries are owned by the cache and are
// replaced wholesale on reinsertion.
type entry struct {
	insertedAt time.Time
	records    []string
	ttl        time.Duration
}

// isExpired returns true if the entry must not be served anymore.
func (e *entry) isExpired(now time.Time) (ok bool) {
	return now.Sub(e.insertedAt) > e.ttl
}

// Config is the DNS cache configuration structure.
type Config struct {
	// Logger is used for logging the operation of the cache.  It must not be
	// nil.
	Logger *slog.Logger

	// Clock is used to tell the current time.  It must not be nil.
	Clock timeutil.Clock

	// MaxEntries is the maximum number of entries kept in the cache.  It must
	// be greater than zero.
	MaxEntries int

	// DefaultTTL is used for entries inserted without an upstream-provided
	// TTL.  It must be positive.
	DefaultTTL time.Duration
}

// Cache is a TTL-expiring cache of DNS answers.  Reads are the hot path:
// lookups for different keys proceed in parallel, and the hit and miss
// counters never block either readers or writers.
type Cache struct {
	logger *slog.Logger
	clock  timeutil.Clock

	// mu protects entries.
	mu      *sync.RWMutex
	entries map[Key]*entry

	hits   atomic.Uint64
	misses atomic.Uint64

	maxEntries int
	defaultTTL time.Duration
}

// New returns a new properly initialized *Cache.  conf must not be nil.
func New(conf *Config) (c *Cache) {
	return &Cache{
		logger:     conf.Logger,
		clock:      conf.Clock,
		mu:         &sync.RWMutex{},
		entries:    make(map[Key]*entry, conf.MaxEntries),
		maxEntries: conf.MaxEntries,
		defaultTTL: conf.DefaultTTL,
	}
}

// Get returns a copy of the cached records for key.  An expired entry behaves
// exactly like a missing one: it is evicted, the miss counter is incremented,
// and ok is false.
func (c *Cache) Get(ctx context.Context, key Key) (records []string, ok bool) {
	c.mu.RLock()
	ent, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	if ent.isExpired(c.clock.Now()) {
		c.logger.DebugContext(ctx, "entry expired", "name", key.Name, "type", key.Type)

		c.mu.Lock()
		// Recheck under the write lock, since the entry may have been
		// replaced by a concurrent insert.
		if cur, stillThere := c.entries[key]; stillThere && cur == ent {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		c.misses.Add(1)

		return nil, false
	}

	c.hits.Add(1)

	recs := make([]string, len(ent.records))
	copy(recs, ent.records)

	return recs, true
}

// Set inserts records for key, replacing any previous entry.  A negative ttl
// means the configured default TTL; a zero ttl is valid and makes the entry
// expire as soon as any time has passed.  When the cache is full, already
// expired entries are evicted first; if there are none, about a tenth of the
// entries is dropped in arbitrary order.  Callers must not assume a
// recency-based eviction order.
func (c *Cache) Set(ctx context.Context, key Key, records []string, ttl time.Duration) {
	if ttl < 0 {
		ttl = c.defaultTTL
	}

	recs := make([]string, len(records))
	copy(recs, records)

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evict(ctx, now)
	}

	c.entries[key] = &entry{
		insertedAt: now,
		records:    recs,
		ttl:        ttl,
	}
}

// evict frees space in the cache.  c.mu is expected to be locked.
func (c *Cache) evict(ctx context.Context, now time.Time) {
	var evicted int
	for k, ent := range c.entries {
		if ent.isExpired(now) {
			delete(c.entries, k)
			evicted++
		}
	}

	if evicted > 0 {
		c.logger.DebugContext(ctx, "evicted expired entries", "count", evicted)

		return
	}

	// No expired entries, so drop an arbitrary tenth of the cache.  This is a
	// best-effort bound, not LRU.
	toDrop := max(1, c.maxEntries/10)
	for k := range c.entries {
		if evicted >= toDrop {
			break
		}

		delete(c.entries, k)
		evicted++
	}

	c.logger.DebugContext(ctx, "evicted arbitrary entries", "count", evicted)
}

// Clear removes all entries.  The hit and miss counters are not reset.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
}

// Len returns the current number of entries.
func (c *Cache) Len() (n int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// Stats returns the number of cache hits and misses.  It never blocks writers
// and may observe slightly stale values under concurrent updates.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns the fraction of reads that were hits, or zero if there were
// no reads yet.
func (c *Cache) HitRate() (rate float64) {
	hits, misses := c.Stats()
	total := hits + misses
	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total)
}
