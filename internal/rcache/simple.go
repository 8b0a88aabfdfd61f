package rcache

import (
	"sync"
	"time"
)

// DefaultCleaningInterval is how often Simple opportunistically sweeps
// expired entries out of the map, matching SPEC_FULL.md §4.4's default.
const DefaultCleaningInterval = 300 * time.Second

// Simple is a map-backed cache guarded by a single mutex. Expired entries
// are removed lazily: on Get and Put, if wall-clock
// has passed nextCleaning, a full sweep runs before the method's own work.
type Simple struct {
	mu               sync.Mutex
	data             map[CacheKey]Answer
	cleaningInterval time.Duration
	lastSweep        time.Time
	now              func() time.Time

	hits, misses, evictions uint64
}

// NewSimple creates a Simple cache with the given sweep interval (0 means
// DefaultCleaningInterval).
func NewSimple(cleaningInterval time.Duration) *Simple {
	if cleaningInterval <= 0 {
		cleaningInterval = DefaultCleaningInterval
	}
	return &Simple{
		data:             make(map[CacheKey]Answer),
		cleaningInterval: cleaningInterval,
		lastSweep:        time.Now(),
		now:              time.Now,
	}
}

func (c *Simple) maybeSweep(now time.Time) {
	if now.Before(c.lastSweep.Add(c.cleaningInterval)) {
		return
	}
	for k, a := range c.data {
		if a.Expired(now) {
			delete(c.data, k)
			c.evictions++
		}
	}
	c.lastSweep = now
}

// Get returns the cached Answer for key if present and unexpired.
func (c *Simple) Get(key CacheKey) (Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.maybeSweep(now)

	a, ok := c.data[key]
	if !ok {
		c.misses++
		return Answer{}, false
	}
	if a.Expired(now) {
		delete(c.data, key)
		c.evictions++
		c.misses++
		return Answer{}, false
	}
	c.hits++
	return a, true
}

// Put overwrites (or inserts) the answer for key.
func (c *Simple) Put(key CacheKey, answer Answer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maybeSweep(c.now())
	c.data[key] = answer
}

// Flush removes one key, or every entry if key is nil.
func (c *Simple) Flush(key *CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == nil {
		c.data = make(map[CacheKey]Answer)
		return
	}
	delete(c.data, *key)
}

// Stats returns a consistent snapshot of hit/miss/eviction counters and the
// current entry count, all read under the cache's lock.
func (c *Simple) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evictions: c.evictions, Size: len(c.data)}
}

var _ Cache = (*Simple)(nil)
