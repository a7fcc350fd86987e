package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// LocalLRUCache is an in-memory response cache bounded by key count and
// per-value max-age. Responses and flight markers share one keyspace.
//
// Expired values are only purged when a read touches them.
type LocalLRUCache struct {
	options LocalOptions
	logger  *log.Logger
	metrics *cacheMetrics

	mu  sync.Mutex
	lru *simplelru.LRU[string, *slot]

	callbacks   []func(CacheEvent)
	callbacksMu sync.RWMutex
}

// NewLocalLRUCache builds a cache from options, defaulting anything unset or invalid.
func NewLocalLRUCache(options *LocalOptions) *LocalLRUCache {
	opts := options.normalized()

	lru, err := simplelru.NewLRU[string, *slot](opts.Max, nil)
	if err != nil {
		// normalized options always carry a positive size
		panic(err)
	}

	c := &LocalLRUCache{
		options: opts,
		logger:  opts.Logger,
		lru:     lru,
	}
	c.metrics = newCacheMetrics(opts.MeterProvider, opts.Logger, c.Len)
	return c
}

// SetResponse stores entry at key, replacing whatever is there. maxAge <= 0
// uses the cache default.
func (c *LocalLRUCache) SetResponse(key string, entry CacheEntry, maxAge time.Duration) bool {
	return c.set(key, &slot{kind: slotResponse, entry: entry.clone()}, maxAge)
}

// SetFlightMarker records that a request for key is outstanding.
func (c *LocalLRUCache) SetFlightMarker(key string, maxAge time.Duration) bool {
	return c.set(key, &slot{kind: slotFlightMarker}, maxAge)
}

// TryAcquireFlightMarker stores a flight marker only when nothing live is
// resident at key, and reports whether it did. Unlike GetFlightMarker followed
// by SetFlightMarker, at most one concurrent caller wins.
func (c *LocalLRUCache) TryAcquireFlightMarker(key string, maxAge time.Duration) bool {
	c.mu.Lock()
	now := c.options.now()
	var events []CacheEvent
	if s, ok := c.lru.Peek(key); ok {
		if !s.expired(now) {
			c.mu.Unlock()
			return false
		}
		events = append(events, c.expireLocked(key, s))
	}
	events = append(events, c.setLocked(key, &slot{kind: slotFlightMarker}, maxAge, now)...)
	c.mu.Unlock()

	c.dispatch(events)
	return true
}

// GetResponse returns a copy of the live response at key. Flight markers read
// as absent.
func (c *LocalLRUCache) GetResponse(key string) (*CacheEntry, bool) {
	s, ok := c.get(key, slotResponse)
	if !ok {
		return nil, false
	}
	entry := s.entry.clone()
	return &entry, true
}

func (c *LocalLRUCache) GetFlightMarker(key string) bool {
	_, ok := c.get(key, slotFlightMarker)
	return ok
}

// Del removes any value at key.
func (c *LocalLRUCache) Del(key string) {
	c.mu.Lock()
	s, ok := c.lru.Peek(key)
	if ok {
		c.lru.Remove(key)
	}
	c.mu.Unlock()

	if ok {
		c.dispatch([]CacheEvent{s.event(CacheEventRemove, key)})
	}
}

// TTL returns how long the value at key has left to live, or 0 when nothing
// live is resident. It does not count as an access.
func (c *LocalLRUCache) TTL(key string) time.Duration {
	c.mu.Lock()
	now := c.options.now()
	s, ok := c.lru.Peek(key)
	if !ok {
		c.mu.Unlock()
		return 0
	}
	if s.expired(now) {
		event := c.expireLocked(key, s)
		c.mu.Unlock()
		c.dispatch([]CacheEvent{event})
		return 0
	}
	ttl := s.remaining(now)
	c.mu.Unlock()
	return ttl
}

// Close releases the cache's metric registration. The cache itself keeps
// working.
func (c *LocalLRUCache) Close() error {
	return c.metrics.close()
}

// Len returns the number of resident keys, including expired values that no
// read has purged yet.
func (c *LocalLRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns resident keys from least to most recently used.
func (c *LocalLRUCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Stats returns counters accumulated since construction.
func (c *LocalLRUCache) Stats() Stats {
	return c.metrics.snapshot(c.Len())
}

// Options returns the normalized options the cache runs with.
func (c *LocalLRUCache) Options() LocalOptions {
	return c.options.Redact()
}

// AddCallback registers fn for every set, remove, evict and expire. Callbacks
// run synchronously after the cache lock is released.
func (c *LocalLRUCache) AddCallback(fn func(CacheEvent)) {
	c.callbacksMu.Lock()
	defer c.callbacksMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *LocalLRUCache) set(key string, s *slot, maxAge time.Duration) bool {
	c.mu.Lock()
	events := c.setLocked(key, s, maxAge, c.options.now())
	c.mu.Unlock()

	c.dispatch(events)
	return true
}

func (c *LocalLRUCache) setLocked(key string, s *slot, maxAge time.Duration, now time.Time) []CacheEvent {
	if maxAge <= 0 {
		maxAge = c.options.MaxAge
	}
	s.storedAt = now
	s.maxAge = maxAge

	var events []CacheEvent
	if !c.lru.Contains(key) && c.lru.Len() >= c.options.Max {
		if oldKey, old, ok := c.lru.RemoveOldest(); ok {
			c.metrics.evicted(old.kind)
			c.logger.Debug("evicted least recently used value", "key", oldKey, "kind", old.kind)
			events = append(events, old.event(CacheEventEvict, oldKey))
		}
	}
	c.lru.Add(key, s)
	c.metrics.set(s.kind)
	return append(events, s.event(CacheEventSet, key))
}

// get returns the live slot at key if it holds kind. A slot of another kind
// reads as a miss and keeps its recency.
func (c *LocalLRUCache) get(key string, kind slotKind) (*slot, bool) {
	c.mu.Lock()
	now := c.options.now()
	s, ok := c.lru.Peek(key)
	if !ok {
		c.mu.Unlock()
		c.metrics.miss(kind)
		return nil, false
	}
	if s.expired(now) {
		event := c.expireLocked(key, s)
		c.mu.Unlock()
		c.metrics.miss(kind)
		c.dispatch([]CacheEvent{event})
		return nil, false
	}
	if s.kind != kind {
		c.mu.Unlock()
		c.metrics.miss(kind)
		return nil, false
	}
	if c.options.UpdateAgeOnGet {
		c.lru.Get(key)
	}
	c.mu.Unlock()

	c.metrics.hit(kind)
	return s, true
}

func (c *LocalLRUCache) expireLocked(key string, s *slot) CacheEvent {
	c.lru.Remove(key)
	c.metrics.expired(s.kind)
	c.logger.Debug("purged expired value", "key", key, "kind", s.kind, "maxAge", s.maxAge)
	return s.event(CacheEventExpire, key)
}

func (c *LocalLRUCache) dispatch(events []CacheEvent) {
	if len(events) == 0 {
		return
	}
	// callbacks may re-enter the cache or register more callbacks
	c.callbacksMu.RLock()
	callbacks := append(([]func(CacheEvent))(nil), c.callbacks...)
	c.callbacksMu.RUnlock()

	for _, callback := range callbacks {
		for _, event := range events {
			callback(event)
		}
	}
}
