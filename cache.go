package cache

import (
	"time"
)

// CacheEntry is a materialized upstream response as the adapter pipeline
// caches it.
type CacheEntry struct {
	StatusCode int
	Data       any
	Result     any
	MaxAge     time.Duration
	Debug      map[string]any
}

// clone returns a copy that shares no top-level map with the original.
func (e CacheEntry) clone() CacheEntry {
	if e.Debug != nil {
		debug := make(map[string]any, len(e.Debug))
		for k, v := range e.Debug {
			debug[k] = v
		}
		e.Debug = debug
	}
	return e
}

type CacheEventType int

const (
	CacheEventSet CacheEventType = iota
	CacheEventRemove
	CacheEventEvict
	CacheEventExpire
)

func (t CacheEventType) String() string {
	switch t {
	case CacheEventSet:
		return "set"
	case CacheEventRemove:
		return "remove"
	case CacheEventEvict:
		return "evict"
	case CacheEventExpire:
		return "expire"
	default:
		return "unknown"
	}
}

// CacheEvent is delivered to callbacks registered with AddCallback.
// Entry is nil for flight markers.
type CacheEvent struct {
	Type         CacheEventType
	Key          string
	FlightMarker bool
	Entry        *CacheEntry
}

type slotKind uint8

const (
	slotResponse slotKind = iota
	slotFlightMarker
)

func (k slotKind) String() string {
	if k == slotFlightMarker {
		return "flight_marker"
	}
	return "response"
}

// slot is the single value resident under a key: either a response or a
// flight marker, with the bookkeeping needed to answer TTL queries.
type slot struct {
	kind     slotKind
	entry    CacheEntry
	storedAt time.Time
	maxAge   time.Duration
}

func (s *slot) expired(now time.Time) bool {
	return now.After(s.storedAt.Add(s.maxAge))
}

func (s *slot) remaining(now time.Time) time.Duration {
	ttl := s.storedAt.Add(s.maxAge).Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}

func (s *slot) event(t CacheEventType, key string) CacheEvent {
	event := CacheEvent{
		Type:         t,
		Key:          key,
		FlightMarker: s.kind == slotFlightMarker,
	}
	if s.kind == slotResponse {
		entry := s.entry.clone()
		event.Entry = &entry
	}
	return event
}
