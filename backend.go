package cache

import (
	"time"
)

type BackendType string

const (
	BackendLocal BackendType = "local"
)

// ResponseCache is the contract the request pipeline drives: look up a
// response, otherwise check for an outstanding request, otherwise mark one and
// fetch. Backends other than the local LRU implement the same surface.
type ResponseCache interface {
	SetResponse(key string, entry CacheEntry, maxAge time.Duration) bool
	SetFlightMarker(key string, maxAge time.Duration) bool
	GetResponse(key string) (*CacheEntry, bool)
	GetFlightMarker(key string) bool
	Del(key string)
	TTL(key string) time.Duration
	Close() error
}

var _ ResponseCache = (*LocalLRUCache)(nil)
