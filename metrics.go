package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/mxcd/response-cache"

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Sets        uint64
	Evictions   uint64
	Expirations uint64
	Items       int
}

// HitRate returns hits / (hits + misses), or 0 before any read.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheMetrics struct {
	hits        metric.Int64Counter
	misses      metric.Int64Counter
	sets        metric.Int64Counter
	evictions   metric.Int64Counter
	expirations metric.Int64Counter

	registration metric.Registration
	closeOnce    sync.Once

	hitCount        atomic.Uint64
	missCount       atomic.Uint64
	setCount        atomic.Uint64
	evictionCount   atomic.Uint64
	expirationCount atomic.Uint64
}

var kindAttrs = map[slotKind]metric.MeasurementOption{
	slotResponse:     metric.WithAttributes(attribute.String("kind", slotResponse.String())),
	slotFlightMarker: metric.WithAttributes(attribute.String("kind", slotFlightMarker.String())),
}

func newCacheMetrics(mp metric.MeterProvider, logger *log.Logger, itemCount func() int) *cacheMetrics {
	meter := mp.Meter(meterName)
	m := &cacheMetrics{}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Warn("could not create instrument", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}
	m.hits = counter("cache.hits", "Reads that found a live value of the requested kind")
	m.misses = counter("cache.misses", "Reads that found nothing usable")
	m.sets = counter("cache.sets", "Values written")
	m.evictions = counter("cache.evictions", "Values evicted to stay within capacity")
	m.expirations = counter("cache.expirations", "Values purged on read after their max-age")

	items, err := meter.Int64ObservableGauge("cache.items",
		metric.WithDescription("Resident keys, including expired values not yet purged"),
	)
	if err != nil {
		logger.Warn("could not create instrument", "name", "cache.items", "error", err)
		return m
	}
	m.registration, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(items, int64(itemCount()))
		return nil
	}, items)
	if err != nil {
		logger.Warn("could not register instrument callback", "name", "cache.items", "error", err)
		m.registration = nil
	}

	return m
}

// close stops reporting cache.items. Safe to call more than once.
func (m *cacheMetrics) close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.registration != nil {
			err = m.registration.Unregister()
		}
	})
	return err
}

func (m *cacheMetrics) hit(kind slotKind) {
	m.hitCount.Add(1)
	m.hits.Add(context.Background(), 1, kindAttrs[kind])
}

func (m *cacheMetrics) miss(kind slotKind) {
	m.missCount.Add(1)
	m.misses.Add(context.Background(), 1, kindAttrs[kind])
}

func (m *cacheMetrics) set(kind slotKind) {
	m.setCount.Add(1)
	m.sets.Add(context.Background(), 1, kindAttrs[kind])
}

func (m *cacheMetrics) evicted(kind slotKind) {
	m.evictionCount.Add(1)
	m.evictions.Add(context.Background(), 1, kindAttrs[kind])
}

func (m *cacheMetrics) expired(kind slotKind) {
	m.expirationCount.Add(1)
	m.expirations.Add(context.Background(), 1, kindAttrs[kind])
}

func (m *cacheMetrics) snapshot(items int) Stats {
	return Stats{
		Hits:        m.hitCount.Load(),
		Misses:      m.missCount.Load(),
		Sets:        m.setCount.Load(),
		Evictions:   m.evictionCount.Load(),
		Expirations: m.expirationCount.Load(),
		Items:       items,
	}
}
