package cache

import (
	"math"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/cast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultMaxItems       = 1000
	DefaultMaxAge         = 90 * time.Second
	DefaultUpdateAgeOnGet = false
)

// Options passed to NewLocalLRUCache and GetInstance
//
// Max: Maximum number of resident keys. Values <= 0 fall back to DefaultMaxItems
// MaxAge: Default lifetime of a value when a setter passes maxAge <= 0
// UpdateAgeOnGet: Whether a successful read refreshes eviction priority. It never extends expiry
type LocalOptions struct {
	Type           BackendType
	Max            int
	MaxAge         time.Duration
	UpdateAgeOnGet bool

	MeterProvider metric.MeterProvider
	Logger        *log.Logger

	now func() time.Time
}

// rawEnv holds the cache variables exactly as the environment has them so
// malformed values can be coerced instead of failing the parse.
type rawEnv struct {
	Type           string `env:"CACHE_TYPE"`
	MaxItems       string `env:"CACHE_MAX_ITEMS"`
	MaxAge         string `env:"CACHE_MAX_AGE"`
	UpdateAgeOnGet string `env:"CACHE_UPDATE_AGE_ON_GET"`
}

func defaultLogger() *log.Logger {
	return log.Default().WithPrefix("response-cache")
}

// DefaultOptions resolves options from CACHE_TYPE, CACHE_MAX_ITEMS,
// CACHE_MAX_AGE (milliseconds) and CACHE_UPDATE_AGE_ON_GET. Every variable is
// defaulted independently.
func DefaultOptions() *LocalOptions {
	logger := defaultLogger()

	raw, err := env.ParseAs[rawEnv]()
	if err != nil {
		logger.Warn("could not read cache environment, using defaults", "error", err)
		raw = rawEnv{}
	}

	opts := &LocalOptions{
		Type:           BackendLocal,
		Max:            DefaultMaxItems,
		MaxAge:         DefaultMaxAge,
		UpdateAgeOnGet: DefaultUpdateAgeOnGet,
	}

	if raw.Type != "" && BackendType(strings.ToLower(strings.TrimSpace(raw.Type))) != BackendLocal {
		logger.Warn("unsupported cache type, using local", "CACHE_TYPE", raw.Type)
	}
	if n, ok := parsePositiveInt(raw.MaxItems); ok && n <= math.MaxInt {
		opts.Max = int(n)
	} else if raw.MaxItems != "" {
		logger.Warn("invalid cache setting, using default", "CACHE_MAX_ITEMS", raw.MaxItems, "default", DefaultMaxItems)
	}
	if n, ok := parsePositiveInt(raw.MaxAge); ok && n <= maxAgeMillisLimit {
		opts.MaxAge = time.Duration(n) * time.Millisecond
	} else if raw.MaxAge != "" {
		logger.Warn("invalid cache setting, using default", "CACHE_MAX_AGE", raw.MaxAge, "default", DefaultMaxAge.Milliseconds())
	}
	if raw.UpdateAgeOnGet != "" {
		b, err := cast.ToBoolE(strings.TrimSpace(raw.UpdateAgeOnGet))
		if err != nil {
			logger.Warn("invalid cache setting, using default", "CACHE_UPDATE_AGE_ON_GET", raw.UpdateAgeOnGet, "default", DefaultUpdateAgeOnGet)
		} else {
			opts.UpdateAgeOnGet = b
		}
	}

	return opts
}

// maxAgeMillisLimit is the largest millisecond count a time.Duration holds.
const maxAgeMillisLimit = math.MaxInt64 / int64(time.Millisecond)

// parsePositiveInt accepts any finite number in [1, MaxInt64], truncating
// fractions.
func parsePositiveInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := cast.ToFloat64E(s)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// normalized returns a copy with every unset or invalid field defaulted.
func (o *LocalOptions) normalized() LocalOptions {
	var n LocalOptions
	if o != nil {
		n = *o
	}
	if n.Type == "" {
		n.Type = BackendLocal
	}
	if n.Max <= 0 {
		n.Max = DefaultMaxItems
	}
	if n.MaxAge <= 0 {
		n.MaxAge = DefaultMaxAge
	}
	if n.MeterProvider == nil {
		n.MeterProvider = otel.GetMeterProvider()
	}
	if n.Logger == nil {
		n.Logger = defaultLogger()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Redact returns a copy of the options that is safe to log. The local backend
// holds no credentials, so only runtime handles are dropped.
func (o LocalOptions) Redact() LocalOptions {
	o.MeterProvider = nil
	o.Logger = nil
	o.now = nil
	return o
}

// Resolved returns the options a cache built from o would run with, redacted.
func (o *LocalOptions) Resolved() LocalOptions {
	return o.normalized().Redact()
}
