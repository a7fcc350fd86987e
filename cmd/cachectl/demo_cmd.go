package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cache "github.com/mxcd/response-cache"
)

type demoConfig struct {
	workers int
	key     string
	latency time.Duration
	poll    time.Duration
	atomic  bool
}

type demoResult struct {
	upstreamCalls int64
	responses     int
	stats         cache.Stats
}

var demo = demoConfig{key: "demo-request", poll: 5 * time.Millisecond}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Send concurrent identical requests through the cache",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c := cache.GetInstance(resolveOptions(cmd))
		defer c.Close()

		if verbose {
			c.AddCallback(func(event cache.CacheEvent) {
				log.Debug("cache event", "type", event.Type, "key", event.Key, "flightMarker", event.FlightMarker)
			})
		}

		log.Info("starting demo", "workers", demo.workers, "latency", demo.latency, "atomic", demo.atomic)
		result, err := runDemo(ctx, c, demo)
		if err != nil {
			return fmt.Errorf("demo failed: %w", err)
		}

		log.Info("demo finished",
			"responses", result.responses,
			"upstreamCalls", result.upstreamCalls,
			"hits", result.stats.Hits,
			"misses", result.stats.Misses,
			"hitRate", fmt.Sprintf("%.2f", result.stats.HitRate()),
		)
		return nil
	},
}

func init() {
	demoCmd.Flags().IntVar(&demo.workers, "workers", 8, "number of concurrent identical requests")
	demoCmd.Flags().DurationVar(&demo.latency, "latency", 100*time.Millisecond, "simulated upstream latency")
	demoCmd.Flags().BoolVar(&demo.atomic, "atomic", false, "claim the flight marker atomically instead of check-then-set")
}

func runDemo(ctx context.Context, c *cache.LocalLRUCache, cfg demoConfig) (demoResult, error) {
	var calls atomic.Int64
	upstream := func(ctx context.Context) (cache.CacheEntry, error) {
		n := calls.Add(1)
		select {
		case <-time.After(cfg.latency):
		case <-ctx.Done():
			return cache.CacheEntry{}, ctx.Err()
		}
		return cache.CacheEntry{StatusCode: 200, Result: n}, nil
	}

	var responses atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.workers; i++ {
		g.Go(func() error {
			if _, err := fetch(ctx, c, cfg, upstream); err != nil {
				return err
			}
			responses.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return demoResult{}, err
	}

	return demoResult{
		upstreamCalls: calls.Load(),
		responses:     int(responses.Load()),
		stats:         c.Stats(),
	}, nil
}

// fetch serves key from the cache, or claims the flight marker and calls
// upstream, or waits for whoever holds the marker to store a response.
func fetch(ctx context.Context, c *cache.LocalLRUCache, cfg demoConfig, upstream func(context.Context) (cache.CacheEntry, error)) (*cache.CacheEntry, error) {
	maxAge := c.Options().MaxAge
	for {
		if entry, ok := c.GetResponse(cfg.key); ok {
			return entry, nil
		}

		var claimed bool
		if cfg.atomic {
			claimed = c.TryAcquireFlightMarker(cfg.key, maxAge)
		} else if !c.GetFlightMarker(cfg.key) {
			claimed = c.SetFlightMarker(cfg.key, maxAge)
		}

		if claimed {
			entry, err := upstream(ctx)
			if err != nil {
				c.Del(cfg.key)
				return nil, err
			}
			c.SetResponse(cfg.key, entry, maxAge)
			return &entry, nil
		}

		select {
		case <-time.After(cfg.poll):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
