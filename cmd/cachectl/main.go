// Package main provides cachectl, a small tool for inspecting the response
// cache configuration and exercising request deduplication against it.
package main

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	cache "github.com/mxcd/response-cache"
)

var (
	maxItems       int
	maxAgeMillis   int
	updateAgeOnGet bool
	verbose        bool

	rootCmd = &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and exercise the adapter response cache",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().IntVar(&maxItems, "max", 0, "maximum resident keys (overrides CACHE_MAX_ITEMS)")
	rootCmd.PersistentFlags().IntVar(&maxAgeMillis, "max-age", 0, "default max-age in milliseconds (overrides CACHE_MAX_AGE)")
	rootCmd.PersistentFlags().BoolVar(&updateAgeOnGet, "update-age-on-get", false, "refresh recency on reads (overrides CACHE_UPDATE_AGE_ON_GET)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log cache activity")

	rootCmd.AddCommand(configCmd, demoCmd)
}

// resolveOptions layers explicitly set flags over the environment.
func resolveOptions(cmd *cobra.Command) *cache.LocalOptions {
	opts := cache.DefaultOptions()
	flags := cmd.Flags()
	if flags.Changed("max") && maxItems > 0 {
		opts.Max = maxItems
	}
	if flags.Changed("max-age") && maxAgeMillis > 0 {
		opts.MaxAge = time.Duration(maxAgeMillis) * time.Millisecond
	}
	if flags.Changed("update-age-on-get") {
		opts.UpdateAgeOnGet = updateAgeOnGet
	}
	return opts
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
