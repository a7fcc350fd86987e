package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cache "github.com/mxcd/response-cache"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved cache options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printOptions(cmd.OutOrStdout(), resolveOptions(cmd).Resolved())
	},
}

func printOptions(w io.Writer, opts cache.LocalOptions) error {
	_, err := fmt.Fprintf(w, "type:              %s\nmax:               %d\nmax-age:           %dms\nupdate-age-on-get: %t\n",
		opts.Type, opts.Max, opts.MaxAge.Milliseconds(), opts.UpdateAgeOnGet)
	if err != nil {
		return fmt.Errorf("unable to print options: %w", err)
	}
	return nil
}
