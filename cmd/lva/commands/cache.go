package commands

import (
	"encoding/json"
	"fmt"

	"github.com/l3aro/go-liveness/pkg/cache"
	"github.com/spf13/cobra"
)

// cacheCmd groups the cache subcommands
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the analysis cache",
	Long: `Liveness summaries are cached by graph fingerprint so that unchanged
methods are not solved again. The cache lives at cache_path in the config.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.store == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Cache: disabled")
			return nil
		}
		stats := current.store.Cache().Stats()

		if jsonOutput(cmd) {
			data, err := json.MarshalIndent(struct {
				Path string `json:"path"`
				cache.Stats
			}{current.store.Path(), stats}, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Path: %s\n", current.store.Path())
		fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", stats.Length)
		fmt.Fprintf(cmd.OutOrStdout(), "Size: %d bytes\n", stats.CurrentBytes)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if current.store == nil {
			return fmt.Errorf("cache is disabled")
		}
		n := current.store.Cache().Len()
		current.store.Clear()
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached summaries from %s\n", n, current.store.Path())
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the cache file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), current.cfg.CachePath)
		return nil
	},
}

func init() {
	cacheStatsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)
	RootCmd.AddCommand(cacheCmd)
}
