package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cdbpatch/internal/cache"
	"github.com/Norgate-AV/cdbpatch/internal/codes"
	"github.com/Norgate-AV/cdbpatch/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent toolchain probe cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:          "stats",
	Short:        "Show probe cache statistics",
	RunE:         runCacheStats,
	SilenceUsage: true,
	Args:         exactArgs(0),
}

var cacheClearCmd = &cobra.Command{
	Use:          "clear",
	Short:        "Remove all cached probe results",
	RunE:         runCacheClear,
	SilenceUsage: true,
	Args:         exactArgs(0),
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache(cmd *cobra.Command) (*cache.Cache, error) {
	dir, err := config.NewLoader().LoadCacheDir(cmd)
	if err != nil {
		return nil, &codes.UsageError{Err: err}
	}

	return cache.New(dir)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	count, size, err := c.Stats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cache: %s\n", c.Root())
	fmt.Fprintf(out, "Entries: %d\n", count)
	fmt.Fprintf(out, "Size: %s\n", humanize.Bytes(uint64(size)))

	return nil
}

func runCacheClear(cmd *cobra.Command, _ []string) error {
	c, err := openCache(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", c.Root())

	return nil
}
