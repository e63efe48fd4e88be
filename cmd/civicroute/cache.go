package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/civicmaps/civicroute/internal/gridcache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the geo-grid issue cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached grid cells and issue summaries",
	Long: `Delete every cached grid cell and issue summary. The next map-view
query repopulates the cache from the issue store.`,
	RunE: runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cacheSvc := newCacheService(ctx, cfg)
	defer cacheSvc.Close()

	issueStore, err := newIssueStore(cfg)
	if err != nil {
		return err
	}
	defer issueStore.Close()

	grid := gridcache.New(cacheSvc, issueStore, cfg.Grid)
	if err := grid.ClearAll(ctx); err != nil {
		return err
	}
	logger.Info("Cache cleared")
	return nil
}
