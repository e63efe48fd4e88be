package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show road-graph statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	client, store, err := newGraphStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	nodes, edges, err := store.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Road graph:\n")
	fmt.Printf("  Nodes: %d\n", nodes)
	fmt.Printf("  Edges: %d\n", edges)
	return nil
}
