package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicmaps/civicroute/internal/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Find a route between two coordinates",
	Long: `Snap the start and end coordinates to the nearest road nodes and find
the lowest-cost path between them. Segment costs include penalties from
reported issues, so the returned route can be longer than the shortest
one when the short way is degraded.`,
	RunE: runRoute,
}

func init() {
	routeCmd.Flags().Float64("from-lat", 0, "start latitude")
	routeCmd.Flags().Float64("from-lng", 0, "start longitude")
	routeCmd.Flags().Float64("to-lat", 0, "destination latitude")
	routeCmd.Flags().Float64("to-lng", 0, "destination longitude")
	routeCmd.Flags().Bool("json", false, "print the full path as JSON")
	routeCmd.MarkFlagRequired("from-lat")
	routeCmd.MarkFlagRequired("from-lng")
	routeCmd.MarkFlagRequired("to-lat")
	routeCmd.MarkFlagRequired("to-lng")
}

func runRoute(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fromLat, _ := cmd.Flags().GetFloat64("from-lat")
	fromLng, _ := cmd.Flags().GetFloat64("from-lng")
	toLat, _ := cmd.Flags().GetFloat64("to-lat")
	toLng, _ := cmd.Flags().GetFloat64("to-lng")
	asJSON, _ := cmd.Flags().GetBool("json")

	client, store, err := newGraphStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	pathfinder := routing.NewPathfinder(store, cfg.Routing)
	result, err := pathfinder.FindPath(ctx, fromLat, fromLng, toLat, toLng)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("Route found: %d points\n", len(result.Path))
	fmt.Printf("  Distance:  %.0f m\n", result.TotalDistance)
	fmt.Printf("  Cost:      %.0f\n", result.TotalCost)
	fmt.Printf("  Est. time: %.1f min\n", result.EstimatedTime)
	return nil
}
