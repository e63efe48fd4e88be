package main

import (
	"github.com/spf13/cobra"

	"github.com/civicmaps/civicroute/internal/geo"
)

// registerBoundsFlags adds the shared bounding-box flags to a command.
func registerBoundsFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("min-lat", 0, "southern edge of the bounding box")
	cmd.Flags().Float64("max-lat", 0, "northern edge of the bounding box")
	cmd.Flags().Float64("min-lng", 0, "western edge of the bounding box")
	cmd.Flags().Float64("max-lng", 0, "eastern edge of the bounding box")
	cmd.MarkFlagRequired("min-lat")
	cmd.MarkFlagRequired("max-lat")
	cmd.MarkFlagRequired("min-lng")
	cmd.MarkFlagRequired("max-lng")
}

// boundsFromFlags reads the shared bounding-box flags and validates them.
func boundsFromFlags(cmd *cobra.Command) (geo.Bounds, error) {
	minLat, _ := cmd.Flags().GetFloat64("min-lat")
	maxLat, _ := cmd.Flags().GetFloat64("max-lat")
	minLng, _ := cmd.Flags().GetFloat64("min-lng")
	maxLng, _ := cmd.Flags().GetFloat64("max-lng")

	bounds := geo.Bounds{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
	if err := bounds.Validate(); err != nil {
		return geo.Bounds{}, err
	}
	return bounds, nil
}
