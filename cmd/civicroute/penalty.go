package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/civicmaps/civicroute/internal/penalty"
)

var penaltyCmd = &cobra.Command{
	Use:   "penalty",
	Short: "Apply or clear issue penalties on road segments",
	Long: `Mutate the penalty multiplier on road segments near a coordinate.
The issue reporting workflow normally drives these updates; this command
exists for manual correction and backfills.`,
}

var penaltyApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Raise the penalty on segments near a coordinate",
	RunE:  runPenaltyApply,
}

var penaltyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Restore segments near a coordinate to the neutral multiplier",
	RunE:  runPenaltyClear,
}

func init() {
	for _, c := range []*cobra.Command{penaltyApplyCmd, penaltyClearCmd} {
		c.Flags().Float64("lat", 0, "issue latitude")
		c.Flags().Float64("lng", 0, "issue longitude")
		c.MarkFlagRequired("lat")
		c.MarkFlagRequired("lng")
	}
	penaltyApplyCmd.Flags().Float64("multiplier", 10, "penalty multiplier (>= 1)")

	penaltyCmd.AddCommand(penaltyApplyCmd)
	penaltyCmd.AddCommand(penaltyClearCmd)
}

func runPenaltyApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")
	multiplier, _ := cmd.Flags().GetFloat64("multiplier")

	client, store, err := newGraphStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	applier := penalty.NewApplier(store)
	updated, err := applier.ApplyIssue(ctx, lat, lng, multiplier)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"lat": lat, "lng": lng, "multiplier": multiplier, "edges": updated,
	}).Info("Penalty applied")
	return nil
}

func runPenaltyClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	lat, _ := cmd.Flags().GetFloat64("lat")
	lng, _ := cmd.Flags().GetFloat64("lng")

	client, store, err := newGraphStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	applier := penalty.NewApplier(store)
	updated, err := applier.ClearIssue(ctx, lat, lng)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"lat": lat, "lng": lng, "edges": updated,
	}).Info("Penalty cleared")
	return nil
}
