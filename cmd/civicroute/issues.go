package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicmaps/civicroute/internal/gridcache"
)

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "List issues inside a bounding box",
	Long: `Query the issues visible inside a bounding box, served through the
geo-grid cache. Resolved issues are hidden unless --include-resolved
is set.`,
	RunE: runIssues,
}

func init() {
	registerBoundsFlags(issuesCmd)
	issuesCmd.Flags().Bool("include-resolved", false, "include resolved issues")
	issuesCmd.Flags().Bool("json", false, "print issues as JSON")
}

func runIssues(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	bounds, err := boundsFromFlags(cmd)
	if err != nil {
		return err
	}
	includeResolved, _ := cmd.Flags().GetBool("include-resolved")
	asJSON, _ := cmd.Flags().GetBool("json")

	cacheSvc := newCacheService(ctx, cfg)
	defer cacheSvc.Close()

	issueStore, err := newIssueStore(cfg)
	if err != nil {
		return err
	}
	defer issueStore.Close()

	grid := gridcache.New(cacheSvc, issueStore, cfg.Grid)
	summaries, err := grid.GetIssuesInBounds(ctx, bounds, includeResolved)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	fmt.Printf("%d issues\n", len(summaries))
	for _, s := range summaries {
		fmt.Printf("  %s  [%s] %s (%.5f, %.5f)\n", s.ID, s.Status, s.Type, s.Lat, s.Lng)
	}
	return nil
}
