// Package penalty is the mutation boundary between the issue lifecycle
// and the road graph: a reported issue raises the penalty multiplier on
// nearby edges, a resolved issue restores it. The pathfinder only ever
// reads the resulting multipliers.
package penalty

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// defaultRadiusDeg bounds how far around an issue the penalty reaches,
// roughly one short block.
const defaultRadiusDeg = 0.0005

// PenaltyStore is the slice of the graph store the applier works through.
type PenaltyStore interface {
	SetPenaltyNear(ctx context.Context, bounds geo.Bounds, penalty float64) (int, error)
	EdgesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]models.GraphEdge, error)
}

// Applier translates issue lifecycle events into edge penalty updates.
type Applier struct {
	graph     PenaltyStore
	radiusDeg float64
	logger    *slog.Logger
}

// NewApplier creates a penalty applier with the default reach radius.
func NewApplier(graph PenaltyStore) *Applier {
	return &Applier{
		graph:     graph,
		radiusDeg: defaultRadiusDeg,
		logger:    slog.Default().With("component", "penalty"),
	}
}

// ApplyIssue raises the penalty on edges near a reported issue.
// Multipliers below 1 are disallowed by convention: a discount would
// break the admissibility of the straight-line routing heuristic.
func (a *Applier) ApplyIssue(ctx context.Context, lat, lng, multiplier float64) (int, error) {
	if multiplier < 1 {
		return 0, fmt.Errorf("penalty multiplier %v below 1", multiplier)
	}

	updated, err := a.graph.SetPenaltyNear(ctx, geo.Around(lat, lng, a.radiusDeg), multiplier)
	if err != nil {
		return 0, fmt.Errorf("apply issue penalty: %w", err)
	}
	a.logger.Info("issue penalty applied",
		"lat", lat, "lng", lng, "multiplier", multiplier, "edges", updated)
	return updated, nil
}

// AffectedEdges returns the edges an issue at this location would
// penalize, for inspection before or after applying.
func (a *Applier) AffectedEdges(ctx context.Context, lat, lng float64) ([]models.GraphEdge, error) {
	edges, err := a.graph.EdgesNear(ctx, lat, lng, a.radiusDeg)
	if err != nil {
		return nil, fmt.Errorf("edges near issue: %w", err)
	}
	return edges, nil
}

// ClearIssue restores nearby edges to the neutral multiplier after an
// issue is resolved.
func (a *Applier) ClearIssue(ctx context.Context, lat, lng float64) (int, error) {
	updated, err := a.graph.SetPenaltyNear(ctx, geo.Around(lat, lng, a.radiusDeg), 1.0)
	if err != nil {
		return 0, fmt.Errorf("clear issue penalty: %w", err)
	}
	a.logger.Info("issue penalty cleared", "lat", lat, "lng", lng, "edges", updated)
	return updated, nil
}
