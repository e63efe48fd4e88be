// Package routing implements point-to-point route finding over the road
// graph: endpoint snapping, penalized-cost A* search and path
// reconstruction.
package routing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicmaps/civicroute/internal/config"
	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// GraphSource is the slice of the graph store the pathfinder reads.
type GraphSource interface {
	NodesInBounds(ctx context.Context, bounds geo.Bounds) ([]models.GraphNode, error)
	LoadGraph(ctx context.Context) ([]models.GraphNode, []models.GraphEdge, error)
}

// Pathfinder executes route queries. Each request is independent and
// loads its own graph slice, so concurrent callers share no mutable
// search state.
type Pathfinder struct {
	graph  GraphSource
	cfg    config.RoutingConfig
	logger *slog.Logger
}

// NewPathfinder creates a pathfinder over the given graph source.
func NewPathfinder(graph GraphSource, cfg config.RoutingConfig) *Pathfinder {
	if len(cfg.SnapRadii) == 0 {
		cfg.SnapRadii = []float64{0.001, 0.005, 0.01, 0.05}
	}
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 30
	}
	return &Pathfinder{
		graph:  graph,
		cfg:    cfg,
		logger: slog.Default().With("component", "routing"),
	}
}

// Snap maps an arbitrary coordinate onto the nearest graph node, trying
// an expanding sequence of bounding-box radii. Among the nodes found at
// the first non-empty radius, the one minimizing straight-line distance
// wins. Exhausting the largest radius yields ErrNodeNotFound.
func (p *Pathfinder) Snap(ctx context.Context, lat, lng float64) (models.GraphNode, error) {
	for _, radius := range p.cfg.SnapRadii {
		nodes, err := p.graph.NodesInBounds(ctx, geo.Around(lat, lng, radius))
		if err != nil {
			return models.GraphNode{}, fmt.Errorf("snap lookup at radius %v: %w", radius, err)
		}
		if len(nodes) == 0 {
			continue
		}

		best := nodes[0]
		bestDist := geo.Haversine(lat, lng, best.Lat, best.Lng)
		for _, n := range nodes[1:] {
			if d := geo.Haversine(lat, lng, n.Lat, n.Lng); d < bestDist {
				best, bestDist = n, d
			}
		}
		p.logger.Debug("snapped coordinate",
			"lat", lat, "lng", lng, "node", best.ID, "radius", radius, "distance_m", bestDist)
		return best, nil
	}
	return models.GraphNode{}, fmt.Errorf("%w: (%f, %f)", apperrors.ErrNodeNotFound, lat, lng)
}

// FindPath computes the minimum penalized-cost route between two
// coordinates. Either a complete path is returned or an error; there are
// no partial results.
func (p *Pathfinder) FindPath(ctx context.Context, startLat, startLng, endLat, endLng float64) (*models.PathResult, error) {
	start, err := p.Snap(ctx, startLat, startLng)
	if err != nil {
		return nil, err
	}
	end, err := p.Snap(ctx, endLat, endLng)
	if err != nil {
		return nil, err
	}

	if start.ID == end.ID {
		return &models.PathResult{
			Path:          []models.Coordinate{{Lat: start.Lat, Lng: start.Lng}, {Lat: end.Lat, Lng: end.Lng}},
			TotalDistance: 0,
			TotalCost:     0,
			EstimatedTime: 0,
		}, nil
	}

	nodeList, edges, err := p.graph.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}

	nodes := make(map[string]models.GraphNode, len(nodeList))
	for _, n := range nodeList {
		nodes[n.ID] = n
	}
	adj := buildAdjacency(edges)

	result, found := astar(nodes, adj, start.ID, end.ID)
	if !found {
		return nil, fmt.Errorf("%w: %s -> %s", apperrors.ErrNoPathFound, start.ID, end.ID)
	}

	path := make([]models.Coordinate, 0, len(result.nodeIDs))
	for _, id := range result.nodeIDs {
		n := nodes[id]
		path = append(path, models.Coordinate{Lat: n.Lat, Lng: n.Lng})
	}

	estimatedTime := (result.totalDistance / 1000.0) / p.cfg.AverageSpeedKmh * 60.0

	p.logger.Debug("path found",
		"points", len(path),
		"distance_m", result.totalDistance,
		"cost", result.totalCost)

	return &models.PathResult{
		Path:          path,
		TotalDistance: result.totalDistance,
		TotalCost:     result.totalCost,
		EstimatedTime: estimatedTime,
	}, nil
}
