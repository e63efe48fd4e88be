package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// GraphWriter is the slice of the graph store the builder writes through.
type GraphWriter interface {
	BulkCreateNodes(ctx context.Context, nodes []models.GraphNode) (int, error)
	ResolveNodeIDs(ctx context.Context, sourceIDs []int64) (map[int64]string, error)
	BulkCreateEdges(ctx context.Context, edges []models.GraphEdge) (int, error)
}

// Builder materializes fetched road data into the graph store. Writes
// go through idempotent skip-duplicate bulk operations, so re-running an
// import for an expanding bounding box is safe.
type Builder struct {
	fetcher RoadFetcher
	writer  GraphWriter
	logger  *logrus.Logger
}

// NewBuilder creates an ingestion builder.
func NewBuilder(fetcher RoadFetcher, writer GraphWriter, logger *logrus.Logger) *Builder {
	return &Builder{
		fetcher: fetcher,
		writer:  writer,
		logger:  logger,
	}
}

// Import fetches all driveable road segments inside the box and writes
// them to the graph store: nodes first, then internal id resolution,
// then bidirectional edges. Any failure aborts the whole import.
func (b *Builder) Import(ctx context.Context, bounds geo.Bounds) (*models.ImportResult, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	b.logger.WithFields(logrus.Fields{
		"min_lat": bounds.MinLat,
		"max_lat": bounds.MaxLat,
		"min_lng": bounds.MinLng,
		"max_lng": bounds.MaxLng,
	}).Info("Starting graph import")

	data, err := b.fetcher.FetchRoads(ctx, bounds)
	if err != nil {
		return nil, apperrors.IngestionError(err, "road data fetch failed")
	}

	nodes, skipped := collectNodes(data)
	if skipped > 0 {
		b.logger.WithField("skipped", skipped).Warn("Skipped way nodes with no resolvable coordinate")
	}

	nodesCreated, err := b.writer.BulkCreateNodes(ctx, nodes)
	if err != nil {
		return nil, apperrors.IngestionError(err, "bulk node write failed")
	}

	sourceIDs := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		sourceIDs = append(sourceIDs, n.SourceID)
	}
	resolved, err := b.writer.ResolveNodeIDs(ctx, sourceIDs)
	if err != nil {
		return nil, apperrors.IngestionError(err, "node id resolution failed")
	}

	edges := buildEdges(data, resolved)
	edgesCreated, err := b.writer.BulkCreateEdges(ctx, edges)
	if err != nil {
		return nil, apperrors.IngestionError(err, "bulk edge write failed")
	}

	result := &models.ImportResult{
		NodesCreated: nodesCreated,
		EdgesCreated: edgesCreated,
		WaysFetched:  len(data.Ways),
		Duration:     time.Since(startTime),
	}
	b.logger.WithFields(logrus.Fields{
		"ways":          result.WaysFetched,
		"nodes_created": result.NodesCreated,
		"edges_created": result.EdgesCreated,
		"duration":      result.Duration,
	}).Info("Graph import complete")

	return result, nil
}

// collectNodes deduplicates way members by external identifier and
// assigns one internal node per unique id. Way members without a
// resolvable coordinate are counted and skipped.
func collectNodes(data *RoadData) ([]models.GraphNode, int) {
	seen := make(map[int64]bool)
	var nodes []models.GraphNode
	skipped := 0

	for _, way := range data.Ways {
		for _, sid := range way.NodeIDs {
			if seen[sid] {
				continue
			}
			coord, ok := data.Nodes[sid]
			if !ok {
				seen[sid] = true
				skipped++
				continue
			}
			seen[sid] = true
			nodes = append(nodes, models.GraphNode{
				ID:       uuid.NewString(),
				SourceID: sid,
				Lat:      coord.Lat,
				Lng:      coord.Lng,
			})
		}
	}
	return nodes, skipped
}

// buildEdges emits two directed edges per consecutive node pair within
// each way, modeling bidirectional traversal. Distance and base cost are
// the great-circle distance; penalty starts at 1.0.
func buildEdges(data *RoadData, resolved map[int64]string) []models.GraphEdge {
	var edges []models.GraphEdge

	for _, way := range data.Ways {
		for i := 0; i+1 < len(way.NodeIDs); i++ {
			fromSID, toSID := way.NodeIDs[i], way.NodeIDs[i+1]
			fromID, okFrom := resolved[fromSID]
			toID, okTo := resolved[toSID]
			if !okFrom || !okTo {
				continue
			}
			fromCoord := data.Nodes[fromSID]
			toCoord := data.Nodes[toSID]
			distance := geo.Haversine(fromCoord.Lat, fromCoord.Lng, toCoord.Lat, toCoord.Lng)

			edges = append(edges,
				models.GraphEdge{
					ID:          uuid.NewString(),
					StartNodeID: fromID,
					EndNodeID:   toID,
					Distance:    distance,
					BaseCost:    distance,
					Penalty:     1.0,
				},
				models.GraphEdge{
					ID:          uuid.NewString(),
					StartNodeID: toID,
					EndNodeID:   fromID,
					Distance:    distance,
					BaseCost:    distance,
					Penalty:     1.0,
				},
			)
		}
	}
	return edges
}
