package graphstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// nodeBatchSize and edgeBatchSize bound UNWIND parameter lists so a large
// import never ships one giant statement.
const (
	nodeBatchSize = 1000
	edgeBatchSize = 1000
)

// ErrEdgeNotFound is returned when a penalty update targets an unknown edge.
var ErrEdgeNotFound = errors.New("edge not found")

// The bulk-write statements tag each merged entity with a temporary
// created flag, strip it, and count the rows where it was set. The flag
// must be projected through every WITH that precedes its WHERE filter;
// Cypher rejects a WITH...WHERE referencing a variable the WITH does
// not carry.
const (
	bulkCreateNodesQuery = `
		UNWIND $nodes AS node
		MERGE (n:RoadNode {source_id: node.source_id})
		ON CREATE SET n.id = node.id, n.lat = node.lat, n.lng = node.lng, n.created = true
		ON MATCH SET n.created = false
		WITH n, n.created AS was_created
		REMOVE n.created
		WITH n, was_created
		WHERE was_created
		RETURN count(n) AS created
	`

	bulkCreateEdgesQuery = `
		UNWIND $edges AS edge
		MATCH (a:RoadNode {id: edge.start_node_id})
		MATCH (b:RoadNode {id: edge.end_node_id})
		MERGE (a)-[r:ROAD_SEGMENT]->(b)
		ON CREATE SET r.id = edge.id, r.distance = edge.distance,
			r.base_cost = edge.base_cost, r.penalty = edge.penalty, r.created = true
		ON MATCH SET r.created = false
		WITH r, r.created AS was_created
		REMOVE r.created
		WITH r, was_created
		WHERE was_created
		RETURN count(r) AS created
	`
)

// Store provides road-graph persistence on top of a Client.
type Store struct {
	client *Client
}

// NewStore creates a graph store and ensures schema constraints exist.
func NewStore(ctx context.Context, client *Client) (*Store, error) {
	s := &Store{client: client}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("init graph schema: %w", err)
	}
	return s, nil
}

// initSchema creates the uniqueness constraint on the external source
// identifier and the range indexes backing bounding-box node lookups.
func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT road_node_source_id IF NOT EXISTS
		 FOR (n:RoadNode) REQUIRE n.source_id IS UNIQUE`,
		`CREATE INDEX road_node_lat IF NOT EXISTS FOR (n:RoadNode) ON (n.lat)`,
		`CREATE INDEX road_node_lng IF NOT EXISTS FOR (n:RoadNode) ON (n.lng)`,
	}
	for _, stmt := range statements {
		if _, err := s.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// BulkCreateNodes writes nodes in batches using UNWIND + MERGE keyed on
// source_id. Re-imports are idempotent: an existing node keeps its
// internal id and coordinates.
func (s *Store) BulkCreateNodes(ctx context.Context, nodes []models.GraphNode) (int, error) {
	if len(nodes) == 0 {
		return 0, nil
	}

	created := 0
	for start := 0; start < len(nodes); start += nodeBatchSize {
		end := start + nodeBatchSize
		if end > len(nodes) {
			end = len(nodes)
		}

		batch := make([]map[string]any, 0, end-start)
		for _, n := range nodes[start:end] {
			batch = append(batch, map[string]any{
				"id":        n.ID,
				"source_id": n.SourceID,
				"lat":       n.Lat,
				"lng":       n.Lng,
			})
		}

		records, err := s.client.ExecuteWrite(ctx, bulkCreateNodesQuery, map[string]any{"nodes": batch})
		if err != nil {
			return created, apperrors.Wrapf(err, apperrors.TypeStore, "batch node creation failed (batch %d-%d)", start, end)
		}
		created += countFromRecords(records, "created")
	}
	return created, nil
}

// ResolveNodeIDs maps external source identifiers to internal node ids
// after a bulk node write.
func (s *Store) ResolveNodeIDs(ctx context.Context, sourceIDs []int64) (map[int64]string, error) {
	resolved := make(map[int64]string, len(sourceIDs))

	query := `
		UNWIND $source_ids AS sid
		MATCH (n:RoadNode {source_id: sid})
		RETURN n.source_id AS source_id, n.id AS id
	`

	for start := 0; start < len(sourceIDs); start += nodeBatchSize {
		end := start + nodeBatchSize
		if end > len(sourceIDs) {
			end = len(sourceIDs)
		}

		records, err := s.client.ExecuteRead(ctx, query, map[string]any{"source_ids": sourceIDs[start:end]})
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.TypeStore, "resolve node ids failed (batch %d-%d)", start, end)
		}
		for _, rec := range records {
			sid, ok1 := rec["source_id"].(int64)
			id, ok2 := rec["id"].(string)
			if !ok1 || !ok2 {
				return nil, fmt.Errorf("unexpected record shape resolving node ids: %v", rec)
			}
			resolved[sid] = id
		}
	}
	return resolved, nil
}

// BulkCreateEdges writes directional edges in batches. The relationship
// is keyed by its endpoint pair, so re-importing the same segment is a
// no-op; penalty is only set on create, never clobbered by re-import.
func (s *Store) BulkCreateEdges(ctx context.Context, edges []models.GraphEdge) (int, error) {
	if len(edges) == 0 {
		return 0, nil
	}

	created := 0
	for start := 0; start < len(edges); start += edgeBatchSize {
		end := start + edgeBatchSize
		if end > len(edges) {
			end = len(edges)
		}

		batch := make([]map[string]any, 0, end-start)
		for _, e := range edges[start:end] {
			batch = append(batch, map[string]any{
				"id":            e.ID,
				"start_node_id": e.StartNodeID,
				"end_node_id":   e.EndNodeID,
				"distance":      e.Distance,
				"base_cost":     e.BaseCost,
				"penalty":       e.Penalty,
			})
		}

		records, err := s.client.ExecuteWrite(ctx, bulkCreateEdgesQuery, map[string]any{"edges": batch})
		if err != nil {
			return created, apperrors.Wrapf(err, apperrors.TypeStore, "batch edge creation failed (batch %d-%d)", start, end)
		}
		created += countFromRecords(records, "created")
	}
	return created, nil
}

// NodesInBounds returns every node inside the bounding box.
func (s *Store) NodesInBounds(ctx context.Context, bounds geo.Bounds) ([]models.GraphNode, error) {
	query := `
		MATCH (n:RoadNode)
		WHERE n.lat >= $min_lat AND n.lat <= $max_lat
		  AND n.lng >= $min_lng AND n.lng <= $max_lng
		RETURN n.id AS id, n.source_id AS source_id, n.lat AS lat, n.lng AS lng
	`
	records, err := s.client.ExecuteRead(ctx, query, map[string]any{
		"min_lat": bounds.MinLat,
		"max_lat": bounds.MaxLat,
		"min_lng": bounds.MinLng,
		"max_lng": bounds.MaxLng,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeStore, "nodes in bounds")
	}
	return nodesFromRecords(records)
}

// AllNodes loads every road node.
func (s *Store) AllNodes(ctx context.Context) ([]models.GraphNode, error) {
	query := `
		MATCH (n:RoadNode)
		RETURN n.id AS id, n.source_id AS source_id, n.lat AS lat, n.lng AS lng
	`
	records, err := s.client.ExecuteRead(ctx, query, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeStore, "load nodes")
	}
	return nodesFromRecords(records)
}

// AllEdges loads every directional road segment.
func (s *Store) AllEdges(ctx context.Context) ([]models.GraphEdge, error) {
	query := `
		MATCH (a:RoadNode)-[r:ROAD_SEGMENT]->(b:RoadNode)
		RETURN r.id AS id, a.id AS start_node_id, b.id AS end_node_id,
		       r.distance AS distance, r.base_cost AS base_cost, r.penalty AS penalty
	`
	records, err := s.client.ExecuteRead(ctx, query, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeStore, "load edges")
	}
	return edgesFromRecords(records)
}

// LoadGraph fetches nodes and edges concurrently for a routing request.
func (s *Store) LoadGraph(ctx context.Context) ([]models.GraphNode, []models.GraphEdge, error) {
	var (
		nodes []models.GraphNode
		edges []models.GraphEdge
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		nodes, err = s.AllNodes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		edges, err = s.AllEdges(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

// UpdateEdgePenalty sets the penalty multiplier on a single edge.
func (s *Store) UpdateEdgePenalty(ctx context.Context, edgeID string, penalty float64) error {
	query := `
		MATCH ()-[r:ROAD_SEGMENT {id: $id}]->()
		SET r.penalty = $penalty
		RETURN count(r) AS updated
	`
	records, err := s.client.ExecuteWrite(ctx, query, map[string]any{
		"id":      edgeID,
		"penalty": penalty,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeStore, "update edge penalty")
	}
	if countFromRecords(records, "updated") == 0 {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	return nil
}

// SetPenaltyNear updates the penalty multiplier on every edge with at
// least one endpoint inside the box. Returns the number of edges touched.
// This is the write path of the issue lifecycle boundary.
func (s *Store) SetPenaltyNear(ctx context.Context, bounds geo.Bounds, penalty float64) (int, error) {
	query := `
		MATCH (a:RoadNode)-[r:ROAD_SEGMENT]-(b:RoadNode)
		WHERE (a.lat >= $min_lat AND a.lat <= $max_lat AND a.lng >= $min_lng AND a.lng <= $max_lng)
		   OR (b.lat >= $min_lat AND b.lat <= $max_lat AND b.lng >= $min_lng AND b.lng <= $max_lng)
		SET r.penalty = $penalty
		RETURN count(DISTINCT r) AS updated
	`
	records, err := s.client.ExecuteWrite(ctx, query, map[string]any{
		"min_lat": bounds.MinLat,
		"max_lat": bounds.MaxLat,
		"min_lng": bounds.MinLng,
		"max_lng": bounds.MaxLng,
		"penalty": penalty,
	})
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.TypeStore, "set penalty near")
	}
	return countFromRecords(records, "updated"), nil
}

// EdgesNear returns every edge with at least one endpoint inside the
// box around a point. Read-side companion to SetPenaltyNear, used to
// inspect what an issue currently penalizes.
func (s *Store) EdgesNear(ctx context.Context, lat, lng, radiusDeg float64) ([]models.GraphEdge, error) {
	bounds := geo.Around(lat, lng, radiusDeg)
	query := `
		MATCH (a:RoadNode)-[r:ROAD_SEGMENT]->(b:RoadNode)
		WHERE (a.lat >= $min_lat AND a.lat <= $max_lat AND a.lng >= $min_lng AND a.lng <= $max_lng)
		   OR (b.lat >= $min_lat AND b.lat <= $max_lat AND b.lng >= $min_lng AND b.lng <= $max_lng)
		RETURN r.id AS id, a.id AS start_node_id, b.id AS end_node_id,
		       r.distance AS distance, r.base_cost AS base_cost, r.penalty AS penalty
	`
	records, err := s.client.ExecuteRead(ctx, query, map[string]any{
		"min_lat": bounds.MinLat,
		"max_lat": bounds.MaxLat,
		"min_lng": bounds.MinLng,
		"max_lng": bounds.MaxLng,
	})
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeStore, "edges near (%f, %f)", lat, lng)
	}
	return edgesFromRecords(records)
}

// Stats returns node and edge counts.
func (s *Store) Stats(ctx context.Context) (nodeCount, edgeCount int, err error) {
	records, err := s.client.ExecuteRead(ctx, `
		MATCH (n:RoadNode)
		OPTIONAL MATCH ()-[r:ROAD_SEGMENT]->()
		RETURN count(DISTINCT n) AS nodes, count(DISTINCT r) AS edges
	`, nil)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.TypeStore, "graph stats")
	}
	return countFromRecords(records, "nodes"), countFromRecords(records, "edges"), nil
}

func countFromRecords(records []map[string]any, field string) int {
	if len(records) == 0 {
		return 0
	}
	if v, ok := records[0][field].(int64); ok {
		return int(v)
	}
	return 0
}

func nodesFromRecords(records []map[string]any) ([]models.GraphNode, error) {
	nodes := make([]models.GraphNode, 0, len(records))
	for _, rec := range records {
		id, _ := rec["id"].(string)
		sourceID, _ := rec["source_id"].(int64)
		lat, okLat := asFloat(rec["lat"])
		lng, okLng := asFloat(rec["lng"])
		if id == "" || !okLat || !okLng {
			return nil, fmt.Errorf("unexpected node record: %v", rec)
		}
		nodes = append(nodes, models.GraphNode{ID: id, SourceID: sourceID, Lat: lat, Lng: lng})
	}
	return nodes, nil
}

func edgesFromRecords(records []map[string]any) ([]models.GraphEdge, error) {
	edges := make([]models.GraphEdge, 0, len(records))
	for _, rec := range records {
		id, _ := rec["id"].(string)
		start, _ := rec["start_node_id"].(string)
		end, _ := rec["end_node_id"].(string)
		if id == "" || start == "" || end == "" {
			return nil, fmt.Errorf("unexpected edge record: %v", rec)
		}
		distance, _ := asFloat(rec["distance"])
		baseCost, _ := asFloat(rec["base_cost"])
		penalty, _ := asFloat(rec["penalty"])
		edges = append(edges, models.GraphEdge{
			ID:          id,
			StartNodeID: start,
			EndNodeID:   end,
			Distance:    distance,
			BaseCost:    baseCost,
			Penalty:     penalty,
		})
	}
	return edges, nil
}

// asFloat normalizes Neo4j numeric records, which may come back as
// int64 or float64 depending on how the property was written.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
