package graphstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

func TestNodesFromRecords(t *testing.T) {
	nodes, err := nodesFromRecords([]map[string]any{
		{"id": "n1", "source_id": int64(42), "lat": 40.5, "lng": -74.5},
		{"id": "n2", "source_id": int64(43), "lat": int64(41), "lng": int64(-75)},
	})
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, models.GraphNode{ID: "n1", SourceID: 42, Lat: 40.5, Lng: -74.5}, nodes[0])
	assert.Equal(t, 41.0, nodes[1].Lat, "integer-written coordinates normalize to float")
}

func TestNodesFromRecordsMalformed(t *testing.T) {
	_, err := nodesFromRecords([]map[string]any{
		{"id": "", "lat": 40.5, "lng": -74.5},
	})
	assert.Error(t, err)

	_, err = nodesFromRecords([]map[string]any{
		{"id": "n1", "lat": "forty", "lng": -74.5},
	})
	assert.Error(t, err)
}

func TestEdgesFromRecords(t *testing.T) {
	edges, err := edgesFromRecords([]map[string]any{
		{"id": "e1", "start_node_id": "a", "end_node_id": "b",
			"distance": 120.5, "base_cost": 120.5, "penalty": int64(10)},
	})
	require.NoError(t, err)
	require.Len(t, edges, 1)

	assert.Equal(t, 120.5, edges[0].Distance)
	assert.Equal(t, 10.0, edges[0].Penalty)
}

func TestEdgesFromRecordsMalformed(t *testing.T) {
	_, err := edgesFromRecords([]map[string]any{
		{"id": "e1", "start_node_id": "a", "end_node_id": ""},
	})
	assert.Error(t, err)
}

func TestCountFromRecords(t *testing.T) {
	assert.Equal(t, 7, countFromRecords([]map[string]any{{"created": int64(7)}}, "created"))
	assert.Zero(t, countFromRecords(nil, "created"))
	assert.Zero(t, countFromRecords([]map[string]any{{"other": int64(7)}}, "created"))
}

func TestMemoryGraphEdgeDedup(t *testing.T) {
	g := NewMemoryGraph()
	ctx := context.Background()

	_, err := g.BulkCreateNodes(ctx, []models.GraphNode{
		{ID: "a", SourceID: 1, Lat: 0, Lng: 0},
		{ID: "b", SourceID: 2, Lat: 0.001, Lng: 0.001},
	})
	require.NoError(t, err)

	created, err := g.BulkCreateEdges(ctx, []models.GraphEdge{
		{ID: "e1", StartNodeID: "a", EndNodeID: "b", Distance: 100, Penalty: 1},
		{ID: "e2", StartNodeID: "b", EndNodeID: "a", Distance: 100, Penalty: 1},
		{ID: "e3", StartNodeID: "a", EndNodeID: "b", Distance: 100, Penalty: 1}, // duplicate pair
	})
	require.NoError(t, err)

	assert.Equal(t, 2, created, "the directional endpoint pair is the identity")
}

func TestMemoryGraphUpdateEdgePenalty(t *testing.T) {
	g := NewMemoryGraph()
	ctx := context.Background()

	_, err := g.BulkCreateEdges(ctx, []models.GraphEdge{
		{ID: "e1", StartNodeID: "a", EndNodeID: "b", Distance: 100, Penalty: 1},
	})
	require.NoError(t, err)

	require.NoError(t, g.UpdateEdgePenalty(ctx, "e1", 5))

	_, edges, err := g.LoadGraph(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, 5.0, edges[0].Penalty)

	assert.ErrorIs(t, g.UpdateEdgePenalty(ctx, "ghost", 5), ErrEdgeNotFound)
}

func TestMemoryGraphNodesInBounds(t *testing.T) {
	g := NewMemoryGraph()
	ctx := context.Background()

	_, err := g.BulkCreateNodes(ctx, []models.GraphNode{
		{ID: "in", SourceID: 1, Lat: 40.005, Lng: -74.005},
		{ID: "out", SourceID: 2, Lat: 50, Lng: 50},
	})
	require.NoError(t, err)

	nodes, err := g.NodesInBounds(ctx, geo.Bounds{MinLat: 40, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "in", nodes[0].ID)
}

// Every WITH...WHERE in the bulk-write statements must filter on a
// variable the WITH projects; Neo4j rejects the statement at compile
// time otherwise, which would fail every import against a real server.
func TestBulkWriteQueriesProjectCreatedFlag(t *testing.T) {
	queries := map[string]string{
		"nodes": bulkCreateNodesQuery,
		"edges": bulkCreateEdgesQuery,
	}

	for name, query := range queries {
		t.Run(name, func(t *testing.T) {
			require.Contains(t, query, "WHERE was_created")

			for _, clause := range withClauses(query) {
				if !strings.Contains(clause.where, "was_created") {
					continue
				}
				assert.Contains(t, clause.projection, "was_created",
					"WHERE filters on was_created, so the WITH must project it")
			}
		})
	}
}

type withClause struct {
	projection string
	where      string
}

// withClauses pairs each WITH line with the WHERE line that follows it,
// if any.
func withClauses(query string) []withClause {
	var clauses []withClause
	lines := strings.Split(query, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "WITH ") {
			continue
		}
		clause := withClause{projection: strings.TrimPrefix(trimmed, "WITH ")}
		if i+1 < len(lines) {
			if next := strings.TrimSpace(lines[i+1]); strings.HasPrefix(next, "WHERE ") {
				clause.where = strings.TrimPrefix(next, "WHERE ")
			}
		}
		clauses = append(clauses, clause)
	}
	return clauses
}
