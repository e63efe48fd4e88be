package graphstore

import (
	"context"
	"sync"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// MemoryGraph is an in-memory graph store used for unit testing the
// builder, pathfinder and penalty applier without a Neo4j instance. It
// mirrors the Store semantics: nodes deduplicated on source id, edges
// deduplicated on their directional endpoint pair.
type MemoryGraph struct {
	mu    sync.RWMutex
	nodes map[int64]models.GraphNode // keyed by source id
	edges map[[2]string]models.GraphEdge
}

// NewMemoryGraph instantiates an empty in-memory graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		nodes: make(map[int64]models.GraphNode),
		edges: make(map[[2]string]models.GraphEdge),
	}
}

func (g *MemoryGraph) BulkCreateNodes(_ context.Context, nodes []models.GraphNode) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	created := 0
	for _, n := range nodes {
		if _, exists := g.nodes[n.SourceID]; exists {
			continue
		}
		g.nodes[n.SourceID] = n
		created++
	}
	return created, nil
}

func (g *MemoryGraph) ResolveNodeIDs(_ context.Context, sourceIDs []int64) (map[int64]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	resolved := make(map[int64]string, len(sourceIDs))
	for _, sid := range sourceIDs {
		if n, ok := g.nodes[sid]; ok {
			resolved[sid] = n.ID
		}
	}
	return resolved, nil
}

func (g *MemoryGraph) BulkCreateEdges(_ context.Context, edges []models.GraphEdge) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	created := 0
	for _, e := range edges {
		key := [2]string{e.StartNodeID, e.EndNodeID}
		if _, exists := g.edges[key]; exists {
			continue
		}
		g.edges[key] = e
		created++
	}
	return created, nil
}

func (g *MemoryGraph) NodesInBounds(_ context.Context, bounds geo.Bounds) ([]models.GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []models.GraphNode
	for _, n := range g.nodes {
		if bounds.Contains(n.Lat, n.Lng) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (g *MemoryGraph) AllNodes(context.Context) ([]models.GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]models.GraphNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (g *MemoryGraph) AllEdges(context.Context) ([]models.GraphEdge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]models.GraphEdge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out, nil
}

func (g *MemoryGraph) LoadGraph(ctx context.Context) ([]models.GraphNode, []models.GraphEdge, error) {
	nodes, err := g.AllNodes(ctx)
	if err != nil {
		return nil, nil, err
	}
	edges, err := g.AllEdges(ctx)
	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func (g *MemoryGraph) UpdateEdgePenalty(_ context.Context, edgeID string, penalty float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, e := range g.edges {
		if e.ID == edgeID {
			e.Penalty = penalty
			g.edges[key] = e
			return nil
		}
	}
	return ErrEdgeNotFound
}

func (g *MemoryGraph) SetPenaltyNear(_ context.Context, bounds geo.Bounds, penalty float64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byID := make(map[string]models.GraphNode, len(g.nodes))
	for _, n := range g.nodes {
		byID[n.ID] = n
	}

	updated := 0
	for key, e := range g.edges {
		a, okA := byID[e.StartNodeID]
		b, okB := byID[e.EndNodeID]
		if (okA && bounds.Contains(a.Lat, a.Lng)) || (okB && bounds.Contains(b.Lat, b.Lng)) {
			e.Penalty = penalty
			g.edges[key] = e
			updated++
		}
	}
	return updated, nil
}

func (g *MemoryGraph) EdgesNear(_ context.Context, lat, lng, radiusDeg float64) ([]models.GraphEdge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	bounds := geo.Around(lat, lng, radiusDeg)
	byID := make(map[string]models.GraphNode, len(g.nodes))
	for _, n := range g.nodes {
		byID[n.ID] = n
	}

	var out []models.GraphEdge
	for _, e := range g.edges {
		a, okA := byID[e.StartNodeID]
		b, okB := byID[e.EndNodeID]
		if (okA && bounds.Contains(a.Lat, a.Lng)) || (okB && bounds.Contains(b.Lat, b.Lng)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *MemoryGraph) Stats(context.Context) (int, int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), len(g.edges), nil
}
