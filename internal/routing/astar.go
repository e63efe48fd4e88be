package routing

import (
	"container/heap"
	"math"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// searchState is one entry in the open set, ordered by f = g + h.
type searchState struct {
	nodeID string
	fScore float64
	index  int
}

// openSet is a min-priority-queue over f-scores.
type openSet []*searchState

func (pq openSet) Len() int           { return len(pq) }
func (pq openSet) Less(i, j int) bool { return pq[i].fScore < pq[j].fScore }
func (pq openSet) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i]; pq[i].index, pq[j].index = i, j }
func (pq *openSet) Push(x any)        { s := x.(*searchState); s.index = len(*pq); *pq = append(*pq, s) }
func (pq *openSet) Pop() any {
	old := *pq
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return s
}

// searchResult carries the reconstructed path and its accumulated totals.
type searchResult struct {
	nodeIDs       []string
	totalCost     float64
	totalDistance float64
}

// buildAdjacency turns the edge list into a directed adjacency map.
// Nodes with no entry simply have no outgoing edges; that is not an
// error condition.
func buildAdjacency(edges []models.GraphEdge) map[string][]models.GraphEdge {
	adj := make(map[string][]models.GraphEdge, len(edges))
	for _, e := range edges {
		adj[e.StartNodeID] = append(adj[e.StartNodeID], e)
	}
	return adj
}

// astar runs a best-first search from startID to endID. gScore holds the
// penalized cost used for ranking; distanceFrom separately accumulates
// raw unpenalized distance so the real-world total can be reported.
//
// "Not yet visited" is represented by absence from the score maps and
// read back as +Inf: conflating unknown with zero would make every
// tentative cost look like a non-improvement (or worse, a false one).
func astar(nodes map[string]models.GraphNode, adj map[string][]models.GraphEdge, startID, endID string) (*searchResult, bool) {
	goal, ok := nodes[endID]
	if !ok {
		return nil, false
	}

	gScore := map[string]float64{startID: 0}
	distanceFrom := map[string]float64{startID: 0}
	cameFrom := make(map[string]string)
	visited := make(map[string]bool)

	scoreOf := func(m map[string]float64, id string) float64 {
		if v, known := m[id]; known {
			return v
		}
		return math.Inf(1)
	}

	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &searchState{nodeID: startID, fScore: heuristic(nodes[startID], goal)})

	for open.Len() > 0 {
		current := heap.Pop(open).(*searchState)
		if visited[current.nodeID] {
			continue
		}
		visited[current.nodeID] = true

		if current.nodeID == endID {
			return reconstruct(cameFrom, gScore, distanceFrom, startID, endID), true
		}

		for _, edge := range adj[current.nodeID] {
			// A zero-distance self-loop can never improve a finalized
			// node; skip it outright instead of re-relaxing.
			if edge.EndNodeID == edge.StartNodeID {
				continue
			}
			if visited[edge.EndNodeID] {
				continue
			}

			tentative := gScore[current.nodeID] + edge.TraversalCost()
			if tentative >= scoreOf(gScore, edge.EndNodeID) {
				continue
			}

			cameFrom[edge.EndNodeID] = current.nodeID
			gScore[edge.EndNodeID] = tentative
			distanceFrom[edge.EndNodeID] = distanceFrom[current.nodeID] + edge.Distance

			neighbor, ok := nodes[edge.EndNodeID]
			if !ok {
				continue
			}
			heap.Push(open, &searchState{
				nodeID: edge.EndNodeID,
				fScore: tentative + heuristic(neighbor, goal),
			})
		}
	}

	return nil, false
}

// heuristic is the admissible straight-line lower bound on remaining
// cost: road distance can never undercut the great-circle distance and
// penalties never drop below 1 by convention.
func heuristic(n, goal models.GraphNode) float64 {
	return geo.Haversine(n.Lat, n.Lng, goal.Lat, goal.Lng)
}

// reconstruct walks predecessor links from the end node back to the
// start and reverses the result into start-to-end order.
func reconstruct(cameFrom map[string]string, gScore, distanceFrom map[string]float64, startID, endID string) *searchResult {
	ids := []string{endID}
	for cur := endID; cur != startID; {
		prev, ok := cameFrom[cur]
		if !ok {
			break
		}
		ids = append(ids, prev)
		cur = prev
	}

	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	return &searchResult{
		nodeIDs:       ids,
		totalCost:     gScore[endID],
		totalDistance: distanceFrom[endID],
	}
}
