package models

import (
	"time"
)

// GraphNode represents a road-network intersection or way point.
// Nodes are created during ingestion and immutable afterwards; identity
// is the external map provider identifier (SourceID), deduplicated on import.
type GraphNode struct {
	ID       string  `json:"id" db:"id"`
	SourceID int64   `json:"source_id" db:"source_id"`
	Lat      float64 `json:"lat" db:"lat"`
	Lng      float64 `json:"lng" db:"lng"`
}

// GraphEdge represents one directed traversal of a road segment.
// Edges are created in forward/reverse pairs per segment. Penalty is a
// multiplier mutated by issue-report events outside the routing core;
// the pathfinder only reads it.
type GraphEdge struct {
	ID          string  `json:"id" db:"id"`
	StartNodeID string  `json:"start_node_id" db:"start_node_id"`
	EndNodeID   string  `json:"end_node_id" db:"end_node_id"`
	Distance    float64 `json:"distance" db:"distance"` // meters
	BaseCost    float64 `json:"base_cost" db:"base_cost"`
	Penalty     float64 `json:"penalty" db:"penalty"` // multiplier, default 1.0
}

// EffectivePenalty returns the penalty multiplier to use for traversal
// cost. A stored penalty of zero means "never set", not "free edge";
// treating it as zero would zero out the cost and corrupt relaxation.
func (e *GraphEdge) EffectivePenalty() float64 {
	if e.Penalty == 0 {
		return 1.0
	}
	return e.Penalty
}

// TraversalCost is the penalized cost used for ranking during search.
func (e *GraphEdge) TraversalCost() float64 {
	return e.Distance * e.EffectivePenalty()
}

// IssueSummary is the read-only snapshot of a civic issue served to map
// views. Cached copies may be stale up to their TTL.
type IssueSummary struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Status       string    `json:"status" db:"status"`
	Type         string    `json:"type" db:"type"`
	Lat          float64   `json:"lat" db:"lat"`
	Lng          float64   `json:"lng" db:"lng"`
	VoteCount    int       `json:"vote_count" db:"vote_count"`
	CommentCount int       `json:"comment_count" db:"comment_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Issue statuses understood by the filtering layer.
const (
	IssueStatusOpen       = "open"
	IssueStatusInProgress = "in_progress"
	IssueStatusResolved   = "resolved"
)

// IsResolved reports whether the issue has been closed out.
func (s *IssueSummary) IsResolved() bool {
	return s.Status == IssueStatusResolved
}

// Coordinate is a latitude/longitude pair (WGS 84).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PathResult is the outcome of a successful route query.
type PathResult struct {
	Path          []Coordinate `json:"path"`
	TotalDistance float64      `json:"total_distance"` // meters, unpenalized
	TotalCost     float64      `json:"total_cost"`     // penalized cost used for ranking
	EstimatedTime float64      `json:"estimated_time"` // minutes at the configured average speed
}

// ImportResult summarizes a graph ingestion run.
type ImportResult struct {
	NodesCreated int           `json:"nodes_created"`
	EdgesCreated int           `json:"edges_created"`
	WaysFetched  int           `json:"ways_fetched"`
	Duration     time.Duration `json:"duration"`
}
