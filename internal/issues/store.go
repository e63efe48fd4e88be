// Package issues exposes the read/write boundary to the civic issue
// store. The reporting, voting and commenting workflow lives outside the
// routing core; it reaches this store through SaveIssue, while the
// geo-grid cache consumes the range queries.
package issues

import (
	"context"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// Store defines the issue storage interface.
type Store interface {
	// IssuesInBounds returns every issue inside the box. Resolved issues
	// are excluded unless includeResolved is set.
	IssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error)

	// RecentIssuesInBounds is the capped fallback for oversized boxes:
	// most recent first, truncated at limit.
	RecentIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool, limit int) ([]models.IssueSummary, error)

	// GetSummaries resolves a batch of issue IDs. Unknown IDs are
	// silently skipped; the result order is unspecified.
	GetSummaries(ctx context.Context, ids []string) ([]models.IssueSummary, error)

	// SaveIssue inserts or updates an issue snapshot.
	SaveIssue(ctx context.Context, issue *models.IssueSummary) error

	// Close releases the underlying connection.
	Close() error
}
