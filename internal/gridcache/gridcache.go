// Package gridcache serves bounding-box issue queries through a
// fixed-size grid of cache cells, so map views do not overwhelm the
// backing issue store. The cache is an optimization: any backend failure
// degrades to a direct store query, never a failed request.
package gridcache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/civicmaps/civicroute/internal/cache"
	"github.com/civicmaps/civicroute/internal/config"
	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/issues"
	"github.com/civicmaps/civicroute/internal/models"
)

// GridCache resolves issue queries through per-cell ID lists and
// per-issue summary snapshots, each with its own TTL.
type GridCache struct {
	cache  cache.Service
	store  issues.Store
	cfg    config.GridConfig
	logger *slog.Logger
}

// New creates a grid cache. The cache handle is passed in explicitly;
// there is no shared global instance.
func New(cacheSvc cache.Service, store issues.Store, cfg config.GridConfig) *GridCache {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 0.01
	}
	if cfg.MaxCells <= 0 {
		cfg.MaxCells = 100
	}
	if cfg.FallbackLimit <= 0 {
		cfg.FallbackLimit = 500
	}
	return &GridCache{
		cache:  cacheSvc,
		store:  store,
		cfg:    cfg,
		logger: slog.Default().With("component", "gridcache"),
	}
}

// GetIssuesInBounds returns every issue summary inside the exact box.
// Resolved issues are excluded unless includeResolved is set. Cells can
// overshoot the query box, so a final bounds-exact filter pass always
// runs over the candidate set.
func (g *GridCache) GetIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error) {
	if err := bounds.Validate(); err != nil {
		return nil, err
	}

	// Degenerate large-area queries bypass the cache entirely and hit a
	// capped recency query instead.
	if geo.CellCount(bounds, g.cfg.CellSize) > g.cfg.MaxCells {
		g.logger.Debug("bounds exceed cell cap, using direct query",
			"cells", geo.CellCount(bounds, g.cfg.CellSize), "cap", g.cfg.MaxCells)
		summaries, err := g.store.RecentIssuesInBounds(ctx, bounds, includeResolved, g.cfg.FallbackLimit)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeStore, "direct issue query")
		}
		return finalize(summaries, bounds, includeResolved), nil
	}

	ids, degraded, err := g.resolveCellIDs(ctx, bounds, includeResolved)
	if err != nil {
		return nil, err
	}
	if degraded {
		// Cache backend unavailable: serve straight from the store.
		summaries, err := g.store.IssuesInBounds(ctx, bounds, includeResolved)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeStore, "degraded issue query")
		}
		return finalize(summaries, bounds, includeResolved), nil
	}

	summaries, err := g.resolveSummaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	return finalize(summaries, bounds, includeResolved), nil
}

// resolveCellIDs gathers the candidate issue IDs for every cell covering
// the box, filling cache misses from the store. The first cache read
// failure flips the whole request into degraded mode.
func (g *GridCache) resolveCellIDs(ctx context.Context, bounds geo.Bounds, includeResolved bool) (map[string]bool, bool, error) {
	cells := geo.CoverCells(bounds, g.cfg.CellSize)
	ids := make(map[string]bool)

	for _, cell := range cells {
		key := g.cellKey(cell, includeResolved)

		var cached []string
		found, err := g.cache.Get(ctx, key, &cached)
		if err != nil {
			g.logger.Warn("cell cache read failed, degrading to direct query", "key", key, "error", err)
			return nil, true, nil
		}
		if found {
			for _, id := range cached {
				ids[id] = true
			}
			continue
		}

		cellIssues, err := g.store.IssuesInBounds(ctx, cell.Bounds(g.cfg.CellSize), includeResolved)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.TypeStore, "cell issue query")
		}

		cellIDs := make([]string, 0, len(cellIssues))
		for _, issue := range cellIssues {
			cellIDs = append(cellIDs, issue.ID)
			ids[issue.ID] = true
			if err := g.cache.SetWithTTL(ctx, g.summaryKey(issue.ID), issue, g.cfg.SummaryTTL); err != nil {
				g.logger.Warn("summary cache write failed", "issue", issue.ID, "error", err)
			}
		}
		if err := g.cache.SetWithTTL(ctx, key, cellIDs, g.cfg.CellTTL); err != nil {
			g.logger.Warn("cell cache write failed", "key", key, "error", err)
		}
	}
	return ids, false, nil
}

// resolveSummaries returns summaries for the candidate IDs, preferring
// cached snapshots and batch-fetching the rest from the store.
func (g *GridCache) resolveSummaries(ctx context.Context, ids map[string]bool) ([]models.IssueSummary, error) {
	summaries := make([]models.IssueSummary, 0, len(ids))
	var missing []string

	for id := range ids {
		var summary models.IssueSummary
		found, err := g.cache.Get(ctx, g.summaryKey(id), &summary)
		if err != nil || !found {
			missing = append(missing, id)
			continue
		}
		summaries = append(summaries, summary)
	}

	if len(missing) > 0 {
		fetched, err := g.store.GetSummaries(ctx, missing)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeStore, "fetch issue summaries")
		}
		for _, issue := range fetched {
			summaries = append(summaries, issue)
			if err := g.cache.SetWithTTL(ctx, g.summaryKey(issue.ID), issue, g.cfg.SummaryTTL); err != nil {
				g.logger.Warn("summary cache write failed", "issue", issue.ID, "error", err)
			}
		}
	}
	return summaries, nil
}

// Invalidate removes the cached summary for an issue and, when its
// coordinates are supplied, the owning cell's ID lists.
func (g *GridCache) Invalidate(ctx context.Context, issueID string, lat, lng *float64) error {
	keys := []string{g.summaryKey(issueID)}
	if lat != nil && lng != nil {
		cell := geo.CellAt(*lat, *lng, g.cfg.CellSize)
		keys = append(keys, g.cellKey(cell, true), g.cellKey(cell, false))
	}
	if err := g.cache.Delete(ctx, keys...); err != nil {
		return apperrors.Wrapf(err, apperrors.TypeCache, "invalidate issue %s", issueID)
	}
	g.logger.Debug("issue invalidated", "issue", issueID)
	return nil
}

// ClearAll wipes every cell and summary key. Maintenance operation, not
// part of normal request handling.
func (g *GridCache) ClearAll(ctx context.Context) error {
	for _, pattern := range []string{"cell:*", "issue:*"} {
		if _, err := g.cache.DeletePattern(ctx, pattern); err != nil {
			return apperrors.Wrapf(err, apperrors.TypeCache, "clear cache pattern %s", pattern)
		}
	}
	g.logger.Info("grid cache cleared")
	return nil
}

func (g *GridCache) cellKey(cell geo.Cell, includeResolved bool) string {
	scope := "open"
	if includeResolved {
		scope = "all"
	}
	return fmt.Sprintf("cell:%s:%s", scope, cell.Key())
}

func (g *GridCache) summaryKey(issueID string) string {
	return "issue:" + issueID
}

// finalize applies the bounds-exact and resolved filters and puts the
// result in a deterministic order (newest first, ID as tie-break) so
// cold and warm cache paths return identical lists.
func finalize(summaries []models.IssueSummary, bounds geo.Bounds, includeResolved bool) []models.IssueSummary {
	out := make([]models.IssueSummary, 0, len(summaries))
	for _, issue := range summaries {
		if !includeResolved && issue.IsResolved() {
			continue
		}
		if !bounds.Contains(issue.Lat, issue.Lng) {
			continue
		}
		out = append(out, issue)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
