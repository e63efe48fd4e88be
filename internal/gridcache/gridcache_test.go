package gridcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicmaps/civicroute/internal/cache"
	"github.com/civicmaps/civicroute/internal/config"
	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/issues"
	"github.com/civicmaps/civicroute/internal/models"
)

func testGridConfig() config.GridConfig {
	return config.GridConfig{
		CellSize:      0.01,
		CellTTL:       5 * time.Minute,
		SummaryTTL:    10 * time.Minute,
		MaxCells:      100,
		FallbackLimit: 500,
	}
}

func seedIssue(t *testing.T, store *issues.MemoryStore, id, status string, lat, lng float64, age time.Duration) {
	t.Helper()
	err := store.SaveIssue(context.Background(), &models.IssueSummary{
		ID:        id,
		Title:     "issue " + id,
		Status:    status,
		Type:      "pothole",
		Lat:       lat,
		Lng:       lng,
		CreatedAt: time.Now().Add(-age),
	})
	require.NoError(t, err)
}

func TestGetIssuesInBoundsFiltersExactBox(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "inside", models.IssueStatusOpen, 40.005, -74.005, time.Hour)
	// Same cell as "inside" but outside the query box.
	seedIssue(t, store, "same-cell-outside", models.IssueStatusOpen, 40.009, -74.001, time.Hour)
	seedIssue(t, store, "far-away", models.IssueStatusOpen, 41.0, -74.005, time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	got, err := g.GetIssuesInBounds(context.Background(),
		geo.Bounds{MinLat: 40.004, MaxLat: 40.006, MinLng: -74.006, MaxLng: -74.004}, false)
	require.NoError(t, err)

	require.Len(t, got, 1, "cell coverage overshoots; the exact-bounds filter must trim it")
	assert.Equal(t, "inside", got[0].ID)
}

func TestGetIssuesInBoundsResolvedFilter(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "open", models.IssueStatusOpen, 40.005, -74.005, time.Hour)
	seedIssue(t, store, "in-progress", models.IssueStatusInProgress, 40.005, -74.004, 2*time.Hour)
	seedIssue(t, store, "resolved", models.IssueStatusResolved, 40.005, -74.003, 3*time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	got, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	assert.Len(t, got, 2, "resolved issues hidden by default")

	got, err = g.GetIssuesInBounds(context.Background(), bounds, true)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGetIssuesInBoundsWarmCacheSkipsStore(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "x", models.IssueStatusOpen, 40.005, -74.005, time.Hour)
	seedIssue(t, store, "y", models.IssueStatusOpen, 40.006, -74.004, 2*time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	cold, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	queriesAfterCold := store.QueryCount
	require.Greater(t, queriesAfterCold, 0)

	warm, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)

	assert.Equal(t, queriesAfterCold, store.QueryCount, "warm query must be served from cache")
	assert.Equal(t, cold, warm, "cold and warm paths must return identical ordered results")
}

func TestGetIssuesInBoundsDeterministicOrder(t *testing.T) {
	store := issues.NewMemoryStore()
	now := time.Now()
	// Two issues share a timestamp, so the ID tie-break decides.
	for _, id := range []string{"b-tied", "a-tied"} {
		require.NoError(t, store.SaveIssue(context.Background(), &models.IssueSummary{
			ID: id, Status: models.IssueStatusOpen, Lat: 40.005, Lng: -74.005, CreatedAt: now.Add(-time.Hour),
		}))
	}
	seedIssue(t, store, "newest", models.IssueStatusOpen, 40.006, -74.004, time.Minute)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	got, err := g.GetIssuesInBounds(context.Background(),
		geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}, false)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "newest", got[0].ID)
	assert.Equal(t, "a-tied", got[1].ID)
	assert.Equal(t, "b-tied", got[2].ID)
}

func TestGetIssuesInBoundsScopeSeparation(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "resolved", models.IssueStatusResolved, 40.005, -74.005, time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	// Warm the open-only scope first; the all scope must not reuse its
	// (empty) cell lists.
	got, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = g.GetIssuesInBounds(context.Background(), bounds, true)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestGetIssuesInBoundsOversizedBoxBypassesCache(t *testing.T) {
	store := issues.NewMemoryStore()
	for i, id := range []string{"oldest", "middle", "newest"} {
		seedIssue(t, store, id, models.IssueStatusOpen, 40.1, -74.1, time.Duration(3-i)*time.Hour)
	}

	cfg := testGridConfig()
	cfg.MaxCells = 4
	cfg.FallbackLimit = 2
	memCache := cache.NewMemoryCache()
	g := New(memCache, store, cfg)

	// A whole-city box covers far more than 4 cells.
	got, err := g.GetIssuesInBounds(context.Background(),
		geo.Bounds{MinLat: 40.0, MaxLat: 41.0, MinLng: -75.0, MaxLng: -74.0}, false)
	require.NoError(t, err)

	require.Len(t, got, 2, "oversized queries are capped")
	assert.Equal(t, "newest", got[0].ID)
	assert.Equal(t, "middle", got[1].ID)
	assert.Zero(t, memCache.Len(), "bypass path must not populate the cache")
}

// failingCache errors on every read, simulating a down cache backend.
type failingCache struct{}

func (failingCache) Get(context.Context, string, any) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingCache) SetWithTTL(context.Context, string, any, time.Duration) error {
	return errors.New("connection refused")
}
func (failingCache) Delete(context.Context, ...string) error { return errors.New("connection refused") }
func (failingCache) DeletePattern(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingCache) HealthCheck(context.Context) error { return errors.New("connection refused") }
func (failingCache) Close() error                      { return nil }

func TestGetIssuesInBoundsDegradesWithoutCache(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "survivor", models.IssueStatusOpen, 40.005, -74.005, time.Hour)

	g := New(failingCache{}, store, testGridConfig())
	got, err := g.GetIssuesInBounds(context.Background(),
		geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}, false)
	require.NoError(t, err, "a down cache must not fail the request")

	require.Len(t, got, 1)
	assert.Equal(t, "survivor", got[0].ID)
}

func TestGetIssuesInBoundsInvalidBounds(t *testing.T) {
	g := New(cache.NewMemoryCache(), issues.NewMemoryStore(), testGridConfig())

	_, err := g.GetIssuesInBounds(context.Background(),
		geo.Bounds{MinLat: 41, MaxLat: 40, MinLng: -74, MaxLng: -73}, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidBounds)
}

func TestInvalidateForcesRequery(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "mutable", models.IssueStatusOpen, 40.005, -74.005, time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	_, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	warmQueries := store.QueryCount

	lat, lng := 40.005, -74.005
	require.NoError(t, g.Invalidate(context.Background(), "mutable", &lat, &lng))

	_, err = g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	assert.Greater(t, store.QueryCount, warmQueries, "invalidation must force a store round trip")
}

func TestInvalidateReflectsStatusChange(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "fixed-up", models.IssueStatusOpen, 40.005, -74.005, time.Hour)

	g := New(cache.NewMemoryCache(), store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	got, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// Resolve the issue and invalidate its cache entries.
	require.NoError(t, store.SaveIssue(context.Background(), &models.IssueSummary{
		ID: "fixed-up", Status: models.IssueStatusResolved, Lat: 40.005, Lng: -74.005, CreatedAt: got[0].CreatedAt,
	}))
	lat, lng := 40.005, -74.005
	require.NoError(t, g.Invalidate(context.Background(), "fixed-up", &lat, &lng))

	got, err = g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	assert.Empty(t, got, "resolved issue must disappear after invalidation")
}

func TestClearAll(t *testing.T) {
	store := issues.NewMemoryStore()
	seedIssue(t, store, "cached", models.IssueStatusOpen, 40.005, -74.005, time.Hour)

	memCache := cache.NewMemoryCache()
	g := New(memCache, store, testGridConfig())
	bounds := geo.Bounds{MinLat: 40.0, MaxLat: 40.01, MinLng: -74.01, MaxLng: -74.0}

	_, err := g.GetIssuesInBounds(context.Background(), bounds, false)
	require.NoError(t, err)
	require.Greater(t, memCache.Len(), 0)

	require.NoError(t, g.ClearAll(context.Background()))
	assert.Zero(t, memCache.Len())
}
