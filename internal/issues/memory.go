package issues

import (
	"context"
	"sort"
	"sync"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// MemoryStore is an in-memory Store used for unit testing cache and
// filtering logic without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	issues map[string]models.IssueSummary

	// QueryCount counts range queries served, so tests can assert how
	// often the backing store was hit versus the cache.
	QueryCount int
}

// NewMemoryStore instantiates an empty in-memory issue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{issues: make(map[string]models.IssueSummary)}
}

func (m *MemoryStore) IssuesInBounds(_ context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error) {
	m.mu.Lock()
	m.QueryCount++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.IssueSummary
	for _, issue := range m.issues {
		if !bounds.Contains(issue.Lat, issue.Lng) {
			continue
		}
		if !includeResolved && issue.IsResolved() {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

func (m *MemoryStore) RecentIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool, limit int) ([]models.IssueSummary, error) {
	out, err := m.IssuesInBounds(ctx, bounds, includeResolved)
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetSummaries(_ context.Context, ids []string) ([]models.IssueSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.IssueSummary
	for _, id := range ids {
		if issue, ok := m.issues[id]; ok {
			out = append(out, issue)
		}
	}
	return out, nil
}

func (m *MemoryStore) SaveIssue(_ context.Context, issue *models.IssueSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issues[issue.ID] = *issue
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
