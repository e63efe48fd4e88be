package issues

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// SQLiteStore implements Store using SQLite (for local/development).
type SQLiteStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewSQLiteStore creates a new SQLite issue store.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}

	// WAL mode for better concurrency
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA journal_mode = WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		type TEXT,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		vote_count INTEGER DEFAULT 0,
		comment_count INTEGER DEFAULT 0,
		created_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_issues_lat ON issues(lat);
	CREATE INDEX IF NOT EXISTS idx_issues_lng ON issues(lng);
	CREATE INDEX IF NOT EXISTS idx_issues_created_at ON issues(created_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create issues schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) IssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error) {
	query := `
		SELECT id, title, status, type, lat, lng, vote_count, comment_count, created_at
		FROM issues
		WHERE lat BETWEEN ? AND ?
		  AND lng BETWEEN ? AND ?
	`
	args := []any{bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng}
	if !includeResolved {
		query += ` AND status <> ?`
		args = append(args, models.IssueStatusResolved)
	}

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("issues in bounds: %w", err)
	}
	return issues, nil
}

func (s *SQLiteStore) RecentIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool, limit int) ([]models.IssueSummary, error) {
	query := `
		SELECT id, title, status, type, lat, lng, vote_count, comment_count, created_at
		FROM issues
		WHERE lat BETWEEN ? AND ?
		  AND lng BETWEEN ? AND ?
	`
	args := []any{bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng}
	if !includeResolved {
		query += ` AND status <> ?`
		args = append(args, models.IssueStatusResolved)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("recent issues in bounds: %w", err)
	}
	return issues, nil
}

func (s *SQLiteStore) GetSummaries(ctx context.Context, ids []string) ([]models.IssueSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, title, status, type, lat, lng, vote_count, comment_count, created_at
		FROM issues
		WHERE id IN (?)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("build summaries query: %w", err)
	}

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("get summaries: %w", err)
	}
	return issues, nil
}

func (s *SQLiteStore) SaveIssue(ctx context.Context, issue *models.IssueSummary) error {
	query := `
		INSERT INTO issues (id, title, status, type, lat, lng, vote_count, comment_count, created_at)
		VALUES (:id, :title, :status, :type, :lat, :lng, :vote_count, :comment_count, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			type = excluded.type,
			lat = excluded.lat,
			lng = excluded.lng,
			vote_count = excluded.vote_count,
			comment_count = excluded.comment_count
	`

	if _, err := s.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("save issue: %w", err)
	}
	return nil
}
