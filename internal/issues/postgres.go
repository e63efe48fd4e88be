package issues

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL issue store.
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) IssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool) ([]models.IssueSummary, error) {
	query := `
		SELECT id, title, status, type, lat, lng, vote_count, comment_count, created_at
		FROM issues
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
	`
	args := []any{bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng}
	if !includeResolved {
		query += ` AND status <> $5`
		args = append(args, models.IssueStatusResolved)
	}

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("issues in bounds: %w", err)
	}
	return issues, nil
}

func (s *PostgresStore) RecentIssuesInBounds(ctx context.Context, bounds geo.Bounds, includeResolved bool, limit int) ([]models.IssueSummary, error) {
	query := `
		SELECT id, title, status, type, lat, lng, vote_count, comment_count, created_at
		FROM issues
		WHERE lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
	`
	args := []any{bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng}
	if !includeResolved {
		query += ` AND status <> $5`
		args = append(args, models.IssueStatusResolved)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("recent issues in bounds: %w", err)
	}
	return issues, nil
}

func (s *PostgresStore) GetSummaries(ctx context.Context, ids []string) ([]models.IssueSummary, error) {
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
	query = s.db.Rebind(query)

	var issues []models.IssueSummary
	if err := s.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("get summaries: %w", err)
	}
	return issues, nil
}

func (s *PostgresStore) SaveIssue(ctx context.Context, issue *models.IssueSummary) error {
	query := `
		INSERT INTO issues (id, title, status, type, lat, lng, vote_count, comment_count, created_at)
		VALUES (:id, :title, :status, :type, :lat, :lng, :vote_count, :comment_count, :created_at)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			type = EXCLUDED.type,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			vote_count = EXCLUDED.vote_count,
			comment_count = EXCLUDED.comment_count
	`

	if _, err := s.db.NamedExecContext(ctx, query, issue); err != nil {
		return fmt.Errorf("save issue: %w", err)
	}
	return nil
}
