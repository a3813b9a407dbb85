package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// annualWindow is the rolling quota window
const annualWindow = 365 * 24 * time.Hour

// UserStorage implements the UserStorage interface for Postgres
type UserStorage struct {
	pool   *pgxpool.Pool
	logger arbor.ILogger
}

// NewUserStorage creates a new UserStorage instance
func NewUserStorage(pool *pgxpool.Pool, logger arbor.ILogger) interfaces.UserStorage {
	return &UserStorage{pool: pool, logger: logger}
}

// EnsureUser returns the user for an external subject, inserting it with
// defaults on first sight. Concurrent first requests collide on the unique
// subject key and resolve through the upsert.
func (s *UserStorage) EnsureUser(ctx context.Context, externalSubject, email string) (*models.User, error) {
	if strings.TrimSpace(externalSubject) == "" {
		return nil, errors.New("external subject is required")
	}

	query := `
		INSERT INTO users (id, external_subject, email, annual_limit, annual_usage_count)
		VALUES ($1, $2, NULLIF($3, ''), 100, 0)
		ON CONFLICT (external_subject)
		DO UPDATE SET email = COALESCE(NULLIF($3, ''), users.email)
		RETURNING id, external_subject, COALESCE(email, ''), annual_limit, annual_usage_count, annual_period_start, created_at
	`

	var user models.User
	err := s.pool.QueryRow(ctx, query, common.NewUserID(), externalSubject, email).Scan(
		&user.ID,
		&user.ExternalSubject,
		&user.Email,
		&user.AnnualLimit,
		&user.AnnualUsageCount,
		&user.AnnualPeriodStart,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	return &user, nil
}

// GetBySubject is read-only; returns nil when the subject is unknown
func (s *UserStorage) GetBySubject(ctx context.Context, externalSubject string) (*models.User, error) {
	return s.get(ctx, "external_subject", externalSubject)
}

// GetByID returns nil when the user does not exist
func (s *UserStorage) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.get(ctx, "id", id)
}

func (s *UserStorage) get(ctx context.Context, column, value string) (*models.User, error) {
	query := fmt.Sprintf(`
		SELECT id, external_subject, COALESCE(email, ''), annual_limit, annual_usage_count, annual_period_start, created_at
		FROM users WHERE %s = $1
	`, column)

	var user models.User
	err := s.pool.QueryRow(ctx, query, value).Scan(
		&user.ID,
		&user.ExternalSubject,
		&user.Email,
		&user.AnnualLimit,
		&user.AnnualUsageCount,
		&user.AnnualPeriodStart,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// IncrementAnnualUsage resets the window when expired, then increments.
// The whole read-modify-write is one conditional statement, so concurrent
// calls cannot over-increment.
func (s *UserStorage) IncrementAnnualUsage(ctx context.Context, userID string) (int, int, error) {
	query := `
		UPDATE users SET
			annual_usage_count = CASE
				WHEN annual_period_start IS NULL OR annual_period_start < now() - INTERVAL '365 days' THEN 1
				ELSE annual_usage_count + 1
			END,
			annual_period_start = CASE
				WHEN annual_period_start IS NULL OR annual_period_start < now() - INTERVAL '365 days' THEN now()
				ELSE annual_period_start
			END
		WHERE id = $1
		RETURNING annual_usage_count, annual_limit
	`

	var count, limit int
	err := s.pool.QueryRow(ctx, query, userID).Scan(&count, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("user not found: %s", userID)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment annual usage: %w", err)
	}

	return count, limit, nil
}

// Usage returns the quota snapshot. An expired window reads as zero usage.
func (s *UserStorage) Usage(ctx context.Context, userID string) (*models.Usage, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", userID)
	}

	count := user.AnnualUsageCount
	periodStart := user.AnnualPeriodStart
	if periodStart == nil || time.Since(*periodStart) > annualWindow {
		count = 0
		periodStart = nil
	}

	remaining := user.AnnualLimit - count
	if remaining < 0 {
		remaining = 0
	}

	return &models.Usage{
		AnnualLimit:       user.AnnualLimit,
		AnnualUsageCount:  count,
		AnnualPeriodStart: periodStart,
		Remaining:         remaining,
	}, nil
}
