package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// MatchStorage implements the MatchStorage interface for Postgres
type MatchStorage struct {
	pool   *pgxpool.Pool
	events interfaces.EventService
	logger arbor.ILogger
}

// NewMatchStorage creates a new MatchStorage instance
func NewMatchStorage(pool *pgxpool.Pool, events interfaces.EventService, logger arbor.ILogger) interfaces.MatchStorage {
	return &MatchStorage{pool: pool, events: events, logger: logger}
}

// Create inserts the match job. Re-submitting the same id is a no-op.
func (s *MatchStorage) Create(ctx context.Context, job *models.MatchJob) error {
	if job.ID == "" {
		return errors.New("match job id is required")
	}
	if job.UserID == "" {
		return errors.New("match job user id is required")
	}

	query := `
		INSERT INTO match_jobs (id, user_id, resume_id, job_id, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, job.ID, job.UserID, job.ResumeID, job.JobID, string(job.Status))
	if err != nil {
		return fmt.Errorf("failed to create match job: %w", err)
	}
	return nil
}

// UpdateStatus transitions from -> to and emits match.status.changed after
// the durable write. Completed and failed are terminal; the state guard
// rejects any write that would move a job out of them.
func (s *MatchStorage) UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus, errMsg string) (bool, error) {
	query := `
		UPDATE match_jobs
		SET status = $1, error_message = NULLIF($2, ''), updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING updated_at
	`

	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, query, string(to), errMsg, id, string(from)).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update match status: %w", err)
	}

	s.publishStatus(ctx, id, to, updatedAt)
	return true, nil
}

// Complete inserts the result row, attaches it to the match job and moves
// the job from running to completed in one transaction. A redelivered
// message whose job already completed is a zero-row update, which rolls the
// duplicate result insert back.
func (s *MatchStorage) Complete(ctx context.Context, matchJobID string, result *models.MatchResult) (bool, error) {
	if result.ID == "" {
		return false, errors.New("match result id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO matches (id, user_id, resume_id, job_id, score, summary) VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.UserID, result.ResumeID, result.JobID, result.Score, string(result.Summary)); err != nil {
		return false, fmt.Errorf("failed to insert match result: %w", err)
	}

	var updatedAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE match_jobs
		SET status = $1, result_id = $2, error_message = NULL, updated_at = now()
		WHERE id = $3 AND status = $4
		RETURNING updated_at
	`, string(models.MatchStatusCompleted), result.ID, matchJobID, string(models.MatchStatusRunning)).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to complete match job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit match completion: %w", err)
	}

	s.publishStatus(ctx, matchJobID, models.MatchStatusCompleted, updatedAt)
	return true, nil
}

// GetForUser returns the match job, or nil when not found or not owned
func (s *MatchStorage) GetForUser(ctx context.Context, id, userID string) (*models.MatchJob, error) {
	query := matchJobSelect + ` WHERE id = $1 AND user_id = $2`
	return scanMatchJob(s.pool.QueryRow(ctx, query, id, userID))
}

// ListForUser returns the caller's match jobs newest first
func (s *MatchStorage) ListForUser(ctx context.Context, userID string) ([]*models.MatchJob, error) {
	query := matchJobSelect + ` WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list match jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.MatchJob
	for rows.Next() {
		job, err := scanMatchJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetResultForUser returns the match result, or nil when not found or not
// owned
func (s *MatchStorage) GetResultForUser(ctx context.Context, resultID, userID string) (*models.MatchResult, error) {
	query := `
		SELECT id, user_id, resume_id, job_id, score, summary, created_at
		FROM matches
		WHERE id = $1 AND user_id = $2
	`

	var result models.MatchResult
	var summary string
	err := s.pool.QueryRow(ctx, query, resultID, userID).Scan(
		&result.ID, &result.UserID, &result.ResumeID, &result.JobID,
		&result.Score, &summary, &result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match result: %w", err)
	}
	if summary != "" {
		result.Summary = json.RawMessage(summary)
	}
	return &result, nil
}

// GetWithSubject returns the match job joined with the owner's external
// subject, for realtime routing
func (s *MatchStorage) GetWithSubject(ctx context.Context, id string) (*models.MatchJob, string, error) {
	query := `
		SELECT m.id, m.user_id, m.resume_id, m.job_id, m.status,
			COALESCE(m.error_message, ''), COALESCE(m.result_id, ''), m.created_at, m.updated_at,
			u.external_subject
		FROM match_jobs m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = $1
	`

	var job models.MatchJob
	var subject string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.ResumeID, &job.JobID, &job.Status,
		&job.ErrorMessage, &job.ResultID, &job.CreatedAt, &job.UpdatedAt,
		&subject,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get match job with subject: %w", err)
	}
	return &job, subject, nil
}

func (s *MatchStorage) publishStatus(ctx context.Context, id string, status models.MatchStatus, ts time.Time) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventMatchStatusChanged,
		Payload: models.StatusChange{ID: id, Status: string(status), Ts: ts},
	}); err != nil {
		s.logger.Warn().Err(err).Str("match_job_id", id).Msg("Failed to publish match status event")
	}
}

const matchJobSelect = `
	SELECT id, user_id, resume_id, job_id, status,
		COALESCE(error_message, ''), COALESCE(result_id, ''), created_at, updated_at
	FROM match_jobs`

func scanMatchJob(row rowScanner) (*models.MatchJob, error) {
	var job models.MatchJob
	err := row.Scan(
		&job.ID, &job.UserID, &job.ResumeID, &job.JobID, &job.Status,
		&job.ErrorMessage, &job.ResultID, &job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan match job: %w", err)
	}
	return &job, nil
}
