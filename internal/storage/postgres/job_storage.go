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

// JobStorage implements the JobStorage interface for Postgres
type JobStorage struct {
	pool   *pgxpool.Pool
	events interfaces.EventService
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(pool *pgxpool.Pool, events interfaces.EventService, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{pool: pool, events: events, logger: logger}
}

// Create inserts the row. Re-submitting the same id is a no-op.
func (s *JobStorage) Create(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	if job.UserID == "" {
		return errors.New("job user id is required")
	}

	query := `
		INSERT INTO job_descriptions (id, user_id, title, source, filename, mime_type, storage_key, raw_text, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		job.ID, job.UserID, job.Title, string(job.Source), job.Filename,
		job.MimeType, job.StorageKey, job.RawText, string(job.Status))
	if err != nil {
		return fmt.Errorf("failed to create job description: %w", err)
	}
	return nil
}

// UpdateStatus transitions from -> to and emits job.status.changed after the
// durable write. Zero rows means wrong state, deleted, or missing; no event.
func (s *JobStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	query := `
		UPDATE job_descriptions
		SET status = $1,
			parsed_summary = COALESCE(NULLIF($2, ''), parsed_summary),
			error_message = NULLIF($3, ''),
			updated_at = now()
		WHERE id = $4 AND status = $5 AND is_deleted = FALSE
		RETURNING updated_at
	`

	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, query, string(to), string(parsedSummary), errMsg, id, string(from)).Scan(&updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update job status: %w", err)
	}

	s.publishStatus(ctx, id, to, updatedAt)
	return true, nil
}

// GetForUser returns the row with its requirements and soft skills, or nil
// when not found, not owned, or soft-deleted
func (s *JobStorage) GetForUser(ctx context.Context, id, userID string) (*models.Job, error) {
	query := jobSelect + ` WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE`

	job, err := scanJob(s.pool.QueryRow(ctx, query, id, userID))
	if err != nil || job == nil {
		return job, err
	}

	if err := s.loadChildren(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListForUser returns the caller's rows newest first, children omitted
func (s *JobStorage) ListForUser(ctx context.Context, userID string) ([]*models.Job, error) {
	query := jobSelect + ` WHERE user_id = $1 AND is_deleted = FALSE ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list job descriptions: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// SoftDelete hides the row from all reads. Irreversible.
func (s *JobStorage) SoftDelete(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE job_descriptions SET is_deleted = TRUE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`
	tag, err := s.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete job description: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceChildren deletes then inserts the derived requirement and
// soft-skill rows in one transaction
func (s *JobStorage) ReplaceChildren(ctx context.Context, jobID string, requirements []models.Requirement, softSkills []models.SoftSkill) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM requirements WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete requirements: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM job_soft_skills WHERE job_id = $1`, jobID); err != nil {
		return fmt.Errorf("failed to delete soft skills: %w", err)
	}

	for _, req := range requirements {
		if _, err := tx.Exec(ctx,
			`INSERT INTO requirements (job_id, skill, importance, inferred) VALUES ($1, $2, $3, $4)`,
			jobID, req.Skill, req.Importance, req.Inferred); err != nil {
			return fmt.Errorf("failed to insert requirement: %w", err)
		}
	}
	for _, skill := range softSkills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO job_soft_skills (job_id, skill, value) VALUES ($1, $2, $3)`,
			jobID, skill.Skill, skill.Value); err != nil {
			return fmt.Errorf("failed to insert soft skill: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetWithSubject returns the row joined with the owner's external subject,
// for realtime routing
func (s *JobStorage) GetWithSubject(ctx context.Context, id string) (*models.Job, string, error) {
	query := `
		SELECT j.id, j.user_id, j.title, j.source, COALESCE(j.filename, ''), j.mime_type,
			COALESCE(j.storage_key, ''), COALESCE(j.raw_text, ''), j.status,
			COALESCE(j.parsed_summary, ''), COALESCE(j.error_message, ''), j.created_at, j.updated_at,
			u.external_subject
		FROM job_descriptions j
		JOIN users u ON u.id = j.user_id
		WHERE j.id = $1 AND j.is_deleted = FALSE
	`

	var job models.Job
	var summary, subject string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.Title, &job.Source, &job.Filename, &job.MimeType,
		&job.StorageKey, &job.RawText, &job.Status, &summary, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &subject,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get job with subject: %w", err)
	}
	if summary != "" {
		job.ParsedSummary = json.RawMessage(summary)
	}
	return &job, subject, nil
}

func (s *JobStorage) loadChildren(ctx context.Context, job *models.Job) error {
	reqRows, err := s.pool.Query(ctx,
		`SELECT skill, importance, inferred FROM requirements WHERE job_id = $1 ORDER BY id`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load requirements: %w", err)
	}
	defer reqRows.Close()

	for reqRows.Next() {
		var req models.Requirement
		if err := reqRows.Scan(&req.Skill, &req.Importance, &req.Inferred); err != nil {
			return err
		}
		job.Requirements = append(job.Requirements, req)
	}
	if err := reqRows.Err(); err != nil {
		return err
	}

	skillRows, err := s.pool.Query(ctx,
		`SELECT skill, value FROM job_soft_skills WHERE job_id = $1 ORDER BY id`, job.ID)
	if err != nil {
		return fmt.Errorf("failed to load soft skills: %w", err)
	}
	defer skillRows.Close()

	for skillRows.Next() {
		var skill models.SoftSkill
		if err := skillRows.Scan(&skill.Skill, &skill.Value); err != nil {
			return err
		}
		job.SoftSkills = append(job.SoftSkills, skill)
	}
	return skillRows.Err()
}

func (s *JobStorage) publishStatus(ctx context.Context, id string, status models.DocumentStatus, ts time.Time) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventJobStatusChanged,
		Payload: models.StatusChange{ID: id, Status: string(status), Ts: ts},
	}); err != nil {
		s.logger.Warn().Err(err).Str("job_id", id).Msg("Failed to publish job status event")
	}
}

const jobSelect = `
	SELECT id, user_id, title, source, COALESCE(filename, ''), mime_type,
		COALESCE(storage_key, ''), COALESCE(raw_text, ''), status,
		COALESCE(parsed_summary, ''), COALESCE(error_message, ''), created_at, updated_at
	FROM job_descriptions`

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var summary string
	err := row.Scan(
		&job.ID, &job.UserID, &job.Title, &job.Source, &job.Filename, &job.MimeType,
		&job.StorageKey, &job.RawText, &job.Status, &summary, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job description: %w", err)
	}
	if summary != "" {
		job.ParsedSummary = json.RawMessage(summary)
	}
	return &job, nil
}
