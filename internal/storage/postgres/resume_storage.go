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

// ResumeStorage implements the ResumeStorage interface for Postgres
type ResumeStorage struct {
	pool   *pgxpool.Pool
	events interfaces.EventService
	logger arbor.ILogger
}

// NewResumeStorage creates a new ResumeStorage instance
func NewResumeStorage(pool *pgxpool.Pool, events interfaces.EventService, logger arbor.ILogger) interfaces.ResumeStorage {
	return &ResumeStorage{pool: pool, events: events, logger: logger}
}

// Create inserts the row. Re-submitting the same id is a no-op, so the
// original created_at survives a duplicate submit.
func (s *ResumeStorage) Create(ctx context.Context, resume *models.Resume) error {
	if resume.ID == "" {
		return errors.New("resume id is required")
	}
	if resume.UserID == "" {
		return errors.New("resume user id is required")
	}

	query := `
		INSERT INTO resumes (id, user_id, filename, mime_type, storage_key, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		resume.ID, resume.UserID, resume.Filename, resume.MimeType, resume.StorageKey, string(resume.Status))
	if err != nil {
		return fmt.Errorf("failed to create resume: %w", err)
	}
	return nil
}

// UpdateStatus transitions from -> to and emits resume.status.changed after
// the durable write. The state guard keeps lifecycles monotone and makes a
// concurrent soft delete a zero-row update with no event.
func (s *ResumeStorage) UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error) {
	query := `
		UPDATE resumes
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
		return false, fmt.Errorf("failed to update resume status: %w", err)
	}

	s.publishStatus(ctx, id, to, updatedAt)
	return true, nil
}

// GetForUser returns the row with its skills, or nil when not found, not
// owned, or soft-deleted
func (s *ResumeStorage) GetForUser(ctx context.Context, id, userID string) (*models.Resume, error) {
	query := `
		SELECT id, user_id, filename, mime_type, storage_key, status,
			COALESCE(parsed_summary, ''), COALESCE(error_message, ''), created_at, updated_at
		FROM resumes
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`

	resume, err := scanResume(s.pool.QueryRow(ctx, query, id, userID))
	if err != nil || resume == nil {
		return resume, err
	}

	skills, err := s.loadSkills(ctx, id)
	if err != nil {
		return nil, err
	}
	resume.Skills = skills
	return resume, nil
}

// ListForUser returns the caller's rows newest first, skills omitted
func (s *ResumeStorage) ListForUser(ctx context.Context, userID string) ([]*models.Resume, error) {
	query := `
		SELECT id, user_id, filename, mime_type, storage_key, status,
			COALESCE(parsed_summary, ''), COALESCE(error_message, ''), created_at, updated_at
		FROM resumes
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	var resumes []*models.Resume
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		resumes = append(resumes, resume)
	}
	return resumes, rows.Err()
}

// SoftDelete hides the row from all reads. Irreversible.
func (s *ResumeStorage) SoftDelete(ctx context.Context, id, userID string) (bool, error) {
	query := `
		UPDATE resumes SET is_deleted = TRUE, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND is_deleted = FALSE
	`
	tag, err := s.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to soft delete resume: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceSkills deletes then inserts the derived skill rows in one
// transaction. Consumers gate on status, so the brief empty window outside
// a transaction would be acceptable too; the transaction is simply cheap
// here.
func (s *ResumeStorage) ReplaceSkills(ctx context.Context, resumeID string, skills []models.CandidateSkill) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM candidate_skills WHERE resume_id = $1`, resumeID); err != nil {
		return fmt.Errorf("failed to delete candidate skills: %w", err)
	}

	for _, skill := range skills {
		if _, err := tx.Exec(ctx,
			`INSERT INTO candidate_skills (resume_id, skill, experience_years, proficiency) VALUES ($1, $2, $3, NULLIF($4, ''))`,
			resumeID, skill.Skill, skill.ExperienceYears, skill.Proficiency); err != nil {
			return fmt.Errorf("failed to insert candidate skill: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetWithSubject returns the row joined with the owner's external subject,
// for realtime routing. Soft-deleted rows are invisible here too.
func (s *ResumeStorage) GetWithSubject(ctx context.Context, id string) (*models.Resume, string, error) {
	query := `
		SELECT r.id, r.user_id, r.filename, r.mime_type, r.storage_key, r.status,
			COALESCE(r.parsed_summary, ''), COALESCE(r.error_message, ''), r.created_at, r.updated_at,
			u.external_subject
		FROM resumes r
		JOIN users u ON u.id = r.user_id
		WHERE r.id = $1 AND r.is_deleted = FALSE
	`

	var resume models.Resume
	var summary, subject string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&resume.ID, &resume.UserID, &resume.Filename, &resume.MimeType, &resume.StorageKey,
		&resume.Status, &summary, &resume.ErrorMessage, &resume.CreatedAt, &resume.UpdatedAt,
		&subject,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get resume with subject: %w", err)
	}
	if summary != "" {
		resume.ParsedSummary = json.RawMessage(summary)
	}
	return &resume, subject, nil
}

func (s *ResumeStorage) loadSkills(ctx context.Context, resumeID string) ([]models.CandidateSkill, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT skill, experience_years, COALESCE(proficiency, '') FROM candidate_skills WHERE resume_id = $1 ORDER BY id`,
		resumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate skills: %w", err)
	}
	defer rows.Close()

	var skills []models.CandidateSkill
	for rows.Next() {
		var skill models.CandidateSkill
		if err := rows.Scan(&skill.Skill, &skill.ExperienceYears, &skill.Proficiency); err != nil {
			return nil, err
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

func (s *ResumeStorage) publishStatus(ctx context.Context, id string, status models.DocumentStatus, ts time.Time) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{
		Type:    interfaces.EventResumeStatusChanged,
		Payload: models.StatusChange{ID: id, Status: string(status), Ts: ts},
	}); err != nil {
		s.logger.Warn().Err(err).Str("resume_id", id).Msg("Failed to publish resume status event")
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(row rowScanner) (*models.Resume, error) {
	var resume models.Resume
	var summary string
	err := row.Scan(
		&resume.ID, &resume.UserID, &resume.Filename, &resume.MimeType, &resume.StorageKey,
		&resume.Status, &summary, &resume.ErrorMessage, &resume.CreatedAt, &resume.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan resume: %w", err)
	}
	if summary != "" {
		resume.ParsedSummary = json.RawMessage(summary)
	}
	return &resume, nil
}
