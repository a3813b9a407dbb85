package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/skillmatch/internal/models"
)

// UserStorage resolves external subjects to internal users and tracks the
// annual match quota counters.
type UserStorage interface {
	// EnsureUser returns the user for an external subject, creating it with
	// defaults on first sight. Idempotent under concurrent calls.
	EnsureUser(ctx context.Context, externalSubject, email string) (*models.User, error)

	// GetBySubject is read-only; returns nil when the subject is unknown
	GetBySubject(ctx context.Context, externalSubject string) (*models.User, error)

	// GetByID returns nil when the user does not exist
	GetByID(ctx context.Context, id string) (*models.User, error)

	// IncrementAnnualUsage resets the 365-day window when expired, then
	// increments. Returns the new count and the limit.
	IncrementAnnualUsage(ctx context.Context, userID string) (count, limit int, err error)

	// Usage returns the quota snapshot for GET /usage
	Usage(ctx context.Context, userID string) (*models.Usage, error)
}

// ResumeStorage persists resumes and their derived candidate skills.
// All reads are scoped to the owning user; soft-deleted rows are invisible.
type ResumeStorage interface {
	// Create inserts the row; re-submitting the same id is a no-op
	Create(ctx context.Context, resume *models.Resume) error

	// UpdateStatus transitions from -> to, writes the optional parsed
	// summary / error message, and emits resume.status.changed after the
	// durable write. Returns false when no row matched (wrong state,
	// deleted, or missing); no event is emitted in that case.
	UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error)

	// GetForUser returns the row with children, or nil when not found,
	// not owned, or soft-deleted
	GetForUser(ctx context.Context, id, userID string) (*models.Resume, error)

	// ListForUser returns the caller's rows newest first, children omitted
	ListForUser(ctx context.Context, userID string) ([]*models.Resume, error)

	// SoftDelete hides the row; returns false when not found or not owned
	SoftDelete(ctx context.Context, id, userID string) (bool, error)

	// ReplaceSkills deletes then inserts the derived skill rows
	ReplaceSkills(ctx context.Context, resumeID string, skills []models.CandidateSkill) error

	// GetWithSubject returns the row (soft-deleted excluded) joined with
	// the owner's external subject, for realtime routing
	GetWithSubject(ctx context.Context, id string) (*models.Resume, string, error)
}

// JobStorage persists job descriptions and their derived requirement and
// soft-skill rows. Same scoping rules as ResumeStorage.
type JobStorage interface {
	Create(ctx context.Context, job *models.Job) error
	UpdateStatus(ctx context.Context, id string, from, to models.DocumentStatus, parsedSummary json.RawMessage, errMsg string) (bool, error)
	GetForUser(ctx context.Context, id, userID string) (*models.Job, error)
	ListForUser(ctx context.Context, userID string) ([]*models.Job, error)
	SoftDelete(ctx context.Context, id, userID string) (bool, error)

	// ReplaceChildren deletes then inserts requirements and soft skills
	ReplaceChildren(ctx context.Context, jobID string, requirements []models.Requirement, softSkills []models.SoftSkill) error

	GetWithSubject(ctx context.Context, id string) (*models.Job, string, error)
}

// MatchStorage persists match jobs and their results
type MatchStorage interface {
	Create(ctx context.Context, job *models.MatchJob) error

	// UpdateStatus transitions from -> to and emits match.status.changed
	// after the durable write
	UpdateStatus(ctx context.Context, id string, from, to models.MatchStatus, errMsg string) (bool, error)

	// Complete inserts the result row, attaches it to the match job and
	// moves the job to completed in one transaction, then emits the event
	Complete(ctx context.Context, matchJobID string, result *models.MatchResult) (bool, error)

	GetForUser(ctx context.Context, id, userID string) (*models.MatchJob, error)
	ListForUser(ctx context.Context, userID string) ([]*models.MatchJob, error)
	GetResultForUser(ctx context.Context, resultID, userID string) (*models.MatchResult, error)

	GetWithSubject(ctx context.Context, id string) (*models.MatchJob, string, error)
}

// StorageManager bundles the per-entity storages behind one lifecycle
type StorageManager interface {
	UserStorage() UserStorage
	ResumeStorage() ResumeStorage
	JobStorage() JobStorage
	MatchStorage() MatchStorage

	// ReapStale moves rows stuck in transient states for longer than the
	// threshold into their error states, emitting the usual status events.
	// Returns the number of rows moved.
	ReapStale(ctx context.Context, olderThan time.Duration) (int, error)

	// Ping verifies database connectivity
	Ping(ctx context.Context) error

	// Close closes the underlying pool
	Close() error
}
