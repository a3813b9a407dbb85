package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// Manager implements the StorageManager interface for Postgres
type Manager struct {
	pool   *pgxpool.Pool
	user   interfaces.UserStorage
	resume interfaces.ResumeStorage
	job    interfaces.JobStorage
	match  interfaces.MatchStorage
	events interfaces.EventService
	logger arbor.ILogger
}

// NewManager connects the pool, bootstraps the schema and wires the
// per-entity storages. Status writes emit events on the given bus after
// the durable write.
func NewManager(ctx context.Context, cfg common.DatabaseConfig, events interfaces.EventService, logger arbor.ILogger) (interfaces.StorageManager, error) {
	pool, err := NewPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	manager := &Manager{
		pool:   pool,
		user:   NewUserStorage(pool, logger),
		resume: NewResumeStorage(pool, events, logger),
		job:    NewJobStorage(pool, events, logger),
		match:  NewMatchStorage(pool, events, logger),
		events: events,
		logger: logger,
	}

	logger.Info().Msg("Postgres storage manager initialized")

	return manager, nil
}

// UserStorage returns the user storage interface
func (m *Manager) UserStorage() interfaces.UserStorage {
	return m.user
}

// ResumeStorage returns the resume storage interface
func (m *Manager) ResumeStorage() interfaces.ResumeStorage {
	return m.resume
}

// JobStorage returns the job description storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// MatchStorage returns the match storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// ReapStale fails rows that have sat in a transient state past the
// threshold: crashed workers whose messages exhausted their redeliveries
// leave such rows behind. Each reaped row emits its usual status event.
func (m *Manager) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	total := 0

	reaps := []struct {
		query     string
		eventType interfaces.EventType
		to        string
	}{
		{
			query: `UPDATE resumes SET status = 'error', error_message = 'processing timed out', updated_at = now()
				WHERE status = 'processing' AND updated_at < $1 AND is_deleted = FALSE
				RETURNING id, updated_at`,
			eventType: interfaces.EventResumeStatusChanged,
			to:        "error",
		},
		{
			query: `UPDATE job_descriptions SET status = 'error', error_message = 'processing timed out', updated_at = now()
				WHERE status = 'processing' AND updated_at < $1 AND is_deleted = FALSE
				RETURNING id, updated_at`,
			eventType: interfaces.EventJobStatusChanged,
			to:        "error",
		},
		{
			query: `UPDATE match_jobs SET status = 'failed', error_message = 'match timed out', updated_at = now()
				WHERE status = 'running' AND updated_at < $1
				RETURNING id, updated_at`,
			eventType: interfaces.EventMatchStatusChanged,
			to:        "failed",
		},
	}

	for _, reap := range reaps {
		rows, err := m.pool.Query(ctx, reap.query, cutoff)
		if err != nil {
			return total, fmt.Errorf("stale reap failed: %w", err)
		}

		type reaped struct {
			id string
			ts time.Time
		}
		var hits []reaped
		for rows.Next() {
			var r reaped
			if err := rows.Scan(&r.id, &r.ts); err != nil {
				rows.Close()
				return total, err
			}
			hits = append(hits, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return total, err
		}

		for _, hit := range hits {
			total++
			if m.events == nil {
				continue
			}
			if err := m.events.Publish(ctx, interfaces.Event{
				Type:    reap.eventType,
				Payload: models.StatusChange{ID: hit.id, Status: reap.to, Ts: hit.ts},
			}); err != nil {
				m.logger.Warn().Err(err).Str("id", hit.id).Msg("Failed to publish reap event")
			}
		}
	}

	return total, nil
}

// Ping verifies database connectivity
func (m *Manager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}

// Close closes the connection pool
func (m *Manager) Close() error {
	m.pool.Close()
	return nil
}
