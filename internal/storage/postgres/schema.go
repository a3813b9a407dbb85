package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the minimal bootstrap DDL. Deployments that manage the schema
// externally can skip EnsureSchema; every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_subject TEXT NOT NULL UNIQUE,
		email TEXT,
		annual_limit INTEGER NOT NULL DEFAULT 100,
		annual_usage_count INTEGER NOT NULL DEFAULT 0,
		annual_period_start TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS resumes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		status TEXT NOT NULL,
		parsed_summary TEXT,
		error_message TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS candidate_skills (
		id BIGSERIAL PRIMARY KEY,
		resume_id TEXT NOT NULL REFERENCES resumes(id),
		skill TEXT NOT NULL,
		experience_years DOUBLE PRECISION,
		proficiency TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS job_descriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		source TEXT NOT NULL,
		filename TEXT,
		mime_type TEXT NOT NULL,
		storage_key TEXT,
		raw_text TEXT,
		status TEXT NOT NULL,
		parsed_summary TEXT,
		error_message TEXT,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS requirements (
		id BIGSERIAL PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES job_descriptions(id),
		skill TEXT NOT NULL,
		importance DOUBLE PRECISION NOT NULL,
		inferred BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS job_soft_skills (
		id BIGSERIAL PRIMARY KEY,
		job_id TEXT NOT NULL REFERENCES job_descriptions(id),
		skill TEXT NOT NULL,
		value DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS match_jobs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		resume_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		result_id TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		resume_id TEXT NOT NULL,
		job_id TEXT NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		summary TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_resumes_user ON resumes (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_user ON job_descriptions (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_match_jobs_user ON match_jobs (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_candidate_skills_resume ON candidate_skills (resume_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requirements_job ON requirements (job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_job_soft_skills_job ON job_soft_skills (job_id)`,
}

// EnsureSchema creates the tables and indexes if they do not exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap failed: %w", err)
		}
	}
	return nil
}
