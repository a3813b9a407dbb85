package common

import (
	"github.com/google/uuid"
)

// Entity IDs are prefixed UUIDs so logs and queue payloads stay readable.

// NewUserID generates a unique user ID with the "usr_" prefix
func NewUserID() string {
	return "usr_" + uuid.New().String()
}

// NewResumeID generates a unique resume ID with the "res_" prefix
func NewResumeID() string {
	return "res_" + uuid.New().String()
}

// NewJobID generates a unique job description ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewMatchJobID generates a unique match job ID with the "mat_" prefix
func NewMatchJobID() string {
	return "mat_" + uuid.New().String()
}

// NewMatchResultID generates a unique match result ID with the "mres_" prefix
func NewMatchResultID() string {
	return "mres_" + uuid.New().String()
}
