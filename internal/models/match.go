package models

import (
	"encoding/json"
	"time"
)

// MatchJob tracks one asynchronous match computation between a resume and a
// job description. ResultID is set iff Status is completed.
type MatchJob struct {
	ID           string      `json:"id"`
	UserID       string      `json:"-"`
	ResumeID     string      `json:"resumeId"`
	JobID        string      `json:"jobId"`
	Status       MatchStatus `json:"status"`
	ErrorMessage string      `json:"error,omitempty"`
	ResultID     string      `json:"resultId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// MatchResult is the persisted outcome of a completed match job. Summary is
// the enriched match summary blob stored as text and parsed at read time.
type MatchResult struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	ResumeID  string          `json:"resumeId"`
	JobID     string          `json:"jobId"`
	Score     float64         `json:"score"`
	Summary   json.RawMessage `json:"summary"`
	CreatedAt time.Time       `json:"createdAt"`
}
