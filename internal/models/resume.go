package models

import (
	"encoding/json"
	"time"
)

// Resume is an uploaded candidate document. Bytes live in object storage
// under StorageKey; ParsedSummary is the opaque JSON blob written by the
// NLP parse.
type Resume struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Filename      string          `json:"filename"`
	MimeType      string          `json:"mimeType"`
	StorageKey    string          `json:"-"`
	Status        DocumentStatus  `json:"status"`
	ParsedSummary json.RawMessage `json:"parsedData,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	IsDeleted     bool            `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Skills []CandidateSkill `json:"skills,omitempty"`
}

// CandidateSkill is a derived child row, wholly replaced on each
// successful parse.
type CandidateSkill struct {
	Skill           string   `json:"skill"`
	ExperienceYears *float64 `json:"experienceYears,omitempty"`
	Proficiency     string   `json:"proficiency,omitempty"`
}
