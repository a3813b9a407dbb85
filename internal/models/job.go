package models

import (
	"encoding/json"
	"time"
)

// JobSource distinguishes uploaded files from pasted text
type JobSource string

const (
	JobSourceFile JobSource = "file"
	JobSourceText JobSource = "text"
)

// Job is a job description, either uploaded as a file or submitted as raw
// text. Requirements and SoftSkills are derived children replaced on each
// successful parse.
type Job struct {
	ID            string          `json:"id"`
	UserID        string          `json:"-"`
	Title         string          `json:"title"`
	Source        JobSource       `json:"source"`
	Filename      string          `json:"filename,omitempty"`
	MimeType      string          `json:"mimeType"`
	StorageKey    string          `json:"-"`
	RawText       string          `json:"-"`
	Status        DocumentStatus  `json:"status"`
	ParsedSummary json.RawMessage `json:"parsedData,omitempty"`
	ErrorMessage  string          `json:"error,omitempty"`
	IsDeleted     bool            `json:"-"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	Requirements []Requirement `json:"requirements,omitempty"`
	SoftSkills   []SoftSkill   `json:"soft_skills,omitempty"`
}

// Requirement is a derived child row. Importance is normalized to [0,1].
type Requirement struct {
	Skill      string  `json:"skill"`
	Importance float64 `json:"importance"`
	Inferred   bool    `json:"inferred"`
}

// SoftSkill is a derived child row for non-technical requirements
type SoftSkill struct {
	Skill string  `json:"skill"`
	Value float64 `json:"value"`
}
