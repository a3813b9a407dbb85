package models

import "encoding/json"

// Wire types for the external NLP collaborator. Field names follow the
// service's JSON contract (snake_case).

// NLPParseResumeRequest is the body of POST /parse/resume
type NLPParseResumeRequest struct {
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	ContentB64 string `json:"content_b64"`
}

// NLPSkill is one extracted candidate skill
type NLPSkill struct {
	Skill           string   `json:"skill"`
	ExperienceYears *float64 `json:"experience_years,omitempty"`
	Proficiency     string   `json:"proficiency,omitempty"`
}

// NLPResumeAnalysis is the response of POST /parse/resume
type NLPResumeAnalysis struct {
	Skills     []NLPSkill      `json:"skills"`
	Sections   json.RawMessage `json:"sections"`
	Profile    json.RawMessage `json:"profile"`
	Statistics json.RawMessage `json:"statistics"`
}

// NLPParseJobRequest is the body of POST /parse/job. Either the file triple
// or Text is set, never both.
type NLPParseJobRequest struct {
	Filename   string `json:"filename,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	ContentB64 string `json:"content_b64,omitempty"`
	Text       string `json:"text,omitempty"`
}

// NLPRequirement is one extracted requirement. Importance and Inferred are
// kept raw because the service is loose about their types; normalization
// happens when the derived rows are written.
type NLPRequirement struct {
	Skill      string          `json:"skill"`
	Importance json.RawMessage `json:"importance,omitempty"`
	Inferred   json.RawMessage `json:"inferred,omitempty"`
}

// NLPSoftSkill is one extracted soft skill
type NLPSoftSkill struct {
	Skill string  `json:"skill"`
	Value float64 `json:"value"`
}

// NLPJobAnalysis is the response of POST /parse/job
type NLPJobAnalysis struct {
	Requirements []NLPRequirement `json:"requirements"`
	Highlights   json.RawMessage  `json:"highlights"`
	Summary      json.RawMessage  `json:"summary"`
	Onet         json.RawMessage  `json:"onet,omitempty"`
	SoftSkills   []NLPSoftSkill   `json:"soft_skills,omitempty"`
}

// NLPMatchRequest is the body of POST /match
type NLPMatchRequest struct {
	CandidateSkills []NLPSkill            `json:"candidate_skills"`
	Requirements    []NLPMatchRequirement `json:"requirements"`
}

// NLPMatchRequirement is a normalized requirement sent to the matcher
type NLPMatchRequirement struct {
	Skill      string  `json:"skill"`
	Importance float64 `json:"importance"`
	Inferred   bool    `json:"inferred"`
}

// NLPMatchDetail is the per-requirement similarity verdict
type NLPMatchDetail struct {
	Requirement  string  `json:"requirement"`
	Similarity   float64 `json:"similarity"`
	MatchedSkill string  `json:"matched_skill,omitempty"`
}

// NLPStrength names a requirement the candidate covers well
type NLPStrength struct {
	Requirement string  `json:"requirement"`
	Similarity  float64 `json:"similarity"`
}

// NLPGap names a requirement the candidate misses
type NLPGap struct {
	Requirement string  `json:"requirement"`
	Importance  float64 `json:"importance"`
}

// NLPMatchSummary is the inner summary of the match response
type NLPMatchSummary struct {
	Details           []NLPMatchDetail `json:"details"`
	Strengths         []NLPStrength    `json:"strengths"`
	Gaps              []NLPGap         `json:"gaps"`
	OverallMatchScore *float64         `json:"overall_match_score,omitempty"`
}

// NLPMatchResponse is the response of POST /match
type NLPMatchResponse struct {
	Score   *float64        `json:"score,omitempty"`
	Summary NLPMatchSummary `json:"summary"`
}
