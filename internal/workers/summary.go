package workers

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ternarybob/skillmatch/internal/models"
)

// MatchSummary is the enriched blob persisted with a match result
type MatchSummary struct {
	OverallMatchScore float64        `json:"overall_match_score"`
	Candidate         MatchCandidate `json:"candidate"`
	Details           []MatchDetail  `json:"details"`
	Strengths         []string       `json:"strengths"`
	Weaknesses        []string       `json:"weaknesses"`
}

// MatchCandidate is the resume view embedded in the summary
type MatchCandidate struct {
	Name            string   `json:"name"`
	Skills          []string `json:"skills"`
	ExperienceYears *float64 `json:"experience_years,omitempty"`
	Degrees         []string `json:"degrees,omitempty"`
	Certifications  []string `json:"certifications,omitempty"`
	Summary         string   `json:"summary,omitempty"`
}

// MatchDetail is the per-requirement verdict
type MatchDetail struct {
	Requirement            string  `json:"requirement"`
	Similarity             float64 `json:"similarity"`
	MatchedSkill           string  `json:"matched_skill,omitempty"`
	CandidateHasExperience bool    `json:"candidate_has_experience"`
	Comments               string  `json:"comments"`
}

// matchThreshold is the similarity at which a requirement counts as covered
const matchThreshold = 0.5

// candidateProfile is the slice of the resume parsed summary the builder
// reads. Everything else in the blob stays opaque.
type candidateProfile struct {
	Profile struct {
		Name            string   `json:"name"`
		ExperienceYears *float64 `json:"experience_years"`
		Degrees         []string `json:"degrees"`
		Certifications  []string `json:"certifications"`
		Summary         string   `json:"summary"`
	} `json:"profile"`
}

// BuildMatchSummary assembles the persisted summary from the resume, its
// skills and the NLP match response. The overall score prefers the top
// level score and falls back to the summary's.
func BuildMatchSummary(resume *models.Resume, resp *models.NLPMatchResponse) MatchSummary {
	summary := MatchSummary{
		OverallMatchScore: overallScore(resp),
		Candidate:         buildCandidate(resume),
		Details:           make([]MatchDetail, 0, len(resp.Summary.Details)),
		Strengths:         make([]string, 0, len(resp.Summary.Strengths)),
		Weaknesses:        make([]string, 0, len(resp.Summary.Gaps)),
	}

	for _, d := range resp.Summary.Details {
		matched := d.Similarity >= matchThreshold
		summary.Details = append(summary.Details, MatchDetail{
			Requirement:            d.Requirement,
			Similarity:             d.Similarity,
			MatchedSkill:           d.MatchedSkill,
			CandidateHasExperience: matched,
			Comments:               detailComment(d, matched),
		})
	}

	for _, s := range resp.Summary.Strengths {
		summary.Strengths = append(summary.Strengths,
			fmt.Sprintf("%s (similarity %s)", s.Requirement, formatScore(s.Similarity)))
	}
	for _, g := range resp.Summary.Gaps {
		summary.Weaknesses = append(summary.Weaknesses,
			fmt.Sprintf("%s (importance %s)", g.Requirement, formatScore(g.Importance)))
	}

	return summary
}

func overallScore(resp *models.NLPMatchResponse) float64 {
	if resp.Score != nil {
		return *resp.Score
	}
	if resp.Summary.OverallMatchScore != nil {
		return *resp.Summary.OverallMatchScore
	}
	return 0
}

func detailComment(d models.NLPMatchDetail, matched bool) string {
	switch {
	case matched && d.MatchedSkill != "":
		return fmt.Sprintf("Matched via %s (similarity %s)", d.MatchedSkill, formatScore(d.Similarity))
	case matched:
		return fmt.Sprintf("Matched with similarity %s", formatScore(d.Similarity))
	default:
		return "No close match found"
	}
}

func buildCandidate(resume *models.Resume) MatchCandidate {
	candidate := MatchCandidate{
		Skills: dedupeSkills(resume.Skills),
	}

	if len(resume.ParsedSummary) > 0 {
		var profile candidateProfile
		// Unparseable blobs degrade to an empty profile, never a failure
		if err := json.Unmarshal(resume.ParsedSummary, &profile); err == nil {
			candidate.Name = profile.Profile.Name
			candidate.ExperienceYears = profile.Profile.ExperienceYears
			candidate.Degrees = profile.Profile.Degrees
			candidate.Certifications = profile.Profile.Certifications
			candidate.Summary = profile.Profile.Summary
		}
	}

	return candidate
}

// dedupeSkills returns the distinct skill names sorted ascending. Dedupe is
// case-insensitive, first spelling wins.
func dedupeSkills(skills []models.CandidateSkill) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		name := strings.TrimSpace(s.Skill)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
