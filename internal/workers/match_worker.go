package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// MatchWorker processes computeMatch messages: score the resume's skills
// against the job's requirements and persist the enriched result.
type MatchWorker struct {
	matches interfaces.MatchStorage
	resumes interfaces.ResumeStorage
	jobs    interfaces.JobStorage
	nlp     interfaces.NLPService
	logger  arbor.ILogger
}

// NewMatchWorker creates a computeMatch worker
func NewMatchWorker(matches interfaces.MatchStorage, resumes interfaces.ResumeStorage, jobs interfaces.JobStorage, nlp interfaces.NLPService, logger arbor.ILogger) *MatchWorker {
	return &MatchWorker{matches: matches, resumes: resumes, jobs: jobs, nlp: nlp, logger: logger}
}

// Handle processes one message. Returning an error leaves the message for
// redelivery; a nil return deletes it.
func (w *MatchWorker) Handle(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.ComputeMatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Error().Err(err).Msg("Dropping malformed computeMatch payload")
		return nil
	}

	log := w.logger.WithCorrelationId(payload.MatchJobID)

	moved, err := w.matches.UpdateStatus(ctx, payload.MatchJobID, models.MatchStatusQueued, models.MatchStatusRunning, "")
	if err != nil {
		return err
	}
	if !moved {
		proceed, err := w.shouldResume(ctx, payload.MatchJobID)
		if err != nil {
			return err
		}
		if !proceed {
			log.Info().Msg("Match job already settled, dropping message")
			return nil
		}
		log.Warn().Msg("Resuming interrupted match")
	}

	resume, err := w.resumes.GetForUser(ctx, payload.ResumeID, payload.UserID)
	if err != nil {
		return err
	}
	if resume == nil {
		return w.fail(ctx, log, payload.MatchJobID, fmt.Errorf("resume %s no longer available", payload.ResumeID))
	}

	job, err := w.jobs.GetForUser(ctx, payload.JobID, payload.UserID)
	if err != nil {
		return err
	}
	if job == nil {
		return w.fail(ctx, log, payload.MatchJobID, fmt.Errorf("job %s no longer available", payload.JobID))
	}

	resp, err := w.nlp.Match(ctx, buildMatchRequest(resume, job))
	if err != nil {
		return w.fail(ctx, log, payload.MatchJobID, fmt.Errorf("nlp match: %w", err))
	}

	summary := BuildMatchSummary(resume, resp)
	summaryBlob, err := json.Marshal(summary)
	if err != nil {
		return w.fail(ctx, log, payload.MatchJobID, fmt.Errorf("marshal match summary: %w", err))
	}

	result := &models.MatchResult{
		ID:       common.NewMatchResultID(),
		UserID:   payload.UserID,
		ResumeID: payload.ResumeID,
		JobID:    payload.JobID,
		Score:    summary.OverallMatchScore,
		Summary:  summaryBlob,
	}

	completed, err := w.matches.Complete(ctx, payload.MatchJobID, result)
	if err != nil {
		return err
	}
	if !completed {
		log.Warn().Msg("Match job settled concurrently, result discarded")
		return nil
	}

	log.Info().Float64("score", result.Score).Msg("Match computed")
	return nil
}

func buildMatchRequest(resume *models.Resume, job *models.Job) models.NLPMatchRequest {
	req := models.NLPMatchRequest{
		CandidateSkills: make([]models.NLPSkill, 0, len(resume.Skills)),
		Requirements:    make([]models.NLPMatchRequirement, 0, len(job.Requirements)),
	}
	for _, s := range resume.Skills {
		req.CandidateSkills = append(req.CandidateSkills, models.NLPSkill{
			Skill:           s.Skill,
			ExperienceYears: s.ExperienceYears,
			Proficiency:     s.Proficiency,
		})
	}
	for _, r := range job.Requirements {
		req.Requirements = append(req.Requirements, models.NLPMatchRequirement{
			Skill:      r.Skill,
			Importance: r.Importance,
			Inferred:   r.Inferred,
		})
	}
	return req
}

func (w *MatchWorker) shouldResume(ctx context.Context, matchJobID string) (bool, error) {
	row, _, err := w.matches.GetWithSubject(ctx, matchJobID)
	if err != nil {
		return false, err
	}
	return row != nil && row.Status == models.MatchStatusRunning, nil
}

func (w *MatchWorker) fail(ctx context.Context, log arbor.ILogger, matchJobID string, cause error) error {
	log.Error().Err(cause).Msg("Match computation failed")
	if _, err := w.matches.UpdateStatus(ctx, matchJobID, models.MatchStatusRunning, models.MatchStatusFailed, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to mark match job failed")
	}
	return cause
}
