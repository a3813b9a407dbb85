package workers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// ResumeWorker processes parseResume messages: fetch the stored bytes, call
// the NLP parse, replace the derived skills and move the resume to ready.
type ResumeWorker struct {
	resumes interfaces.ResumeStorage
	blobs   interfaces.ObjectStore
	nlp     interfaces.NLPService
	logger  arbor.ILogger
}

// NewResumeWorker creates a parseResume worker
func NewResumeWorker(resumes interfaces.ResumeStorage, blobs interfaces.ObjectStore, nlp interfaces.NLPService, logger arbor.ILogger) *ResumeWorker {
	return &ResumeWorker{resumes: resumes, blobs: blobs, nlp: nlp, logger: logger}
}

// parsedResumeSummary is the blob written on success
type parsedResumeSummary struct {
	Sections   json.RawMessage `json:"sections"`
	Profile    json.RawMessage `json:"profile"`
	Statistics json.RawMessage `json:"statistics"`
}

// Handle processes one message. Returning an error leaves the message for
// redelivery; a nil return deletes it.
func (w *ResumeWorker) Handle(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.ParseResumePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		// Malformed payloads can never succeed; drop by returning nil
		w.logger.Error().Err(err).Msg("Dropping malformed parseResume payload")
		return nil
	}

	log := w.logger.WithCorrelationId(payload.ResumeID)

	moved, err := w.resumes.UpdateStatus(ctx, payload.ResumeID, models.DocumentStatusQueued, models.DocumentStatusProcessing, nil, "")
	if err != nil {
		return err
	}
	if !moved {
		proceed, err := w.shouldResume(ctx, payload.ResumeID)
		if err != nil {
			return err
		}
		if !proceed {
			log.Info().Msg("Resume already settled, dropping message")
			return nil
		}
		log.Warn().Msg("Resuming interrupted parse")
	}

	data, err := w.blobs.GetBytes(ctx, payload.StorageKey)
	if err != nil {
		return w.fail(ctx, log, payload.ResumeID, fmt.Errorf("fetch stored document: %w", err))
	}

	analysis, err := w.nlp.ParseResume(ctx, models.NLPParseResumeRequest{
		Filename:   payload.Filename,
		MimeType:   payload.MimeType,
		ContentB64: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return w.fail(ctx, log, payload.ResumeID, fmt.Errorf("nlp parse: %w", err))
	}

	skills := make([]models.CandidateSkill, 0, len(analysis.Skills))
	for _, s := range analysis.Skills {
		skills = append(skills, models.CandidateSkill{
			Skill:           s.Skill,
			ExperienceYears: s.ExperienceYears,
			Proficiency:     s.Proficiency,
		})
	}
	if err := w.resumes.ReplaceSkills(ctx, payload.ResumeID, skills); err != nil {
		return w.fail(ctx, log, payload.ResumeID, fmt.Errorf("replace skills: %w", err))
	}

	summary, err := json.Marshal(parsedResumeSummary{
		Sections:   analysis.Sections,
		Profile:    analysis.Profile,
		Statistics: analysis.Statistics,
	})
	if err != nil {
		return w.fail(ctx, log, payload.ResumeID, fmt.Errorf("marshal parsed summary: %w", err))
	}

	if _, err := w.resumes.UpdateStatus(ctx, payload.ResumeID, models.DocumentStatusProcessing, models.DocumentStatusReady, summary, ""); err != nil {
		return err
	}

	log.Info().Int("skills", len(skills)).Msg("Resume parsed")
	return nil
}

// shouldResume decides what to do when the queued -> processing transition
// found no row: a deleted or already settled resume drops the message, a
// row stuck in processing is an interrupted earlier delivery and continues.
func (w *ResumeWorker) shouldResume(ctx context.Context, resumeID string) (bool, error) {
	row, _, err := w.resumes.GetWithSubject(ctx, resumeID)
	if err != nil {
		return false, err
	}
	return row != nil && row.Status == models.DocumentStatusProcessing, nil
}

// fail marks the resume errored and returns the original error so the
// queue records the failed delivery
func (w *ResumeWorker) fail(ctx context.Context, log arbor.ILogger, resumeID string, cause error) error {
	log.Error().Err(cause).Msg("Resume parse failed")
	if _, err := w.resumes.UpdateStatus(ctx, resumeID, models.DocumentStatusProcessing, models.DocumentStatusError, nil, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to mark resume errored")
	}
	return cause
}
