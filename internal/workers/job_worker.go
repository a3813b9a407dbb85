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

// JobWorker processes parseJob messages. File-sourced jobs fetch their
// bytes from object storage; text-sourced jobs send the raw text directly.
type JobWorker struct {
	jobs   interfaces.JobStorage
	blobs  interfaces.ObjectStore
	nlp    interfaces.NLPService
	logger arbor.ILogger
}

// NewJobWorker creates a parseJob worker
func NewJobWorker(jobs interfaces.JobStorage, blobs interfaces.ObjectStore, nlp interfaces.NLPService, logger arbor.ILogger) *JobWorker {
	return &JobWorker{jobs: jobs, blobs: blobs, nlp: nlp, logger: logger}
}

// parsedJobSummary is the blob written on success
type parsedJobSummary struct {
	Highlights json.RawMessage `json:"highlights"`
	Overview   json.RawMessage `json:"overview"`
	Onet       json.RawMessage `json:"onet,omitempty"`
}

// Handle processes one message. Returning an error leaves the message for
// redelivery; a nil return deletes it.
func (w *JobWorker) Handle(ctx context.Context, msg *models.QueueMessage) error {
	var payload models.ParseJobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Error().Err(err).Msg("Dropping malformed parseJob payload")
		return nil
	}

	log := w.logger.WithCorrelationId(payload.JobID)

	moved, err := w.jobs.UpdateStatus(ctx, payload.JobID, models.DocumentStatusQueued, models.DocumentStatusProcessing, nil, "")
	if err != nil {
		return err
	}
	if !moved {
		proceed, err := w.shouldResume(ctx, payload.JobID)
		if err != nil {
			return err
		}
		if !proceed {
			log.Info().Msg("Job already settled, dropping message")
			return nil
		}
		log.Warn().Msg("Resuming interrupted parse")
	}

	req, err := w.buildRequest(ctx, payload)
	if err != nil {
		return w.fail(ctx, log, payload.JobID, err)
	}

	analysis, err := w.nlp.ParseJob(ctx, req)
	if err != nil {
		return w.fail(ctx, log, payload.JobID, fmt.Errorf("nlp parse: %w", err))
	}

	requirements := make([]models.Requirement, 0, len(analysis.Requirements))
	for _, r := range analysis.Requirements {
		requirements = append(requirements, models.Requirement{
			Skill:      r.Skill,
			Importance: normalizeImportance(r.Importance),
			Inferred:   normalizeInferred(r.Inferred),
		})
	}
	softSkills := make([]models.SoftSkill, 0, len(analysis.SoftSkills))
	for _, s := range analysis.SoftSkills {
		softSkills = append(softSkills, models.SoftSkill{Skill: s.Skill, Value: s.Value})
	}

	if err := w.jobs.ReplaceChildren(ctx, payload.JobID, requirements, softSkills); err != nil {
		return w.fail(ctx, log, payload.JobID, fmt.Errorf("replace children: %w", err))
	}

	summary, err := json.Marshal(parsedJobSummary{
		Highlights: analysis.Highlights,
		Overview:   analysis.Summary,
		Onet:       analysis.Onet,
	})
	if err != nil {
		return w.fail(ctx, log, payload.JobID, fmt.Errorf("marshal parsed summary: %w", err))
	}

	if _, err := w.jobs.UpdateStatus(ctx, payload.JobID, models.DocumentStatusProcessing, models.DocumentStatusReady, summary, ""); err != nil {
		return err
	}

	log.Info().Int("requirements", len(requirements)).Msg("Job description parsed")
	return nil
}

func (w *JobWorker) buildRequest(ctx context.Context, payload models.ParseJobPayload) (models.NLPParseJobRequest, error) {
	if payload.Source == models.JobSourceText {
		return models.NLPParseJobRequest{Text: payload.RawText}, nil
	}

	data, err := w.blobs.GetBytes(ctx, payload.StorageKey)
	if err != nil {
		return models.NLPParseJobRequest{}, fmt.Errorf("fetch stored document: %w", err)
	}
	return models.NLPParseJobRequest{
		Filename:   payload.Filename,
		MimeType:   payload.MimeType,
		ContentB64: base64.StdEncoding.EncodeToString(data),
	}, nil
}

func (w *JobWorker) shouldResume(ctx context.Context, jobID string) (bool, error) {
	row, _, err := w.jobs.GetWithSubject(ctx, jobID)
	if err != nil {
		return false, err
	}
	return row != nil && row.Status == models.DocumentStatusProcessing, nil
}

func (w *JobWorker) fail(ctx context.Context, log arbor.ILogger, jobID string, cause error) error {
	log.Error().Err(cause).Msg("Job parse failed")
	if _, err := w.jobs.UpdateStatus(ctx, jobID, models.DocumentStatusProcessing, models.DocumentStatusError, nil, cause.Error()); err != nil {
		log.Error().Err(err).Msg("Failed to mark job errored")
	}
	return cause
}
