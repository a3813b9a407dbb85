package handlers

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
)

// Bridge listener tags; SubscribeTagged makes re-registration a no-op so a
// second boot pass never doubles deliveries
const (
	tagRealtimeResume = "realtime:resume"
	tagRealtimeJob    = "realtime:job"
	tagRealtimeMatch  = "realtime:match"
)

// RealtimeBridge relays status events from the bus into per-subject
// websocket rooms. Events carry only the entity id; the bridge re-reads
// the authoritative row so clients always see committed state.
type RealtimeBridge struct {
	ws      *WebSocketHandler
	resumes interfaces.ResumeStorage
	jobs    interfaces.JobStorage
	matches interfaces.MatchStorage
	logger  arbor.ILogger
}

// NewRealtimeBridge creates the bridge
func NewRealtimeBridge(ws *WebSocketHandler, resumes interfaces.ResumeStorage, jobs interfaces.JobStorage, matches interfaces.MatchStorage, logger arbor.ILogger) *RealtimeBridge {
	return &RealtimeBridge{ws: ws, resumes: resumes, jobs: jobs, matches: matches, logger: logger}
}

// Start subscribes the three listeners. Safe to call more than once.
func (b *RealtimeBridge) Start(events interfaces.EventService) error {
	if err := events.SubscribeTagged(tagRealtimeResume, interfaces.EventResumeStatusChanged, b.onResumeStatus); err != nil {
		return err
	}
	if err := events.SubscribeTagged(tagRealtimeJob, interfaces.EventJobStatusChanged, b.onJobStatus); err != nil {
		return err
	}
	return events.SubscribeTagged(tagRealtimeMatch, interfaces.EventMatchStatusChanged, b.onMatchStatus)
}

type resumeUpdate struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type jobUpdate struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type matchUpdate struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (b *RealtimeBridge) onResumeStatus(ctx context.Context, event interfaces.Event) error {
	change, ok := event.Payload.(models.StatusChange)
	if !ok {
		return nil
	}

	resume, subject, err := b.resumes.GetWithSubject(ctx, change.ID)
	if err != nil {
		b.logger.Warn().Err(err).Str("resume_id", change.ID).Msg("Realtime re-read failed")
		return nil
	}
	if resume == nil || subject == "" {
		// Deleted since the event was published; drop silently
		return nil
	}

	b.ws.EmitToSubject(subject, "resume:update", resumeUpdate{
		ID:        resume.ID,
		Status:    string(resume.Status),
		CreatedAt: resume.CreatedAt,
		UpdatedAt: resume.UpdatedAt,
	})
	return nil
}

func (b *RealtimeBridge) onJobStatus(ctx context.Context, event interfaces.Event) error {
	change, ok := event.Payload.(models.StatusChange)
	if !ok {
		return nil
	}

	job, subject, err := b.jobs.GetWithSubject(ctx, change.ID)
	if err != nil {
		b.logger.Warn().Err(err).Str("job_id", change.ID).Msg("Realtime re-read failed")
		return nil
	}
	if job == nil || subject == "" {
		return nil
	}

	b.ws.EmitToSubject(subject, "job:update", jobUpdate{
		ID:        job.ID,
		Title:     job.Title,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	})
	return nil
}

func (b *RealtimeBridge) onMatchStatus(ctx context.Context, event interfaces.Event) error {
	change, ok := event.Payload.(models.StatusChange)
	if !ok {
		return nil
	}

	matchJob, subject, err := b.matches.GetWithSubject(ctx, change.ID)
	if err != nil {
		b.logger.Warn().Err(err).Str("match_job_id", change.ID).Msg("Realtime re-read failed")
		return nil
	}
	if matchJob == nil || subject == "" {
		return nil
	}

	b.ws.EmitToSubject(subject, "match:update", matchUpdate{
		ID:        matchJob.ID,
		Status:    string(matchJob.Status),
		CreatedAt: matchJob.CreatedAt,
		UpdatedAt: matchJob.UpdatedAt,
	})
	return nil
}
