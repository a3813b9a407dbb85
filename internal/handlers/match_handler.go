package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
	"github.com/ternarybob/skillmatch/internal/services/quota"
)

// MatchHandler serves the /api/v1/matches surface
type MatchHandler struct {
	matches  interfaces.MatchStorage
	resumes  interfaces.ResumeStorage
	jobs     interfaces.JobStorage
	quota    *quota.Enforcer
	queue    interfaces.QueueManager
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewMatchHandler creates a match handler
func NewMatchHandler(matches interfaces.MatchStorage, resumes interfaces.ResumeStorage, jobs interfaces.JobStorage, enforcer *quota.Enforcer, queue interfaces.QueueManager, logger arbor.ILogger) *MatchHandler {
	return &MatchHandler{
		matches:  matches,
		resumes:  resumes,
		jobs:     jobs,
		quota:    enforcer,
		queue:    queue,
		validate: validator.New(),
		logger:   logger,
	}
}

type createMatchRequest struct {
	ResumeID string `json:"resumeId" validate:"required"`
	JobID    string `json:"jobId" validate:"required"`
}

// CollectionHandler dispatches POST (create) and GET (list) on /matches
func (h *MatchHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler serves GET /matches/{id}
func (h *MatchHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/matches/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}
	h.get(w, r, id)
}

// create validates both inputs are ready, spends quota, persists the
// queued match job and enqueues the computation
func (h *MatchHandler) create(w http.ResponseWriter, r *http.Request) {
	var body createMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, codeResumeAndJobIDRequired)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		WriteError(w, http.StatusBadRequest, codeResumeAndJobIDRequired)
		return
	}

	userID := auth.UserID(r.Context())

	resume, err := h.resumes.GetForUser(r.Context(), body.ResumeID, userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load resume for match")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if resume == nil {
		WriteError(w, http.StatusNotFound, codeResumeNotFound)
		return
	}
	if resume.Status != models.DocumentStatusReady {
		WriteError(w, http.StatusConflict, codeResumeNotReady)
		return
	}

	job, err := h.jobs.GetForUser(r.Context(), body.JobID, userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load job for match")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, codeJobNotFound)
		return
	}
	if job.Status != models.DocumentStatusReady {
		WriteError(w, http.StatusConflict, codeJobNotReady)
		return
	}

	if err := h.quota.Consume(r.Context(), userID, isPrivileged(r)); err != nil {
		if errors.Is(err, quota.ErrQuotaExceeded) {
			WriteError(w, http.StatusPaymentRequired, codeUpgradeRequired)
			return
		}
		h.logger.Error().Err(err).Msg("Quota check failed")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	matchJob := &models.MatchJob{
		ID:       common.NewMatchJobID(),
		UserID:   userID,
		ResumeID: body.ResumeID,
		JobID:    body.JobID,
		Status:   models.MatchStatusQueued,
	}
	if err := h.matches.Create(r.Context(), matchJob); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create match job")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	msg, err := models.NewQueueMessage(models.QueueComputeMatch, models.ComputeMatchPayload{
		MatchJobID: matchJob.ID,
		ResumeID:   body.ResumeID,
		JobID:      body.JobID,
		UserID:     userID,
	})
	if err == nil {
		err = h.queue.Enqueue(r.Context(), models.QueueComputeMatch, msg)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("match_job_id", matchJob.ID).Msg("Failed to enqueue match")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	WriteQueued(w, matchJob.ID)
}

func (h *MatchHandler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.matches.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list match jobs")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if jobs == nil {
		jobs = []*models.MatchJob{}
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// matchView is the GET /matches/{id} body; the result is embedded once the
// job completes
type matchView struct {
	*models.MatchJob
	Match *models.MatchResult `json:"match,omitempty"`
}

func (h *MatchHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	userID := auth.UserID(r.Context())

	job, err := h.matches.GetForUser(r.Context(), id, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("match_job_id", id).Msg("Failed to get match job")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}

	view := matchView{MatchJob: job}
	if job.ResultID != "" {
		result, err := h.matches.GetResultForUser(r.Context(), job.ResultID, userID)
		if err != nil {
			h.logger.Error().Err(err).Str("match_job_id", id).Msg("Failed to get match result")
			WriteError(w, http.StatusInternalServerError, codeInternalError)
			return
		}
		view.Match = result
	}

	WriteJSON(w, http.StatusOK, view)
}
