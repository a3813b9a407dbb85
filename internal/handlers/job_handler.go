package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/common"
	"github.com/ternarybob/skillmatch/internal/interfaces"
	"github.com/ternarybob/skillmatch/internal/models"
	"github.com/ternarybob/skillmatch/internal/services/blob"
)

// JobHandler serves the /api/v1/jobs surface. Job descriptions arrive
// either as JSON {title, text} or as a multipart file with a title field.
type JobHandler struct {
	jobs   interfaces.JobStorage
	blobs  interfaces.ObjectStore
	queue  interfaces.QueueManager
	logger arbor.ILogger
}

// NewJobHandler creates a job description handler
func NewJobHandler(jobs interfaces.JobStorage, blobs interfaces.ObjectStore, queue interfaces.QueueManager, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobs: jobs, blobs: blobs, queue: queue, logger: logger}
}

// CollectionHandler dispatches POST (create) and GET (list) on /jobs
func (h *JobHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler dispatches GET and DELETE on /jobs/{id}
func (h *JobHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JobHandler) create(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		h.createFromFile(w, r)
		return
	}
	h.createFromText(w, r)
}

func (h *JobHandler) createFromText(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, codeFileOrTextRequired)
		return
	}
	if strings.TrimSpace(body.Title) == "" {
		WriteError(w, http.StatusBadRequest, codeTitleRequired)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		WriteError(w, http.StatusBadRequest, codeFileOrTextRequired)
		return
	}

	userID := auth.UserID(r.Context())
	job := &models.Job{
		ID:       common.NewJobID(),
		UserID:   userID,
		Title:    body.Title,
		Source:   models.JobSourceText,
		MimeType: "text/plain",
		RawText:  body.Text,
		Status:   models.DocumentStatusQueued,
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job description")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	h.enqueue(w, r, job)
}

func (h *JobHandler) createFromFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge)
			return
		}
		WriteError(w, http.StatusBadRequest, codeFileOrTextRequired)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		WriteError(w, http.StatusBadRequest, codeTitleRequired)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, codeFileOrTextRequired)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !allowedMimeTypes[mimeType] {
		WriteError(w, http.StatusUnsupportedMediaType, codeUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read upload")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	userID := auth.UserID(r.Context())
	job := &models.Job{
		ID:         common.NewJobID(),
		UserID:     userID,
		Title:      title,
		Source:     models.JobSourceFile,
		Filename:   header.Filename,
		MimeType:   mimeType,
		StorageKey: blob.NewJobKey(header.Filename, mimeType),
		Status:     models.DocumentStatusQueued,
	}

	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create job description")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	if err := h.blobs.Put(r.Context(), job.StorageKey, data, mimeType); err != nil {
		h.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to store job bytes")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	h.enqueue(w, r, job)
}

func (h *JobHandler) enqueue(w http.ResponseWriter, r *http.Request, job *models.Job) {
	msg, err := models.NewQueueMessage(models.QueueParseJob, models.ParseJobPayload{
		JobID:      job.ID,
		Source:     job.Source,
		StorageKey: job.StorageKey,
		Filename:   job.Filename,
		MimeType:   job.MimeType,
		RawText:    job.RawText,
		UserID:     job.UserID,
		Title:      job.Title,
	})
	if err == nil {
		err = h.queue.Enqueue(r.Context(), models.QueueParseJob, msg)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue job parse")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	WriteQueued(w, job.ID)
}

func (h *JobHandler) list(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list job descriptions")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	for _, job := range jobs {
		job.ParsedSummary = nil
		job.Requirements = nil
		job.SoftSkills = nil
	}
	WriteJSON(w, http.StatusOK, jobs)
}

func (h *JobHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	job, err := h.jobs.GetForUser(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to get job description")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

func (h *JobHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := h.jobs.SoftDelete(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", id).Msg("Failed to delete job description")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
