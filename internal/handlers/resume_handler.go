package handlers

import (
	"errors"
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

// maxUploadBytes caps document uploads at 10 MiB
const maxUploadBytes = 10 << 20

// allowedMimeTypes are the document types the NLP service can parse
var allowedMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

// ResumeHandler serves the /api/v1/resumes surface
type ResumeHandler struct {
	resumes interfaces.ResumeStorage
	blobs   interfaces.ObjectStore
	queue   interfaces.QueueManager
	logger  arbor.ILogger
}

// NewResumeHandler creates a resume handler
func NewResumeHandler(resumes interfaces.ResumeStorage, blobs interfaces.ObjectStore, queue interfaces.QueueManager, logger arbor.ILogger) *ResumeHandler {
	return &ResumeHandler{resumes: resumes, blobs: blobs, queue: queue, logger: logger}
}

// CollectionHandler dispatches POST (upload) and GET (list) on /resumes
func (h *ResumeHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.upload(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ItemHandler dispatches GET and DELETE on /resumes/{id}
func (h *ResumeHandler) ItemHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/resumes/")
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

// upload persists the queued row, stores the bytes and enqueues the parse.
// The 202 is written only after the enqueue succeeds.
func (h *ResumeHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		if isBodyTooLarge(err) {
			WriteError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge)
			return
		}
		WriteError(w, http.StatusBadRequest, codeFileRequired)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, codeFileRequired)
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
	resume := &models.Resume{
		ID:         common.NewResumeID(),
		UserID:     userID,
		Filename:   header.Filename,
		MimeType:   mimeType,
		StorageKey: blob.NewResumeKey(header.Filename, mimeType),
		Status:     models.DocumentStatusQueued,
	}

	if err := h.resumes.Create(r.Context(), resume); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create resume")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	if err := h.blobs.Put(r.Context(), resume.StorageKey, data, mimeType); err != nil {
		h.logger.Error().Err(err).Str("resume_id", resume.ID).Msg("Failed to store resume bytes")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	msg, err := models.NewQueueMessage(models.QueueParseResume, models.ParseResumePayload{
		ResumeID:   resume.ID,
		StorageKey: resume.StorageKey,
		Filename:   resume.Filename,
		MimeType:   resume.MimeType,
		UserID:     userID,
	})
	if err == nil {
		err = h.queue.Enqueue(r.Context(), models.QueueParseResume, msg)
	}
	if err != nil {
		// Row stays queued; operational recovery re-enqueues it
		h.logger.Error().Err(err).Str("resume_id", resume.ID).Msg("Failed to enqueue resume parse")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}

	WriteQueued(w, resume.ID)
}

func (h *ResumeHandler) list(w http.ResponseWriter, r *http.Request) {
	resumes, err := h.resumes.ListForUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list resumes")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if resumes == nil {
		resumes = []*models.Resume{}
	}

	// List rows omit the parsed blob and skills
	for _, resume := range resumes {
		resume.ParsedSummary = nil
		resume.Skills = nil
	}
	WriteJSON(w, http.StatusOK, resumes)
}

func (h *ResumeHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	resume, err := h.resumes.GetForUser(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Str("resume_id", id).Msg("Failed to get resume")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if resume == nil {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}
	WriteJSON(w, http.StatusOK, resume)
}

func (h *ResumeHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	deleted, err := h.resumes.SoftDelete(r.Context(), id, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Str("resume_id", id).Msg("Failed to delete resume")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, codeNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
