package handlers

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in {"error": "<code>"} bodies
const (
	codeFileRequired           = "file_required"
	codeTitleRequired          = "title_required"
	codeFileOrTextRequired     = "file_or_text_required"
	codeFileTooLarge           = "file_too_large"
	codeUnsupportedMediaType   = "unsupported_media_type"
	codeResumeAndJobIDRequired = "resumeId_and_jobId_required"
	codeUpgradeRequired        = "upgrade_required"
	codeResumeNotFound         = "resume_not_found"
	codeJobNotFound            = "job_not_found"
	codeResumeNotReady         = "resume_not_ready"
	codeJobNotReady            = "job_not_ready"
	codeNotFound               = "not_found"
	codeInternalError          = "internal_error"
)

// WriteJSON writes a JSON response with the specified status code and data
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes the standard {"error": "<code>"} body
func WriteError(w http.ResponseWriter, statusCode int, code string) error {
	return WriteJSON(w, statusCode, map[string]string{"error": code})
}

// WriteQueued writes the 202 body returned by every async create
func WriteQueued(w http.ResponseWriter, id string) error {
	return WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "queued",
	})
}

// RequireMethod validates that the request uses the specified method
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// isPrivileged reports whether the request carries the pro-member marker
// that bypasses the match quota
func isPrivileged(r *http.Request) bool {
	return r.Header.Get("x-pro-member") == "1"
}
