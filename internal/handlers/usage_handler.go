package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/skillmatch/internal/auth"
	"github.com/ternarybob/skillmatch/internal/interfaces"
)

// UsageHandler serves GET /api/v1/usage
type UsageHandler struct {
	users  interfaces.UserStorage
	logger arbor.ILogger
}

// NewUsageHandler creates a usage handler
func NewUsageHandler(users interfaces.UserStorage, logger arbor.ILogger) *UsageHandler {
	return &UsageHandler{users: users, logger: logger}
}

// GetUsageHandler returns the caller's quota snapshot
func (h *UsageHandler) GetUsageHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	usage, err := h.users.Usage(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get usage")
		WriteError(w, http.StatusInternalServerError, codeInternalError)
		return
	}
	WriteJSON(w, http.StatusOK, usage)
}
