package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"chatrelay.io/ai-chat-server/internal/core"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// ChatLogID is set when the reply was saved but not delivered.
	ChatLogID string `json:"chatLogId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

// writeError maps core errors to status codes. Internal causes are logged
// and never returned to the client.
func (h *APIHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var derr *core.DeliveryError
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No user found"})
	case errors.As(err, &derr):
		h.logger.Error("reply not delivered", slog.String("path", r.URL.Path), slog.String("chat_log_id", derr.ChatLogID), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Reply saved but not delivered", ChatLogID: derr.ChatLogID})
	default:
		h.logger.Error("internal server error", slog.String("path", r.URL.Path), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal Server Error"})
	}
}
