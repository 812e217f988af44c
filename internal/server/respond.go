package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.ErrorContext(context.Background(), "encode response failed", logfields.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, ErrorResponse{
		Status:    "error",
		Error:     message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}
