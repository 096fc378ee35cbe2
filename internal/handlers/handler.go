package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/srb-saurabh/collaborative-canvas/internal/room"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	registry *room.Registry
	started  time.Time
}

// NewHandler creates a new Handler over the live room registry.
func NewHandler(registry *room.Registry) *Handler {
	return &Handler{registry: registry, started: time.Now()}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
