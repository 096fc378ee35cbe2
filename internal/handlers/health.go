package handlers

import (
	"net/http"
	"time"
)

const version = "0.1.0"

// HealthResponse represents the health check response. The engine holds all
// state in memory, so health reduces to process liveness plus a few live
// counters.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Rooms     int    `json:"rooms"`
	Sessions  int    `json:"sessions"`
	Timestamp string `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	for _, rm := range h.registry.List() {
		sessions += rm.SessionCount()
	}

	h.JSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Rooms:     h.registry.Count(),
		Sessions:  sessions,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
