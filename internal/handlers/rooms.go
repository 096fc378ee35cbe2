package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

// RoomInfo represents a room in the list response.
type RoomInfo struct {
	ID       string `json:"id"`
	Sessions int    `json:"sessions"`
	Ops      int    `json:"ops"`
}

// RoomListResponse represents the rooms list response.
type RoomListResponse struct {
	Rooms []RoomInfo `json:"rooms"`
	Total int        `json:"total"`
}

// RoomDetailResponse is the read-only snapshot of a single room.
type RoomDetailResponse struct {
	ID        string             `json:"id"`
	Users     []models.User      `json:"users"`
	Ops       int                `json:"ops"`
	ActiveOps int                `json:"active_ops"`
	History   []models.Operation `json:"history"`
}

// ListRooms handles listing live rooms.
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.registry.List()

	infos := make([]RoomInfo, len(rooms))
	for i, rm := range rooms {
		infos[i] = RoomInfo{
			ID:       rm.ID,
			Sessions: rm.SessionCount(),
			Ops:      rm.Log.Len(),
		}
	}

	h.JSON(w, http.StatusOK, RoomListResponse{Rooms: infos, Total: len(infos)})
}

// GetRoom handles fetching a read-only snapshot of one room. The websocket
// protocol is the live surface; this endpoint exists for debugging and for
// dashboards.
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	rm, ok := h.registry.Get(roomID)
	if !ok {
		h.Error(w, http.StatusNotFound, "room not found")
		return
	}

	history := rm.Log.History()

	// Optional cap on returned history length, newest entries win.
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(history) {
			history = history[len(history)-limit:]
		}
	}

	active := 0
	for _, op := range history {
		if op.Active() {
			active++
		}
	}

	h.JSON(w, http.StatusOK, RoomDetailResponse{
		ID:        rm.ID,
		Users:     rm.Roster(),
		Ops:       rm.Log.Len(),
		ActiveOps: active,
		History:   history,
	})
}
