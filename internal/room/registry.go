// Package room tracks live collaboration rooms: each room owns one
// operation log and the set of currently connected sessions.
package room

import (
	"sort"
	"sync"

	"github.com/srb-saurabh/collaborative-canvas/internal/metrics"
	"github.com/srb-saurabh/collaborative-canvas/internal/models"
	"github.com/srb-saurabh/collaborative-canvas/internal/oplog"
)

// Room is one isolated collaboration surface. Rooms are created on first
// reference and live for the process lifetime; there is no eviction.
type Room struct {
	ID  string
	Log *oplog.Log

	seqMu sync.Mutex // linearizes whole protocol transitions, see Linearize

	mu       sync.RWMutex
	sessions map[string]models.User
}

func newRoom(id string) *Room {
	return &Room{
		ID:       id,
		Log:      oplog.New(),
		sessions: make(map[string]models.User),
	}
}

// Linearize runs fn while holding the room's transition lock. The log's own
// mutex only makes a single append atomic; a protocol transition is a
// mutate-then-broadcast sequence, and those sequences must not interleave or
// receivers could observe echoes in an order different from log order. Every
// coordinator transition for the room runs under this lock. fn must not call
// Linearize on the same room.
func (r *Room) Linearize(fn func()) {
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	fn()
}

// AddSession registers a session in the room's roster. Re-adding an
// existing session ID just refreshes its display name.
func (r *Room) AddSession(sessionID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = models.User{ID: sessionID, Name: name}
}

// RemoveSession drops a session from the roster. Removing an unknown
// session is a no-op; the session's authored operations stay in the log.
func (r *Room) RemoveSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Roster returns the current members ordered by join time (session IDs are
// time-ordered UUIDv7, so sorting by ID yields join order).
func (r *Room) Roster() []models.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.sessions))
	for _, u := range r.sessions {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SessionCount returns the number of connected sessions.
func (r *Room) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Registry maps room IDs to rooms, creating them lazily.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Ensure returns the room with the given ID, creating it if absent.
func (g *Registry) Ensure(roomID string) *Room {
	g.mu.RLock()
	r, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if ok {
		return r
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.rooms[roomID]; ok {
		return r
	}
	r = newRoom(roomID)
	g.rooms[roomID] = r
	metrics.RoomsCreated.Inc()
	return r
}

// Get returns the room with the given ID without creating it.
func (g *Registry) Get(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[roomID]
	return r, ok
}

// List returns all rooms ordered by ID.
func (g *Registry) List() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}
