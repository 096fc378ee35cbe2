package canvas

import (
	"sort"
	"sync"
	"time"

	"github.com/srb-saurabh/collaborative-canvas/internal/hub"
)

// cursorTTL is how long a remote cursor stays visible with no updates.
// Expiry is time-based rather than tied to disconnect notifications, so a
// silently dropped connection cannot leave a stuck cursor behind.
const cursorTTL = 2500 * time.Millisecond

// RemoteCursor is one other participant's last known pointer position.
type RemoteCursor struct {
	SessionID string
	Name      string
	X, Y      float64
	Color     string
	seen      time.Time
}

// CursorTracker maintains the ephemeral table of remote cursors.
type CursorTracker struct {
	mu      sync.Mutex
	cursors map[string]RemoteCursor
	ttl     time.Duration
	now     func() time.Time
}

// NewCursorTracker returns an empty tracker with the default expiry window.
func NewCursorTracker() *CursorTracker {
	return &CursorTracker{
		cursors: make(map[string]RemoteCursor),
		ttl:     cursorTTL,
		now:     time.Now,
	}
}

// Observe records a relayed cursor position.
func (t *CursorTracker) Observe(c hub.CursorBroadcast) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors[c.SessionID] = RemoteCursor{
		SessionID: c.SessionID,
		Name:      c.Name,
		X:         c.X,
		Y:         c.Y,
		Color:     c.Color,
		seen:      t.now(),
	}
}

// Remove drops a cursor immediately (e.g. on a roster update that no
// longer lists the session).
func (t *CursorTracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cursors, sessionID)
}

// Active prunes expired cursors and returns the rest, ordered by session.
func (t *CursorTracker) Active() []RemoteCursor {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	out := make([]RemoteCursor, 0, len(t.cursors))
	for id, c := range t.cursors {
		if c.seen.Before(cutoff) {
			delete(t.cursors, id)
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}
