// Package hub is the authority side of the sync protocol: it serializes
// every room's operations into a canonical log and fans the results back
// out to the room's sessions.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/srb-saurabh/collaborative-canvas/internal/ident"
	"github.com/srb-saurabh/collaborative-canvas/internal/metrics"
	"github.com/srb-saurabh/collaborative-canvas/internal/models"
	"github.com/srb-saurabh/collaborative-canvas/internal/room"
)

// Sender delivers one encoded frame to a single connection. Delivery is
// fire-and-forget: implementations drop the frame rather than block.
type Sender interface {
	Send(frame []byte)
}

// Conn is the coordinator-facing state of one connection. A connection is
// unjoined until its first join frame and carries exactly one session at a
// time; joining again replaces the prior session.
type Conn struct {
	session models.Session
	sender  Sender
}

// NewConn wraps an outbound sender as an unjoined connection.
func NewConn(sender Sender) *Conn {
	return &Conn{sender: sender}
}

// SessionID returns the connection's session ID, empty while unjoined.
func (c *Conn) SessionID() string {
	return c.session.ID
}

// Options tunes coordinator behavior.
type Options struct {
	DefaultRoom string // room used when a join names none
	MaxOpPoints int    // reject ops with more points; 0 disables the cap
}

// Coordinator owns the room registry and applies every protocol transition.
// Connections are served by independent goroutines, so each transition that
// mutates a room and broadcasts the result runs under that room's
// Linearize lock; no two transitions on one room can interleave, and every
// receiver observes echoes in log order. Cursor relay stays outside the
// lock, it carries no ordering guarantee.
type Coordinator struct {
	registry *room.Registry
	opts     Options
	log      zerolog.Logger

	mu      sync.RWMutex
	senders map[string]Sender // sessionID -> outbound queue
}

// New creates a coordinator over the given registry.
func New(registry *room.Registry, logger zerolog.Logger, opts Options) *Coordinator {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = "default"
	}
	return &Coordinator{
		registry: registry,
		opts:     opts,
		log:      logger,
		senders:  make(map[string]Sender),
	}
}

// Route decodes one inbound frame and applies it. Malformed frames and
// frames that require a room the connection never joined are dropped
// silently; nothing a single client sends can fault the coordinator.
func (c *Coordinator) Route(conn *Conn, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.log.Debug().Err(err).Msg("undecodable frame")
		return
	}

	switch env.Type {
	case MsgJoin:
		var req JoinRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			c.log.Debug().Err(err).Msg("bad join payload")
			return
		}
		c.HandleJoin(conn, req)
	case MsgOp:
		var op models.Operation
		if err := json.Unmarshal(env.Data, &op); err != nil {
			c.log.Debug().Err(err).Msg("bad op payload")
			return
		}
		c.HandleOp(conn, op)
	case MsgCursor:
		var cur CursorPosition
		if err := json.Unmarshal(env.Data, &cur); err != nil {
			return
		}
		c.HandleCursor(conn, cur)
	case MsgUndo:
		var ref OpRef
		if err := json.Unmarshal(env.Data, &ref); err != nil {
			return
		}
		c.HandleUndo(conn, ref)
	case MsgRedo:
		var ref OpRef
		if err := json.Unmarshal(env.Data, &ref); err != nil {
			return
		}
		c.HandleRedo(conn, ref)
	case MsgClear:
		c.HandleClear(conn)
	default:
		c.log.Debug().Str("type", env.Type).Msg("unknown message type")
	}
}

// HandleJoin registers a session, replies with the full state bootstrap and
// broadcasts the updated roster. A join on an already-joined connection is
// treated as a re-join: the prior registration is replaced.
func (c *Coordinator) HandleJoin(conn *Conn, req JoinRequest) {
	if req.RoomID == "" {
		req.RoomID = c.opts.DefaultRoom
	}
	if req.Name == "" {
		req.Name = "Anonymous"
	}

	if conn.session.ID != "" {
		c.leave(conn)
	}

	conn.session = models.Session{
		ID:     ident.NewSessionID(),
		Name:   req.Name,
		RoomID: req.RoomID,
	}

	rm := c.registry.Ensure(req.RoomID)

	// The snapshot, the sender registration and the roster broadcast must
	// be one transition: an echo fanned out between snapshot and
	// registration would reach the joiner as a duplicate of its own init
	// history.
	rm.Linearize(func() {
		rm.AddSession(conn.session.ID, conn.session.Name)

		c.mu.Lock()
		c.senders[conn.session.ID] = conn.sender
		c.mu.Unlock()

		init, err := Encode(MsgInit, InitPayload{
			SessionID: conn.session.ID,
			History:   rm.Log.History(),
			Users:     rm.Roster(),
		})
		if err != nil {
			c.log.Error().Err(err).Msg("encode init")
			return
		}
		conn.sender.Send(init)

		c.broadcastRoster(rm)
	})

	metrics.SessionsJoined.Inc()
	metrics.SessionsActive.Inc()
	c.log.Info().
		Str("session_id", conn.session.ID).
		Str("room_id", rm.ID).
		Str("name", conn.session.Name).
		Msg("session joined")
}

// HandleOp accepts a candidate operation: assigns its canonical identity,
// stamps author and time, appends it to the room's log and echoes it to
// every member of the room, the sender included. The self-echo is what
// retires the sender's optimistic draft, so all clients observe one total
// order.
func (c *Coordinator) HandleOp(conn *Conn, op models.Operation) {
	rm, ok := c.joinedRoom(conn)
	if !ok {
		return
	}
	if len(op.Points) == 0 {
		metrics.OpsRejected.WithLabelValues("no_points").Inc()
		return
	}
	if c.opts.MaxOpPoints > 0 && len(op.Points) > c.opts.MaxOpPoints {
		metrics.OpsRejected.WithLabelValues("too_many_points").Inc()
		c.log.Warn().
			Str("session_id", conn.session.ID).
			Int("points", len(op.Points)).
			Msg("oversized op rejected")
		return
	}
	if op.Kind != models.OpStroke && op.Kind != models.OpErase {
		metrics.OpsRejected.WithLabelValues("bad_kind").Inc()
		return
	}

	// Append and echo form one transition: if a second op could slip its
	// broadcast in between, receivers would see echoes out of log order and
	// render permanently diverged canvases.
	rm.Linearize(func() {
		if op.ID == "" {
			op.ID = ident.NewOpID()
		}
		op.AuthorID = conn.session.ID
		op.CreatedAt = time.Now().UnixMilli()

		stored := rm.Log.Append(op)
		metrics.OpsAppended.WithLabelValues(string(stored.Kind)).Inc()

		frame, err := Encode(MsgOp, stored)
		if err != nil {
			c.log.Error().Err(err).Msg("encode op")
			return
		}
		c.broadcast(rm, frame, "")
	})
}

// HandleCursor relays a pointer position to every other member of the room.
// Cursors are ephemeral and non-authoritative; the sender is excluded
// because it already knows its own cursor.
func (c *Coordinator) HandleCursor(conn *Conn, cur CursorPosition) {
	rm, ok := c.joinedRoom(conn)
	if !ok {
		return
	}

	frame, err := Encode(MsgCursor, CursorBroadcast{
		SessionID: conn.session.ID,
		Name:      conn.session.Name,
		X:         cur.X,
		Y:         cur.Y,
		Color:     cur.Color,
	})
	if err != nil {
		return
	}
	c.broadcast(rm, frame, conn.session.ID)
	metrics.CursorRelays.Inc()
}

// HandleUndo marks the named operation undone and, if it was found,
// rebroadcasts the full history snapshot to the room.
func (c *Coordinator) HandleUndo(conn *Conn, ref OpRef) {
	c.flipActive(conn, ref, false, "undo")
}

// HandleRedo reactivates the named operation.
func (c *Coordinator) HandleRedo(conn *Conn, ref OpRef) {
	c.flipActive(conn, ref, true, "redo")
}

func (c *Coordinator) flipActive(conn *Conn, ref OpRef, active bool, kind string) {
	rm, ok := c.joinedRoom(conn)
	if !ok {
		return
	}

	rm.Linearize(func() {
		if !rm.Log.SetActive(ref.OpID, active) {
			// Stale reference, e.g. an undo raced a clear. Benign.
			metrics.ActiveFlips.WithLabelValues(kind, "not_found").Inc()
			c.log.Debug().
				Str("room_id", rm.ID).
				Str("op_id", ref.OpID).
				Str("kind", kind).
				Msg("op not found")
			return
		}
		metrics.ActiveFlips.WithLabelValues(kind, "applied").Inc()
		c.broadcastHistory(rm, kind)
	})
}

// HandleClear empties the room's log and broadcasts the now-empty snapshot.
// Clearing is irreversible and not itself undoable.
func (c *Coordinator) HandleClear(conn *Conn) {
	rm, ok := c.joinedRoom(conn)
	if !ok {
		return
	}
	rm.Linearize(func() {
		rm.Log.Clear()
		c.broadcastHistory(rm, "clear")
	})
	c.log.Info().Str("room_id", rm.ID).Str("session_id", conn.session.ID).Msg("room cleared")
}

// HandleDisconnect removes the session from its room and broadcasts the
// updated roster. The session's authored operations stay in the log. Safe
// to call on an unjoined connection and safe to call twice.
func (c *Coordinator) HandleDisconnect(conn *Conn) {
	if conn.session.ID == "" {
		return
	}
	c.leave(conn)
	conn.session = models.Session{}
}

func (c *Coordinator) leave(conn *Conn) {
	if rm, ok := c.registry.Get(conn.session.RoomID); ok {
		rm.Linearize(func() {
			c.mu.Lock()
			delete(c.senders, conn.session.ID)
			c.mu.Unlock()

			rm.RemoveSession(conn.session.ID)
			c.broadcastRoster(rm)
		})
	} else {
		c.mu.Lock()
		delete(c.senders, conn.session.ID)
		c.mu.Unlock()
	}

	metrics.SessionsActive.Dec()
	c.log.Info().
		Str("session_id", conn.session.ID).
		Str("room_id", conn.session.RoomID).
		Msg("session left")
}

func (c *Coordinator) joinedRoom(conn *Conn) (*room.Room, bool) {
	if conn.session.RoomID == "" {
		// Op before join; silently ignored.
		return nil, false
	}
	return c.registry.Get(conn.session.RoomID)
}

func (c *Coordinator) broadcastRoster(rm *room.Room) {
	frame, err := Encode(MsgUsersUpdate, rm.Roster())
	if err != nil {
		c.log.Error().Err(err).Msg("encode roster")
		return
	}
	c.broadcast(rm, frame, "")
}

// broadcastHistory sends the full ordered snapshot rather than a diff. This
// is deliberate: wholesale replacement keeps every client trivially
// consistent after undo/redo/clear at the cost of bandwidth.
func (c *Coordinator) broadcastHistory(rm *room.Room, cause string) {
	frame, err := Encode(MsgHistoryUpdate, rm.Log.History())
	if err != nil {
		c.log.Error().Err(err).Msg("encode history")
		return
	}
	c.broadcast(rm, frame, "")
	metrics.SnapshotBroadcasts.WithLabelValues(cause).Inc()
}

// broadcast fans a frame out to every member of rm except exclude.
// Delivery is best-effort; a session with a full queue just misses the
// frame.
func (c *Coordinator) broadcast(rm *room.Room, frame []byte, exclude string) {
	for _, u := range rm.Roster() {
		if u.ID == exclude {
			continue
		}
		c.mu.RLock()
		s, ok := c.senders[u.ID]
		c.mu.RUnlock()
		if ok {
			s.Send(frame)
		}
	}
}
