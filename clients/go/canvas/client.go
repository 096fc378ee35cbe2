// Package canvas provides a Go client for the collaborative canvas sync
// protocol: it keeps an optimistic local render list, reconciles it against
// the server's canonical echoes and tracks remote cursors.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/srb-saurabh/collaborative-canvas/internal/hub"
	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

// Handlers are optional callbacks invoked from the client's read loop.
// A nil handler is skipped. OnRender fires after every change to the
// render list; renderers should replay the given ops from a cleared
// surface.
type Handlers struct {
	OnInit   func(sessionID string, users []models.User)
	OnRoster func(users []models.User)
	OnRender func(ops []models.Operation)
	OnCursor func(c RemoteCursor)
}

// Client is a connected canvas participant.
type Client struct {
	conn     *websocket.Conn
	handlers Handlers

	rec     *Reconciler
	cursors *CursorTracker

	writeMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	roster    []models.User

	done    chan struct{}
	readErr error
}

// Dial connects to a canvas server's /ws endpoint. The caller still has to
// Join a room before drawing.
func Dial(ctx context.Context, url string, handlers Handlers) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:     conn,
		handlers: handlers,
		rec:      NewReconciler(),
		cursors:  NewCursorTracker(),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Done is closed when the read loop exits; Err reports why.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the terminal read error, nil after a clean close.
func (c *Client) Err() error {
	<-c.done
	if websocket.IsCloseError(c.readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return c.readErr
}

// SessionID returns the server-assigned session identity, empty until the
// init reply arrives.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Roster returns the last received member list.
func (c *Client) Roster() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.User, len(c.roster))
	copy(out, c.roster)
	return out
}

// History returns the local render list, drafts included.
func (c *Client) History() []models.Operation { return c.rec.History() }

// ActiveOps returns the ordered operations to replay onto the surface.
func (c *Client) ActiveOps() []models.Operation { return c.rec.ActiveOps() }

// Cursors returns the live remote cursors.
func (c *Client) Cursors() []RemoteCursor { return c.cursors.Active() }

// Join enters a room. Joining again replaces the prior session.
func (c *Client) Join(roomID, name string) error {
	return c.send(hub.MsgJoin, hub.JoinRequest{RoomID: roomID, Name: name})
}

// SendOp transmits a finished drawing operation. The draft enters the local
// render list immediately and is retired when the canonical echo arrives.
// Any client-set ID is stripped: identity belongs to the server.
func (c *Client) SendOp(op models.Operation) error {
	op.ID = ""
	op.AuthorID = ""
	op.Undone = false
	if len(op.Points) == 0 {
		return errors.New("operation has no points")
	}

	c.rec.AddLocal(op)
	c.render()
	return c.send(hub.MsgOp, op)
}

// SendCursor transmits the local pointer position.
func (c *Client) SendCursor(x, y float64, color string) error {
	return c.send(hub.MsgCursor, hub.CursorPosition{X: x, Y: y, Color: color})
}

// Undo asks the server to deactivate the named operation.
func (c *Client) Undo(opID string) error {
	return c.send(hub.MsgUndo, hub.OpRef{OpID: opID})
}

// Redo asks the server to reactivate the named operation.
func (c *Client) Redo(opID string) error {
	return c.send(hub.MsgRedo, hub.OpRef{OpID: opID})
}

// UndoLast undoes the newest still-active canonical operation. It reports
// false when nothing is undoable (drafts cannot be undone, they have no
// identity yet).
func (c *Client) UndoLast() (string, bool) {
	ops := c.rec.History()
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].Canonical() && ops[i].Active() {
			return ops[i].ID, c.Undo(ops[i].ID) == nil
		}
	}
	return "", false
}

// RedoFirst redoes the oldest undone operation, reporting false when
// nothing is undone.
func (c *Client) RedoFirst() (string, bool) {
	for _, op := range c.rec.History() {
		if op.Canonical() && !op.Active() {
			return op.ID, c.Redo(op.ID) == nil
		}
	}
	return "", false
}

// Clear asks the server to wipe the room's history for everyone.
func (c *Client) Clear() error {
	return c.send(hub.MsgClear, struct{}{})
}

func (c *Client) send(msgType string, payload any) error {
	frame, err := hub.Encode(msgType, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) render() {
	if c.handlers.OnRender != nil {
		c.handlers.OnRender(c.rec.ActiveOps())
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}

		var env hub.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}

		switch env.Type {
		case hub.MsgInit:
			var init hub.InitPayload
			if err := json.Unmarshal(env.Data, &init); err != nil {
				continue
			}
			c.mu.Lock()
			c.sessionID = init.SessionID
			c.roster = init.Users
			c.mu.Unlock()
			c.rec.ReplaceHistory(init.History)
			if c.handlers.OnInit != nil {
				c.handlers.OnInit(init.SessionID, init.Users)
			}
			c.render()

		case hub.MsgOp:
			var op models.Operation
			if err := json.Unmarshal(env.Data, &op); err != nil {
				continue
			}
			c.rec.ApplyCanonical(op)
			c.render()

		case hub.MsgHistoryUpdate:
			var history []models.Operation
			if err := json.Unmarshal(env.Data, &history); err != nil {
				continue
			}
			c.rec.ReplaceHistory(history)
			c.render()

		case hub.MsgUsersUpdate:
			var users []models.User
			if err := json.Unmarshal(env.Data, &users); err != nil {
				continue
			}
			c.mu.Lock()
			c.roster = users
			c.mu.Unlock()
			c.pruneCursors(users)
			if c.handlers.OnRoster != nil {
				c.handlers.OnRoster(users)
			}

		case hub.MsgCursor:
			var cur hub.CursorBroadcast
			if err := json.Unmarshal(env.Data, &cur); err != nil {
				continue
			}
			c.cursors.Observe(cur)
			if c.handlers.OnCursor != nil {
				c.handlers.OnCursor(RemoteCursor{
					SessionID: cur.SessionID,
					Name:      cur.Name,
					X:         cur.X,
					Y:         cur.Y,
					Color:     cur.Color,
				})
			}
		}
	}
}

// pruneCursors drops cursors of sessions no longer in the roster; the
// time-based expiry would catch them anyway, this just does it promptly.
func (c *Client) pruneCursors(users []models.User) {
	present := make(map[string]bool, len(users))
	for _, u := range users {
		present[u.ID] = true
	}
	for _, cur := range c.cursors.Active() {
		if !present[cur.SessionID] {
			c.cursors.Remove(cur.SessionID)
		}
	}
}
