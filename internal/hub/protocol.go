package hub

import (
	"encoding/json"

	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

// Message types carried in the envelope. Client-to-server: join, op, cursor,
// undo, redo, clear. Server-to-client: init, op, cursor, history_update,
// users_update.
const (
	MsgJoin          = "join"
	MsgInit          = "init"
	MsgOp            = "op"
	MsgCursor        = "cursor"
	MsgUndo          = "undo"
	MsgRedo          = "redo"
	MsgClear         = "clear"
	MsgHistoryUpdate = "history_update"
	MsgUsersUpdate   = "users_update"
)

// Envelope is the wire frame: a type tag plus the type-specific payload.
// Frames are decoded in two steps, first the tag and then the payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRequest asks to enter a room. Both fields have server-side defaults.
type JoinRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// InitPayload is the full-state bootstrap sent only to a joining session.
type InitPayload struct {
	SessionID string             `json:"sessionId"`
	History   []models.Operation `json:"history"`
	Users     []models.User      `json:"users"`
}

// CursorPosition is a client's own pointer position.
type CursorPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color,omitempty"`
}

// CursorBroadcast is a pointer position relayed to the rest of the room.
type CursorBroadcast struct {
	SessionID string  `json:"sessionId"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color,omitempty"`
}

// OpRef names an operation by its canonical ID (undo/redo requests).
type OpRef struct {
	OpID string `json:"opId"`
}

// Encode marshals a payload into a framed envelope.
func Encode(msgType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}
