package models

// OpKind distinguishes the two kinds of drawing operations.
type OpKind string

const (
	OpStroke OpKind = "stroke"
	OpErase  OpKind = "erase"
)

// Point is one input sample along an operation's path. T is the client
// capture time in Unix milliseconds and is diagnostic only.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t,omitempty"`
}

// Operation is one atomic entry in a room's drawing history.
//
// ID is empty on client-originated drafts and is assigned exactly once by
// the server when the operation is accepted. An operation without an ID is
// never canonical. Undone operations stay in the log so they can be redone
// by ID; renderers skip them.
type Operation struct {
	ID          string  `json:"id,omitempty"`
	Kind        OpKind  `json:"type"`
	Points      []Point `json:"points"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth int     `json:"width,omitempty"`
	AuthorID    string  `json:"userId,omitempty"`
	CreatedAt   int64   `json:"timestamp,omitempty"` // Unix ms, server-assigned
	Undone      bool    `json:"undone"`
}

// Canonical reports whether the operation has been accepted by the server.
func (o Operation) Canonical() bool {
	return o.ID != ""
}

// Active reports whether the operation should be rendered.
func (o Operation) Active() bool {
	return !o.Undone
}

// Clone returns a copy whose Points slice shares no storage with o.
func (o Operation) Clone() Operation {
	c := o
	c.Points = make([]Point, len(o.Points))
	copy(c.Points, o.Points)
	return c
}
