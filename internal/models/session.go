package models

// User is one roster entry as broadcast to a room.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Session is a connected participant's identity within a room. It lives for
// the lifetime of one connection; the operations it authored outlive it.
type Session struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	RoomID string `json:"roomId"`
}

// User returns the roster view of the session.
func (s Session) User() User {
	return User{ID: s.ID, Name: s.Name}
}
