// Package ident generates the two identity kinds used on the wire:
// time-ordered UUIDv7 for sessions and ULIDs for operations.
package ident

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID generates a time-ordered UUID v7 for a joining session.
func NewSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewOpID generates a ULID for an accepted operation. ULIDs sort by creation
// time, which makes logs easy to eyeball; log position remains the only
// authoritative order.
func NewOpID() string {
	return ulid.Make().String()
}
