// Package oplog implements the per-room canonical operation log.
//
// The log is append-only except for in-place flips of each entry's Undone
// flag. Log position is the single source of truth for render order:
// clients always replay the full ordered log, skipping undone entries.
package oplog

import (
	"sync"

	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

// Log is one room's ordered operation history. Safe for concurrent use.
type Log struct {
	mu  sync.Mutex
	ops []models.Operation
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append stores op at the end of the log and returns the stored entry.
// The caller must have assigned the operation's ID already; Append never
// mutates identity. The entry is always stored active.
func (l *Log) Append(op models.Operation) models.Operation {
	op.Undone = false

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
	return op
}

// History returns a snapshot copy of the full log, undone entries included.
// Mutating the returned slice or its points does not affect the log.
func (l *Log) History() []models.Operation {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Operation, len(l.ops))
	for i, op := range l.ops {
		out[i] = op.Clone()
	}
	return out
}

// SetActive finds the operation with the given ID and sets its active state.
// It reports whether an operation was found; setting a flag to its current
// value is a found no-op. An unknown ID is a benign client error (typically
// a stale undo request), not a fault.
func (l *Log) SetActive(id string, active bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.ops {
		if l.ops[i].ID == id {
			l.ops[i].Undone = !active
			return true
		}
	}
	return false
}

// Clear discards the whole log. Clearing is not itself an undoable operation.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = nil
}

// Len returns the number of entries, undone entries included.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ops)
}
