package canvas

import (
	"math"
	"sync"

	"github.com/srb-saurabh/collaborative-canvas/internal/models"
)

// matchTolerance is the Euclidean distance within which a canonical echo's
// endpoints must fall to be correlated with a local draft.
const matchTolerance = 4.0

// Reconciler keeps a client's rendered operation list visually consistent
// with eventual canonical truth while hiding network latency.
//
// Locally drawn operations enter the list immediately as drafts (no ID).
// When the server's canonical echo arrives it is matched against the drafts
// geometrically and replaces the matching draft in place, preserving render
// order. Drafts are correlated geometrically rather than by a client token
// because drafts carry no identity at all on the wire; a missed match is
// harmless — the canonical op is appended and at worst a duplicate stroke
// is visible until the next full snapshot.
type Reconciler struct {
	mu  sync.Mutex
	ops []models.Operation
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// AddLocal appends a speculative, not-yet-confirmed operation to the render
// list. The draft must not carry an ID; identity comes from the server.
func (r *Reconciler) AddLocal(op models.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

// ApplyCanonical merges a server-echoed canonical operation. If a draft
// matches geometrically the draft is replaced in place; otherwise the
// canonical op is appended (it originated elsewhere, or no local candidate
// correlates).
func (r *Reconciler) ApplyCanonical(op models.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.Canonical() {
		for i := len(r.ops) - 1; i >= 0; i-- {
			local := r.ops[i]
			if local.Canonical() {
				continue
			}
			if matches(local, op) {
				r.ops[i] = op
				return
			}
		}
	}
	r.ops = append(r.ops, op)
}

// ReplaceHistory discards the whole local list, drafts included, in favor
// of a server snapshot. Any draft still in flight when the snapshot was
// taken is lost; that window is accepted.
func (r *Reconciler) ReplaceHistory(history []models.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = make([]models.Operation, len(history))
	copy(r.ops, history)
}

// History returns a copy of the current render list, drafts included.
func (r *Reconciler) History() []models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Operation, len(r.ops))
	copy(out, r.ops)
	return out
}

// ActiveOps returns the ordered operations a renderer should replay: the
// full list minus undone entries. Rendering is always a full replay from a
// cleared surface, never an incremental patch.
func (r *Reconciler) ActiveOps() []models.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Operation, 0, len(r.ops))
	for _, op := range r.ops {
		if op.Active() {
			out = append(out, op)
		}
	}
	return out
}

// Unconfirmed returns the number of drafts still awaiting an echo.
func (r *Reconciler) Unconfirmed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if !op.Canonical() {
			n++
		}
	}
	return n
}

// matches reports whether a canonical echo plausibly confirms a local
// draft: same point count, first and last points each within tolerance.
func matches(local, canonical models.Operation) bool {
	if len(local.Points) != len(canonical.Points) || len(local.Points) == 0 {
		return false
	}
	first := dist(local.Points[0], canonical.Points[0])
	last := dist(local.Points[len(local.Points)-1], canonical.Points[len(canonical.Points)-1])
	return first < matchTolerance && last < matchTolerance
}

func dist(a, b models.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
