package hub_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/srb-saurabh/collaborative-canvas/internal/hub"
	"github.com/srb-saurabh/collaborative-canvas/internal/models"
	"github.com/srb-saurabh/collaborative-canvas/internal/room"
)

// fakeSender records every frame the coordinator hands it, in delivery
// order. Safe for concurrent sends, like the real buffered queue.
type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *fakeSender) Send(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
}

func (s *fakeSender) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	copy(out, s.frames)
	return out
}

func (s *fakeSender) ofType(t *testing.T, msgType string) []hub.Envelope {
	t.Helper()
	var out []hub.Envelope
	for _, frame := range s.all() {
		var env hub.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func decodePayload(t *testing.T, env hub.Envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode %s payload: %v", env.Type, err)
	}
}

func newCoordinator() (*hub.Coordinator, *room.Registry) {
	registry := room.NewRegistry()
	return hub.New(registry, zerolog.Nop(), hub.Options{DefaultRoom: "default"}), registry
}

func join(t *testing.T, c *hub.Coordinator, roomID, name string) (*hub.Conn, *fakeSender, string) {
	t.Helper()
	s := &fakeSender{}
	conn := hub.NewConn(s)
	c.HandleJoin(conn, hub.JoinRequest{RoomID: roomID, Name: name})

	inits := s.ofType(t, hub.MsgInit)
	if len(inits) != 1 {
		t.Fatalf("expected exactly one init, got %d", len(inits))
	}
	var init hub.InitPayload
	decodePayload(t, inits[0], &init)
	return conn, s, init.SessionID
}

func draft(x float64, n int) models.Operation {
	pts := make([]models.Point, n)
	for i := range pts {
		pts[i] = models.Point{X: x + float64(i), Y: x}
	}
	return models.Operation{Kind: models.OpStroke, Points: pts, Color: "#123", StrokeWidth: 3}
}

func TestJoinFreshRoom(t *testing.T) {
	c, _ := newCoordinator()
	_, s, sid := join(t, c, "studio", "alice")

	if sid == "" {
		t.Fatal("no session id assigned")
	}

	var init hub.InitPayload
	decodePayload(t, s.ofType(t, hub.MsgInit)[0], &init)
	if len(init.History) != 0 {
		t.Errorf("fresh room history = %d ops, want 0", len(init.History))
	}
	if len(init.Users) != 1 || init.Users[0].ID != sid || init.Users[0].Name != "alice" {
		t.Errorf("fresh room roster = %v, want just self", init.Users)
	}

	// The joiner also gets the roster broadcast.
	if got := len(s.ofType(t, hub.MsgUsersUpdate)); got != 1 {
		t.Errorf("users_update frames = %d, want 1", got)
	}
}

func TestJoinDefaults(t *testing.T) {
	c, registry := newCoordinator()
	conn := hub.NewConn(&fakeSender{})
	c.HandleJoin(conn, hub.JoinRequest{})

	rm, ok := registry.Get("default")
	if !ok {
		t.Fatal("empty roomId should fall back to the default room")
	}
	roster := rm.Roster()
	if len(roster) != 1 || roster[0].Name != "Anonymous" {
		t.Errorf("roster = %v, want one Anonymous member", roster)
	}
}

func TestOpEchoIncludesSender(t *testing.T) {
	c, registry := newCoordinator()
	connA, sA, sidA := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleOp(connA, draft(10, 5))

	for name, s := range map[string]*fakeSender{"sender": sA, "peer": sB} {
		ops := s.ofType(t, hub.MsgOp)
		if len(ops) != 1 {
			t.Fatalf("%s received %d op frames, want 1", name, len(ops))
		}
		var op models.Operation
		decodePayload(t, ops[0], &op)
		if op.ID == "" {
			t.Errorf("%s received op without identity", name)
		}
		if op.AuthorID != sidA {
			t.Errorf("%s: authorId = %q, want %q", name, op.AuthorID, sidA)
		}
		if op.CreatedAt == 0 {
			t.Errorf("%s: op missing server timestamp", name)
		}
	}

	rm, _ := registry.Get("studio")
	if rm.Log.Len() != 1 {
		t.Errorf("log length = %d, want 1", rm.Log.Len())
	}
}

func TestOpIdentityUnique(t *testing.T) {
	c, _ := newCoordinator()
	conn, s, _ := join(t, c, "studio", "alice")

	c.HandleOp(conn, draft(0, 3))
	c.HandleOp(conn, draft(50, 3))

	ops := s.ofType(t, hub.MsgOp)
	if len(ops) != 2 {
		t.Fatalf("op frames = %d, want 2", len(ops))
	}
	var a, b models.Operation
	decodePayload(t, ops[0], &a)
	decodePayload(t, ops[1], &b)
	if a.ID == b.ID {
		t.Errorf("two appended ops share identity %q", a.ID)
	}
}

func TestOpBeforeJoinIgnored(t *testing.T) {
	c, registry := newCoordinator()
	s := &fakeSender{}
	conn := hub.NewConn(s)

	c.HandleOp(conn, draft(0, 3))

	if len(s.frames) != 0 {
		t.Errorf("unjoined op produced %d frames", len(s.frames))
	}
	if registry.Count() != 0 {
		t.Error("unjoined op created a room")
	}
}

func TestOpWithoutPointsRejected(t *testing.T) {
	c, registry := newCoordinator()
	conn, s, _ := join(t, c, "studio", "alice")

	c.HandleOp(conn, models.Operation{Kind: models.OpStroke})

	if got := len(s.ofType(t, hub.MsgOp)); got != 0 {
		t.Errorf("empty op was broadcast %d times", got)
	}
	rm, _ := registry.Get("studio")
	if rm.Log.Len() != 0 {
		t.Error("empty op was appended")
	}
}

func TestUndoRedoBroadcastsSnapshot(t *testing.T) {
	c, _ := newCoordinator()
	connA, sA, _ := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleOp(connA, draft(0, 3))
	var op models.Operation
	decodePayload(t, sA.ofType(t, hub.MsgOp)[0], &op)

	c.HandleUndo(connA, hub.OpRef{OpID: op.ID})

	for name, s := range map[string]*fakeSender{"alice": sA, "bob": sB} {
		updates := s.ofType(t, hub.MsgHistoryUpdate)
		if len(updates) != 1 {
			t.Fatalf("%s: history_update frames = %d, want 1", name, len(updates))
		}
		var history []models.Operation
		decodePayload(t, updates[0], &history)
		if len(history) != 1 || !history[0].Undone {
			t.Errorf("%s: snapshot = %+v, want one undone op", name, history)
		}
	}

	c.HandleRedo(connA, hub.OpRef{OpID: op.ID})
	updates := sB.ofType(t, hub.MsgHistoryUpdate)
	if len(updates) != 2 {
		t.Fatalf("history_update frames after redo = %d, want 2", len(updates))
	}
	var history []models.Operation
	decodePayload(t, updates[1], &history)
	if len(history) != 1 || history[0].Undone {
		t.Errorf("snapshot after redo = %+v, want one active op", history)
	}
}

func TestUndoUnknownIDNoBroadcast(t *testing.T) {
	c, _ := newCoordinator()
	connA, sA, _ := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleUndo(connA, hub.OpRef{OpID: "01JSTALEREFERENCE0000000"})

	if got := len(sA.ofType(t, hub.MsgHistoryUpdate)) + len(sB.ofType(t, hub.MsgHistoryUpdate)); got != 0 {
		t.Errorf("stale undo triggered %d history_update frames", got)
	}
}

func TestClearBroadcastsEmptySnapshot(t *testing.T) {
	c, registry := newCoordinator()
	connA, _, _ := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleOp(connA, draft(0, 3))
	c.HandleClear(connA)

	updates := sB.ofType(t, hub.MsgHistoryUpdate)
	if len(updates) != 1 {
		t.Fatalf("history_update frames = %d, want 1", len(updates))
	}
	var history []models.Operation
	decodePayload(t, updates[0], &history)
	if len(history) != 0 {
		t.Errorf("snapshot after clear has %d ops", len(history))
	}

	rm, _ := registry.Get("studio")
	if rm.Log.Len() != 0 {
		t.Error("log not empty after clear")
	}
}

func TestCursorExcludesSender(t *testing.T) {
	c, _ := newCoordinator()
	connA, sA, sidA := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleCursor(connA, hub.CursorPosition{X: 12, Y: 34, Color: "#fff"})

	if got := len(sA.ofType(t, hub.MsgCursor)); got != 0 {
		t.Errorf("sender received its own cursor %d time(s)", got)
	}
	cursors := sB.ofType(t, hub.MsgCursor)
	if len(cursors) != 1 {
		t.Fatalf("peer cursor frames = %d, want 1", len(cursors))
	}
	var cur hub.CursorBroadcast
	decodePayload(t, cursors[0], &cur)
	if cur.SessionID != sidA || cur.Name != "alice" || cur.X != 12 || cur.Y != 34 {
		t.Errorf("cursor payload = %+v", cur)
	}
}

func TestDisconnectKeepsAuthoredOps(t *testing.T) {
	c, registry := newCoordinator()
	connA, _, sidA := join(t, c, "studio", "alice")
	_, sB, _ := join(t, c, "studio", "bob")

	c.HandleOp(connA, draft(0, 3))
	c.HandleDisconnect(connA)
	c.HandleDisconnect(connA) // second disconnect is a no-op

	rm, _ := registry.Get("studio")
	if rm.Log.Len() != 1 {
		t.Error("authored ops should outlive the session")
	}

	rosterUpdates := sB.ofType(t, hub.MsgUsersUpdate)
	var roster []models.User
	decodePayload(t, rosterUpdates[len(rosterUpdates)-1], &roster)
	if len(roster) != 1 {
		t.Fatalf("roster after disconnect = %v", roster)
	}
	if roster[0].ID == sidA {
		t.Error("departed session still in roster")
	}
}

func TestRejoinReplacesRegistration(t *testing.T) {
	c, registry := newCoordinator()
	conn, s, firstSID := join(t, c, "studio", "alice")

	c.HandleJoin(conn, hub.JoinRequest{RoomID: "atelier", Name: "alice"})

	inits := s.ofType(t, hub.MsgInit)
	if len(inits) != 2 {
		t.Fatalf("init frames = %d, want 2", len(inits))
	}
	var second hub.InitPayload
	decodePayload(t, inits[1], &second)
	if second.SessionID == firstSID {
		t.Error("re-join should allocate a fresh session identity")
	}

	old, _ := registry.Get("studio")
	if old.SessionCount() != 0 {
		t.Error("prior registration not removed on re-join")
	}
	current, _ := registry.Get("atelier")
	if current.SessionCount() != 1 {
		t.Error("new room missing the re-joined session")
	}
}

func TestRouteMalformedFrames(t *testing.T) {
	c, registry := newCoordinator()
	s := &fakeSender{}
	conn := hub.NewConn(s)

	c.Route(conn, []byte("not json"))
	c.Route(conn, []byte(`{"type":"teleport","data":{}}`))
	c.Route(conn, []byte(`{"type":"op","data":"negative"}`))

	if len(s.frames) != 0 || registry.Count() != 0 {
		t.Error("malformed frames must be ignored silently")
	}
}

func TestRouteFullExchange(t *testing.T) {
	c, _ := newCoordinator()
	s := &fakeSender{}
	conn := hub.NewConn(s)

	c.Route(conn, mustEncode(t, hub.MsgJoin, hub.JoinRequest{RoomID: "studio", Name: "alice"}))
	c.Route(conn, mustEncode(t, hub.MsgOp, draft(5, 4)))

	ops := s.ofType(t, hub.MsgOp)
	if len(ops) != 1 {
		t.Fatalf("op frames = %d, want 1", len(ops))
	}
}

// opIDs extracts the identities of a receiver's op echoes in delivery order.
func opIDs(t *testing.T, s *fakeSender) []string {
	t.Helper()
	var ids []string
	for _, env := range s.ofType(t, hub.MsgOp) {
		var op models.Operation
		decodePayload(t, env, &op)
		ids = append(ids, op.ID)
	}
	return ids
}

func TestConcurrentSubmissionsEchoInLogOrder(t *testing.T) {
	c, registry := newCoordinator()
	connA, sA, _ := join(t, c, "studio", "alice")
	connB, sB, _ := join(t, c, "studio", "bob")

	const perAuthor = 50
	var wg sync.WaitGroup
	for _, conn := range []*hub.Conn{connA, connB} {
		wg.Add(1)
		go func(conn *hub.Conn) {
			defer wg.Done()
			for i := 0; i < perAuthor; i++ {
				c.HandleOp(conn, draft(float64(i*10), 3))
			}
		}(conn)
	}
	wg.Wait()

	rm, _ := registry.Get("studio")
	logOrder := make([]string, 0, 2*perAuthor)
	for _, op := range rm.Log.History() {
		logOrder = append(logOrder, op.ID)
	}
	if len(logOrder) != 2*perAuthor {
		t.Fatalf("log length = %d, want %d", len(logOrder), 2*perAuthor)
	}

	for name, s := range map[string]*fakeSender{"alice": sA, "bob": sB} {
		got := opIDs(t, s)
		if len(got) != len(logOrder) {
			t.Fatalf("%s received %d echoes, want %d", name, len(got), len(logOrder))
		}
		for i := range got {
			if got[i] != logOrder[i] {
				t.Fatalf("%s observed echo order diverging from log order at %d: %s vs %s",
					name, i, got[i], logOrder[i])
			}
		}
	}
}

func TestJoinDuringSubmissionsSeesEachOpOnce(t *testing.T) {
	c, registry := newCoordinator()
	connA, _, _ := join(t, c, "studio", "alice")

	const total = 100
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			c.HandleOp(connA, draft(float64(i*10), 3))
		}
	}()

	// Join mid-stream: the init snapshot plus subsequent echoes must cover
	// every op exactly once.
	_, sB, _ := join(t, c, "studio", "bob")
	wg.Wait()

	var init hub.InitPayload
	decodePayload(t, sB.ofType(t, hub.MsgInit)[0], &init)

	seen := make(map[string]bool, total)
	for _, op := range init.History {
		seen[op.ID] = true
	}
	for _, id := range opIDs(t, sB) {
		if seen[id] {
			t.Fatalf("op %s delivered both in the init snapshot and as an echo", id)
		}
		seen[id] = true
	}

	rm, _ := registry.Get("studio")
	if len(seen) != rm.Log.Len() {
		t.Fatalf("joiner saw %d distinct ops, log has %d", len(seen), rm.Log.Len())
	}
}

func mustEncode(t *testing.T, msgType string, payload any) []byte {
	t.Helper()
	frame, err := hub.Encode(msgType, payload)
	if err != nil {
		t.Fatal(err)
	}
	return frame
}
