package hub

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/srb-saurabh/collaborative-canvas/internal/metrics"
)

const writeTimeout = 10 * time.Second

// wsSession adapts a websocket connection to the coordinator's Sender.
// Frames are queued on a buffered channel drained by the write pump; a full
// queue drops the frame rather than stalling the room.
type wsSession struct {
	conn *websocket.Conn
	log  zerolog.Logger

	mu     sync.Mutex // serializes Send against close
	closed bool
	send   chan []byte
}

func (s *wsSession) Send(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- frame:
	default:
		metrics.FramesDropped.Inc()
		s.log.Warn().Msg("send queue full, frame dropped")
	}
}

func (s *wsSession) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *wsSession) writePump() {
	for frame := range s.send {
		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			// Reader notices the dead connection and tears down.
			s.log.Debug().Err(err).Msg("write failed")
			return
		}
	}
}

// Handler serves the websocket endpoint and runs one protocol connection
// per upgrade.
type Handler struct {
	coord     *Coordinator
	upgrader  websocket.Upgrader
	queueSize int
	log       zerolog.Logger
}

// NewHandler creates the websocket handler. With no allowed origins every
// origin is accepted, matching a deployment that serves its own client.
func NewHandler(coord *Coordinator, logger zerolog.Logger, allowedOrigins []string, queueSize int) *Handler {
	if queueSize <= 0 {
		queueSize = 256
	}
	h := &Handler{coord: coord, queueSize: queueSize, log: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeHTTP upgrades the request and pumps frames between the socket and
// the coordinator until the peer goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	s := &wsSession{
		conn: wsConn,
		send: make(chan []byte, h.queueSize),
		log:  h.log.With().Str("remote_addr", r.RemoteAddr).Logger(),
	}
	conn := NewConn(s)

	go s.writePump()

	for {
		_, frame, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("connection lost")
			}
			break
		}
		h.coord.Route(conn, frame)
	}

	h.coord.HandleDisconnect(conn)
	s.close()
	wsConn.Close()
}
