package server

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/position"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Viewers only send control frames.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Viewers are embedded on other origins, same as the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket serves the live feed over a WebSocket. Each text frame
// carries one snapshot; pings keep idle connections open.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.streams.Err() != nil {
		respondError(w, http.StatusServiceUnavailable, "Server shutting down")
		return
	}
	ctx, cancel := s.streamContext(r)
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	log := s.log.With().
		Str("conn_id", uuid.NewString()[:8]).
		Str("transport", "websocket").
		Str("remote", r.RemoteAddr).
		Logger()

	metrics.ActiveStreams.WithLabelValues("websocket").Inc()
	defer metrics.ActiveStreams.WithLabelValues("websocket").Dec()

	log.Info().Msg("stream opened")
	defer log.Info().Msg("stream closed")

	initial := s.store.Snapshot()
	if err := writeSnapshot(conn, initial); err != nil {
		log.Debug().Err(err).Msg("initial snapshot write failed")
		_ = conn.Close()
		return
	}

	box, unsubscribe := s.attach(log, "websocket", initial)
	defer unsubscribe()

	closed := make(chan struct{})
	go s.readPump(conn, log, closed)

	s.writePump(ctx, conn, log, box, closed)
}

// readPump consumes control frames so pongs and close messages are seen.
// It closes done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, log zerolog.Logger, done chan<- struct{}) {
	defer close(done)

	pongWait := s.pongWait()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

// writePump writes snapshots and pings until the peer leaves, a write fails
// or ctx ends. It owns every write to conn.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, box *outbox, done <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeat)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case <-box.ready:
			for _, snap := range box.drain() {
				if err := writeSnapshot(conn, snap); err != nil {
					log.Debug().Err(err).Msg("websocket write failed")
					return
				}
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeSnapshot sends one snapshot as a text frame.
func writeSnapshot(conn *websocket.Conn, snap position.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	metrics.SnapshotsSent.WithLabelValues("websocket").Inc()
	return nil
}

// pongWait is how long a silent peer is tolerated: two missed heartbeats.
func (s *Server) pongWait() time.Duration {
	return 2*s.heartbeat + writeWait
}
