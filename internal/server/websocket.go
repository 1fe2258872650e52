package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
)

const (
	// wsWriteWait bounds every frame write, pings included.
	wsWriteWait = 10 * time.Second

	// wsReadLimit caps inbound frames; subscribers only ever send control
	// traffic.
	wsReadLimit = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleSubscribe attaches the peer to its project stream. Subscribe
// queues the init envelope before the subscriber is visible to Publish,
// so the peer always reads init first, then live envelopes in publish
// order.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")

	sub, err := s.registry.Subscribe(r.Context(), project)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade wrote its own error response.
		s.registry.Unsubscribe(sub)
		logging.Warn(r.Context(), "websocket upgrade failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	ctx := logging.WithAttrs(r.Context(), slog.String("project", project))
	logging.Debug(ctx, "subscriber connected")

	go s.writePump(conn, sub)
	s.readPump(conn, sub)

	logging.Debug(ctx, "subscriber disconnected")
}

// readPump discards client frames and enforces pong liveness. It returns
// when the peer goes away, detaching the subscriber so the write side
// unwinds too.
func (s *Server) readPump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	defer func() {
		s.registry.Unsubscribe(sub)
		conn.Close()
	}()

	wait := s.pongWait()
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards envelopes and pings on the heartbeat. A closed
// subscriber channel means the registry dropped us, on overflow or
// shutdown; the peer gets a close frame telling it to reconnect.
func (s *Server) writePump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream closed")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// pongWait gives the peer two heartbeats to answer before the read side
// times out.
func (s *Server) pongWait() time.Duration {
	return 2 * s.cfg.Heartbeat
}
