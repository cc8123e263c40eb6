package broadcast

import (
	"github.com/gorilla/websocket"
	"log/slog"
	"multichat/internal/app/domain"
	"net/http"
	"time"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeWS upgrades the request and streams page_hash, the history replay and
// then live envelopes until either side closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, pageHash string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	sub, replay := h.Subscribe()
	defer h.Unsubscribe(sub.ID)

	h.log.Debug("Viewer connected", slog.String("subscriber", sub.ID), slog.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(domain.Envelope{Type: domain.EnvelopePageHash, Content: map[string]string{"page_hash": pageHash}}); err != nil {
		return
	}
	for _, env := range replay {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(env); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("Viewer write failed", slog.String("subscriber", sub.ID), slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			h.log.Debug("Viewer disconnected", slog.String("subscriber", sub.ID))
			return
		}
	}
}

// readPump drains client frames so control messages are processed.
func (h *Hub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
