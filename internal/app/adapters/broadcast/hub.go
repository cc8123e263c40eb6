package broadcast

import (
	"encoding/json"
	"github.com/google/uuid"
	"log/slog"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain"
	"multichat/internal/app/infrastructure/storage"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"strings"
	"sync"
)

const DefaultBufferSize = 256

var (
	_ ports.ChatPublisher = (*Hub)(nil)
	_ ports.HistoryPort   = (*Hub)(nil)
)

// Subscriber is one viewer connection. C yields encoded envelopes and is
// closed on Unsubscribe.
type Subscriber struct {
	ID string
	C  <-chan []byte

	ch chan []byte
}

// Hub owns the chat history and the set of live viewer connections. History
// edits and fan-out happen under one lock, so a subscriber sees every message
// exactly once: either in its replay or on its channel.
type Hub struct {
	log     logger.Logger
	channel string
	bufSize int

	mu      sync.Mutex
	history *storage.Ring[domain.ChatMessage]
	subs    map[string]*Subscriber
}

func New(log logger.Logger, channel string, historyLength, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return &Hub{
		log:     log,
		channel: channel,
		bufSize: bufSize,
		history: storage.NewRing[domain.ChatMessage](historyLength),
		subs:    make(map[string]*Subscriber),
	}
}

// Publish appends msg to history and sends it to every subscriber.
func (h *Hub) Publish(msg domain.ChatMessage) {
	data, err := encode(domain.Envelope{Type: domain.EnvelopeChat, Content: msg})
	if err != nil {
		h.log.Error("Failed to encode chat message", err, slog.String("username", msg.Username))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history.Push(msg)
	h.fanoutLocked(data)
}

// Broadcast sends a non-chat envelope to every subscriber without touching history.
func (h *Hub) Broadcast(typ string, content any) {
	data, err := encode(domain.Envelope{Type: typ, Content: content})
	if err != nil {
		h.log.Error("Failed to encode envelope", err, slog.String("type", typ))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.fanoutLocked(data)
}

func (h *Hub) fanoutLocked(data []byte) {
	for _, s := range h.subs {
		select {
		case s.ch <- data:
		default:
			metrics.DroppedDeliveries.WithLabelValues(h.channel).Inc()
			h.log.Debug("Viewer buffer full, envelope dropped", slog.String("subscriber", s.ID))
		}
	}
}

// Subscribe registers a new viewer and returns the history replay taken at
// the same instant.
func (h *Hub) Subscribe() (*Subscriber, []domain.Envelope) {
	ch := make(chan []byte, h.bufSize)
	s := &Subscriber{
		ID: uuid.NewString(),
		C:  ch,
		ch: ch,
	}

	h.mu.Lock()
	history := h.history.Snapshot()
	h.subs[s.ID] = s
	n := len(h.subs)
	h.mu.Unlock()

	metrics.ViewerConnections.WithLabelValues(h.channel).Set(float64(n))

	replay := make([]domain.Envelope, 0, len(history))
	for _, msg := range history {
		replay = append(replay, domain.Envelope{Type: domain.EnvelopeChat, Content: msg, Replay: true})
	}
	return s, replay
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(s.ch)
	}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.ViewerConnections.WithLabelValues(h.channel).Set(float64(n))
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

func (h *Hub) History() []domain.ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.history.Snapshot()
}

// Clear replaces history with a single clear marker and tells viewers to wipe.
func (h *Hub) Clear() {
	data, err := encode(domain.Envelope{Type: domain.EnvelopeCommand, Content: map[string]string{"command": "clear"}})
	if err != nil {
		h.log.Error("Failed to encode clear command", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.history.Reset(domain.ClearMarker())
	h.fanoutLocked(data)
}

// UpdateNickname rewrites the nickname on every history message from username.
func (h *Hub) UpdateNickname(username, nickname string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	h.history.Each(func(m *domain.ChatMessage) {
		if m.Clear || m.Username != username {
			return
		}
		m.Nickname = nickname
		n++
	})
	return n
}

// UpdatePronouns fills pronouns on history messages from username that have none.
func (h *Hub) UpdatePronouns(username, pronouns string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	h.history.Each(func(m *domain.ChatMessage) {
		if m.Clear || m.Pronouns != "" || !strings.EqualFold(m.Username, username) {
			return
		}
		m.Pronouns = pronouns
		n++
	})
	return n
}

func encode(env domain.Envelope) ([]byte, error) {
	return json.Marshal(env)
}
