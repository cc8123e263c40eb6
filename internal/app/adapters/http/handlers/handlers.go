package handlers

import (
	"github.com/google/uuid"
	"multichat/internal/app/domain"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"net/http"
	"sync"
	"time"
)

// Hub is the viewer-facing side of the broadcast hub.
type Hub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, pageHash string)
	Subscribers() int
	History() []domain.ChatMessage
	Clear()
}

type StatusSource interface {
	Status(name string) (any, bool)
}

type Handlers struct {
	log      logger.Logger
	store    ports.PropertyStore
	hub      Hub
	status   StatusSource
	pageHash string
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	enabledAt time.Time
}

// New builds the handlers. enabledCooldown limits how often the enabled
// property may be toggled.
func New(log logger.Logger, store ports.PropertyStore, hub Hub, status StatusSource, enabledCooldown time.Duration) *Handlers {
	return &Handlers{
		log:      log,
		store:    store,
		hub:      hub,
		status:   status,
		pageHash: uuid.NewString(),
		cooldown: enabledCooldown,
		now:      time.Now,
	}
}

func (h *Handlers) PageHash() string {
	return h.pageHash
}

type propBody struct {
	PropValue any `json:"prop_value"`
}
