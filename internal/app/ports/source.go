package ports

import (
	"context"
	"multichat/internal/app/domain"
	"time"
)

type SourceState string

const (
	StateDisconnected SourceState = "disconnected"
	StateConnecting   SourceState = "connecting"
	StateConnected    SourceState = "connected"
	StateEnded        SourceState = "ended"
	StateErrorClosed  SourceState = "error_closed"
)

type SourceStatus struct {
	Source      domain.Source `json:"source"`
	State       SourceState   `json:"state"`
	Connected   bool          `json:"connected"`
	Linkage     string        `json:"linkage,omitempty"`
	Link        string        `json:"link,omitempty"`
	ConnectedAt time.Time     `json:"connected_at,omitzero"`
	LastEnd     SourceState   `json:"last_end,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
	Received    uint64        `json:"received"`
	Dropped     uint64        `json:"dropped"`
}

type SourceAdapter interface {
	Source() domain.Source
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	Reconnect(ctx context.Context) error
	State() SourceState
	Status() SourceStatus
}
