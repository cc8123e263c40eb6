package source

import (
	"context"
	"errors"
	"multichat/internal/app/domain"
)

var ErrNoLinkage = errors.New("no linkage configured")

// Dialer opens platform sessions for one source.
type Dialer interface {
	Source() domain.Source
	// Linkage returns the platform id to connect to; empty means unlinked.
	Linkage(ctx context.Context) (string, error)
	Dial(ctx context.Context, linkage string) (Session, error)
}

// Session is one live platform connection.
type Session interface {
	// Listen delivers messages to emit until the session ends. A nil error
	// means the platform ended it cleanly.
	Listen(ctx context.Context, emit func(domain.InboundMessage)) error
	Close() error
	// Link is a human-readable pointer to what is connected, e.g. a URL.
	Link() string
}

// Sink receives messages that passed the staleness filter.
type Sink func(ctx context.Context, msg domain.InboundMessage)
