package ports

import (
	"context"
	"multichat/internal/app/domain"
	"time"
)

// ChatSayer posts bot lines into the IRC channel.
type ChatSayer interface {
	Say(text string)
	SayLater(text string, delay time.Duration)
}

// ChatSender enriches a normalized message and publishes it.
type ChatSender interface {
	SendChat(ctx context.Context, msg domain.ChatMessage)
}

type EmoteResolver interface {
	Resolve(text string) map[string][]string
}

type PronounResolver interface {
	Resolve(username string) string
}
