package ports

import "multichat/internal/app/domain"

// Broadcaster fans envelopes out to viewer connections.
type Broadcaster interface {
	Broadcast(typ string, content any)
}

type ChatPublisher interface {
	Broadcaster
	Publish(msg domain.ChatMessage)
}

// HistoryPort is the part of the hub that resolvers and listeners edit.
type HistoryPort interface {
	History() []domain.ChatMessage
	Clear()
	UpdateNickname(username, nickname string) int
	UpdatePronouns(username, pronouns string) int
}
