package multichat

import (
	"context"
	"log/slog"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain"
	"multichat/internal/app/domain/emote"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
)

var _ ports.ChatSender = (*MultiChat)(nil)

// MultiChat decorates normalized messages with what the channel knows about
// the sender and publishes them to viewers.
type MultiChat struct {
	log      logger.Logger
	channel  string
	store    ports.PropertyStore
	emotes   ports.EmoteResolver
	pronouns ports.PronounResolver
	pub      ports.ChatPublisher
}

func New(log logger.Logger, channel string, store ports.PropertyStore, emotes ports.EmoteResolver, pronouns ports.PronounResolver, pub ports.ChatPublisher) *MultiChat {
	return &MultiChat{
		log:      log,
		channel:  channel,
		store:    store,
		emotes:   emotes,
		pronouns: pronouns,
		pub:      pub,
	}
}

func (m *MultiChat) SendChat(ctx context.Context, msg domain.ChatMessage) {
	if msg.Nickname == "" && msg.Username != "" {
		nick, ok, err := m.store.ViewerString(ctx, msg.Username, props.Nickname)
		if err != nil {
			m.log.Error("Failed to read nickname", err, slog.String("username", msg.Username))
		}
		if ok {
			msg.Nickname = nick
		}
	}

	if msg.Pronouns == "" && m.pronouns != nil && msg.Username != "" {
		msg.Pronouns = m.pronouns.Resolve(msg.Username)
	}

	if m.emotes != nil {
		msg.Emotes = emote.Merge(msg.Emotes, m.emotes.Resolve(msg.Text))
	}

	metrics.Messages.WithLabelValues(m.channel, string(msg.Source)).Inc()
	m.pub.Publish(msg)
}
