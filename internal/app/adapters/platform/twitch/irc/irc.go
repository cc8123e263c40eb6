package irc

import (
	"context"
	"errors"
	"fmt"
	"github.com/gempir/go-twitch-irc/v4"
	"golang.org/x/time/rate"
	"log/slog"
	"multichat/internal/app/adapters/source"
	"multichat/internal/app/domain"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"strings"
	"sync"
	"time"
)

const (
	DefaultSayInterval = 500 * time.Millisecond

	connectTimeout = 30 * time.Second
	inboundBuffer  = 256
)

var (
	_ source.Dialer   = (*IRC)(nil)
	_ ports.ChatSayer = (*IRC)(nil)
)

type Options struct {
	Channel     string
	Username    string
	OAuth       string
	Address     string
	SayInterval time.Duration
}

// IRC is the Twitch chat source and the bot's voice in the channel.
type IRC struct {
	log     logger.Logger
	opts    Options
	limiter *rate.Limiter

	mu     sync.RWMutex
	client *twitch.Client
	sender ports.ChatSender
}

func New(log logger.Logger, opts Options) *IRC {
	if opts.SayInterval <= 0 {
		opts.SayInterval = DefaultSayInterval
	}
	opts.Channel = strings.ToLower(strings.TrimPrefix(opts.Channel, "#"))

	return &IRC{
		log:     log,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(opts.SayInterval), 1),
	}
}

// SetSender makes every line the bot says show up in the combined chat too.
func (i *IRC) SetSender(sender ports.ChatSender) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sender = sender
}

func (i *IRC) Source() domain.Source {
	return domain.SourceTwitch
}

func (i *IRC) Linkage(context.Context) (string, error) {
	return i.opts.Channel, nil
}

// Dial connects and joins, returning once the server has accepted the login.
func (i *IRC) Dial(ctx context.Context, channel string) (source.Session, error) {
	oauth := i.opts.OAuth
	if oauth != "" && !strings.HasPrefix(oauth, "oauth:") {
		oauth = "oauth:" + oauth
	}

	client := twitch.NewClient(i.opts.Username, oauth)
	if i.opts.Address != "" {
		client.IrcAddress = i.opts.Address
		client.TLS = false
	}

	s := &session{
		irc:     i,
		client:  client,
		channel: channel,
		msgs:    make(chan twitch.PrivateMessage, inboundBuffer),
		errc:    make(chan error, 1),
	}

	connected := make(chan struct{})
	var once sync.Once
	client.OnConnect(func() {
		once.Do(func() { close(connected) })
	})
	client.OnPrivateMessage(func(m twitch.PrivateMessage) {
		select {
		case s.msgs <- m:
		default:
			i.log.Warn("Inbound buffer full, dropping message", slog.String("username", m.User.Name))
		}
	})
	client.Join(channel)

	go func() {
		s.errc <- client.Connect()
	}()

	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	select {
	case <-connected:
	case err := <-s.errc:
		if err == nil || errors.Is(err, twitch.ErrClientDisconnected) {
			err = errors.New("connection closed before login")
		}
		return nil, fmt.Errorf("connect irc: %w", err)
	case <-dctx.Done():
		_ = client.Disconnect()
		return nil, fmt.Errorf("connect irc: %w", dctx.Err())
	}

	i.log.Info("Connected to IRC", slog.String("channel", channel))

	i.mu.Lock()
	i.client = client
	i.mu.Unlock()

	return s, nil
}

func (i *IRC) Say(text string) {
	i.mu.RLock()
	client, sender := i.client, i.sender
	i.mu.RUnlock()

	if client == nil {
		i.log.Debug("Not connected, dropping line", slog.String("text", text))
		return
	}

	if err := i.limiter.Wait(context.Background()); err != nil {
		i.log.Error("Say limiter failed", err)
		return
	}

	client.Say(i.opts.Channel, text)
	i.log.Debug("Said", slog.String("text", text))

	if sender != nil {
		sender.SendChat(context.Background(), domain.ChatMessage{
			Source:   domain.SourceTwitch,
			Username: i.opts.Username,
			Text:     text,
		})
	}
}

func (i *IRC) SayLater(text string, delay time.Duration) {
	time.AfterFunc(delay, func() { i.Say(text) })
}

// Inbound converts a PRIVMSG into an inbound message. Lines from the bot
// itself and from other channels are skipped.
func (i *IRC) Inbound(m twitch.PrivateMessage) (domain.InboundMessage, bool) {
	if strings.EqualFold(m.User.Name, i.opts.Username) {
		return domain.InboundMessage{}, false
	}
	if !strings.EqualFold(m.Channel, i.opts.Channel) {
		return domain.InboundMessage{}, false
	}

	username := m.User.DisplayName
	if username == "" {
		username = m.User.Name
	}

	emotes := make(map[string][]string)
	for _, e := range m.Emotes {
		if e == nil {
			continue
		}
		for _, pos := range e.Positions {
			emotes[e.ID] = append(emotes[e.ID], fmt.Sprintf("%d-%d", pos.Start, pos.End))
		}
	}

	return domain.InboundMessage{
		Source: domain.SourceTwitch,
		Chatter: domain.Chatter{
			UserID:        m.User.ID,
			Username:      username,
			Login:         m.User.Name,
			IsBroadcaster: m.User.Badges["broadcaster"] > 0 || strings.EqualFold(m.User.Name, i.opts.Channel),
			IsMod:         m.User.Badges["moderator"] > 0,
		},
		Color:     m.User.Color,
		Text:      m.Message,
		Emotes:    emotes,
		Timestamp: m.Time,
	}, true
}

type session struct {
	irc     *IRC
	client  *twitch.Client
	channel string
	msgs    chan twitch.PrivateMessage
	errc    chan error
}

func (s *session) Listen(ctx context.Context, emit func(domain.InboundMessage)) error {
	for {
		select {
		case <-ctx.Done():
			_ = s.client.Disconnect()
			return nil
		case m := <-s.msgs:
			if in, ok := s.irc.Inbound(m); ok {
				emit(in)
			}
		case err := <-s.errc:
			if err == nil || errors.Is(err, twitch.ErrClientDisconnected) {
				return nil
			}
			return err
		}
	}
}

func (s *session) Close() error {
	s.irc.mu.Lock()
	if s.irc.client == s.client {
		s.irc.client = nil
	}
	s.irc.mu.Unlock()

	err := s.client.Disconnect()
	if errors.Is(err, twitch.ErrConnectionIsNotOpen) {
		return nil
	}
	return err
}

func (s *session) Link() string {
	return "twitch.tv/" + s.channel
}
