package greetz

import (
	"context"
	"log/slog"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain/command"
	"multichat/internal/app/domain/greetz"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"strings"
	"sync"
	"time"
)

type Options struct {
	Channel     string
	BotUsername string
	// CommandWait delays a greeting that follows a command reply.
	CommandWait time.Duration
	Now         func() time.Time
	Rand        func(n int) int
}

type Greeter struct {
	log   logger.Logger
	store ports.PropertyStore
	say   ports.ChatSayer
	opts  Options

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func New(log logger.Logger, store ports.PropertyStore, say ports.ChatSayer, opts Options) *Greeter {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Greeter{
		log:      log,
		store:    store,
		say:      say,
		opts:     opts,
		lastSeen: make(map[string]time.Time),
	}
}

// Greet decides whether username gets a greeting for the message that just
// arrived and sends it. It returns the tier that was sent.
func (g *Greeter) Greet(ctx context.Context, username string, res command.Result) greetz.Tier {
	if strings.EqualFold(username, g.opts.BotUsername) {
		return greetz.TierNone
	}

	nickname, ok, err := g.store.ViewerString(ctx, username, props.Nickname)
	if err != nil {
		g.log.Error("Failed to read nickname", err, slog.String("username", username))
		return greetz.TierNone
	}
	if !ok {
		return greetz.TierNone
	}

	threshold, err := g.store.ChannelMillis(ctx, props.GreetzThreshold)
	if err != nil {
		g.log.Error("Failed to read greetz threshold", err)
	}
	wbThreshold, err := g.store.ChannelMillis(ctx, props.GreetzWBThreshold)
	if err != nil {
		g.log.Error("Failed to read greetz welcome back threshold", err)
	}

	now := g.opts.Now()
	g.mu.Lock()
	last, seen := g.lastSeen[username]
	g.lastSeen[username] = now
	g.mu.Unlock()

	tier := greetz.Classify(now, last, seen, threshold, wbThreshold)
	if tier == greetz.TierNone {
		return tier
	}
	// the command already answered in chat
	if res.Valid && !res.ShouldReply {
		return greetz.TierNone
	}

	custom, _, err := g.store.ViewerString(ctx, username, props.CustomGreetz)
	if err != nil {
		g.log.Warn("Failed to read custom greeting", slog.String("username", username), slog.String("error", err.Error()))
	}

	text := greetz.Render(greetz.Pick(greetz.Pool(tier, res.Valid), custom, g.opts.Rand), username, nickname)
	if res.Valid {
		g.say.SayLater(text, g.opts.CommandWait)
	} else {
		g.say.Say(text)
	}

	metrics.Greetings.WithLabelValues(g.opts.Channel, tier.String()).Inc()
	g.log.Debug("Greeted viewer", slog.String("username", username), slog.String("tier", tier.String()))
	return tier
}
