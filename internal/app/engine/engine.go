package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"multichat/internal/app/adapters/broadcast"
	"multichat/internal/app/adapters/commands"
	"multichat/internal/app/adapters/emotes"
	"multichat/internal/app/adapters/greetz"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/adapters/props"
	"multichat/internal/app/adapters/source"
	"multichat/internal/app/domain"
	dprops "multichat/internal/app/domain/props"
	"multichat/internal/app/infrastructure/config"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"sync"
	"time"
)

const (
	timerSweep        = "reconnect_sweep"
	timerEmoteStartup = "emotes_startup"
	timerEmoteRefresh = "emotes_refresh"
)

var ErrUnknownSource = errors.New("unknown source")

type EmoteCache interface {
	MaybeRefresh() bool
	Status() emotes.Status
	Close()
}

type PronounCache interface {
	LoadPronounMap(ctx context.Context) error
	Close()
}

type Options struct {
	Channel     string
	BotUsername string
	BotNickname string
	SuperAdmin  string
	BaseURL     string
	Timings     config.Timings
}

type Deps struct {
	Store    *props.Store
	Hub      *broadcast.Hub
	Chat     ports.ChatSender
	Sayer    ports.ChatSayer
	Dialers  []source.Dialer
	Emotes   EmoteCache
	Pronouns PronounCache
	Timers   ports.TimersPort
}

// Engine owns one channel: its adapters, the message pipeline and the
// background tasks that keep sessions and caches alive.
type Engine struct {
	log  logger.Logger
	opts Options
	deps Deps

	adapters   map[domain.Source]*source.Adapter
	order      []domain.Source
	dispatcher *commands.Dispatcher
	greeter    *greetz.Greeter

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(log logger.Logger, opts Options, deps Deps) *Engine {
	e := &Engine{
		log:      log,
		opts:     opts,
		deps:     deps,
		adapters: make(map[domain.Source]*source.Adapter, len(deps.Dialers)),
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())

	for _, d := range deps.Dialers {
		a := source.New(logger.NewPrefixedLogger(log, string(d.Source())), d, deps.Store, e.HandleMessage, source.Options{
			Channel:       opts.Channel,
			MaxMessageAge: opts.Timings.MaxMessageAge,
			AnnounceDelay: opts.Timings.AnnounceDelay,
		})
		// twitch cannot announce its own connection
		if d.Source() != domain.SourceTwitch && deps.Sayer != nil {
			a.SetAnnouncer(deps.Sayer)
		}
		e.adapters[d.Source()] = a
		e.order = append(e.order, d.Source())
	}

	e.dispatcher = commands.New(log, deps.Store, deps.Sayer, deps.Hub, commands.Options{
		Channel:    opts.Channel,
		BaseURL:    opts.BaseURL,
		SuperAdmin: opts.SuperAdmin,
	})
	e.greeter = greetz.New(log, deps.Store, deps.Sayer, greetz.Options{
		Channel:     opts.Channel,
		BotUsername: opts.BotUsername,
		CommandWait: opts.Timings.GreetzCommandWait,
	})

	return e
}

// Start checks the store, runs first-time setup, registers the property
// listeners and schedules connections and cache refreshes. A store that
// cannot be reached is fatal.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.New("engine already started")
	}

	if err := e.deps.Store.Ping(ctx); err != nil {
		return fmt.Errorf("property store: %w", err)
	}
	if err := e.deps.Store.EnsureChannel(ctx); err != nil {
		return err
	}

	ran, err := e.deps.Store.EnsureFirstRun(ctx, e.opts.BotUsername, e.opts.BotNickname)
	if err != nil {
		return fmt.Errorf("first run: %w", err)
	}
	if ran {
		e.log.Info("First run initialization done", slog.String("channel", e.opts.Channel))
	}

	enabled, err := e.deps.Store.ChannelBool(ctx, dprops.Enabled)
	if err != nil {
		return err
	}
	metrics.BotEnabled.WithLabelValues(e.opts.Channel).Set(metrics.BoolGauge(enabled))

	e.registerListeners()
	e.started = true

	e.goBackground(func(ctx context.Context) { e.sweep(ctx) })
	if e.deps.Pronouns != nil {
		e.goBackground(func(ctx context.Context) {
			if err := e.deps.Pronouns.LoadPronounMap(ctx); err != nil {
				e.log.Warn("Failed to load pronoun list", slog.String("error", err.Error()))
			}
		})
	}

	if e.deps.Timers != nil {
		e.deps.Timers.AddTimer(timerSweep, e.opts.Timings.ReconnectSweep, true, func() {
			e.sweep(e.ctx)
		})
		if e.deps.Emotes != nil {
			e.deps.Timers.AddTimer(timerEmoteStartup, e.opts.Timings.EmoteStartupDelay, false, func() {
				if e.ctx.Err() != nil {
					return
				}
				e.deps.Emotes.MaybeRefresh()
				e.deps.Timers.AddTimer(timerEmoteRefresh, e.opts.Timings.EmoteCacheTime, true, func() {
					e.deps.Emotes.MaybeRefresh()
				})
			})
		}
	}

	e.log.Info("Engine started", slog.String("channel", e.opts.Channel), slog.Int("sources", len(e.order)))
	return nil
}

func (e *Engine) registerListeners() {
	for key, name := range dprops.LinkageKeys {
		src, ok := domain.ParseSource(name)
		if !ok {
			continue
		}
		e.deps.Store.AddChannelListener(key, func(_ context.Context, oldValue, newValue any) {
			e.log.Info("Linkage changed", slog.String("key", key), slog.Any("old", oldValue), slog.Any("new", newValue))
			e.goBackground(func(ctx context.Context) { e.reconnectLogged(ctx, src) })
		})
	}

	e.deps.Store.AddChannelListener(dprops.Enabled, func(_ context.Context, oldValue, newValue any) {
		e.log.Info("Enabled changed", slog.Any("old", oldValue), slog.Any("new", newValue))
		metrics.BotEnabled.WithLabelValues(e.opts.Channel).Set(metrics.BoolGauge(dprops.AsBool(newValue)))
		for _, src := range e.order {
			e.goBackground(func(ctx context.Context) { e.reconnectLogged(ctx, src) })
		}
	})

	e.deps.Store.AddViewerListener(dprops.Nickname, func(_ context.Context, username string, _, newValue any) {
		n := e.deps.Hub.UpdateNickname(username, dprops.AsString(newValue))
		e.log.Debug("Nickname changed", slog.String("username", username), slog.Int("history_updated", n))
	})
}

// goBackground runs fn on the engine context; Stop waits for it.
func (e *Engine) goBackground(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

func (e *Engine) reconnectLogged(ctx context.Context, src domain.Source) {
	err := e.Reconnect(ctx, src)
	switch {
	case err == nil, errors.Is(err, source.ErrNoLinkage), errors.Is(err, context.Canceled):
	default:
		e.log.Warn("Reconnect failed", slog.String("source", string(src)), slog.String("error", err.Error()))
	}
}

// sweep connects every adapter that is not connected. Adapters skip the
// attempt themselves while the channel is disabled.
func (e *Engine) sweep(ctx context.Context) {
	for _, src := range e.order {
		if ctx.Err() != nil {
			return
		}
		a := e.adapters[src]
		if a.State() == ports.StateConnected {
			continue
		}

		err := a.Connect(ctx)
		switch {
		case err == nil:
		case errors.Is(err, source.ErrNoLinkage):
			e.log.Debug("Source not linked", slog.String("source", string(src)))
		default:
			e.log.Warn("Connect failed", slog.String("source", string(src)), slog.String("error", err.Error()))
		}
	}
}

// HandleMessage is the sink every adapter feeds: the message is published
// first, then Twitch commands and greetings run and YouTube commands are
// forwarded.
func (e *Engine) HandleMessage(ctx context.Context, msg domain.InboundMessage) {
	start := time.Now()
	defer func() {
		metrics.MessageProcessingTime.Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	e.deps.Chat.SendChat(ctx, msg.ChatMessage())

	switch msg.Source {
	case domain.SourceTwitch:
		res := e.dispatcher.Handle(ctx, msg)
		e.greeter.Greet(ctx, msg.Chatter.Username, res)
	case domain.SourceYouTube:
		e.dispatcher.Forward(ctx, msg)
	}
}

func (e *Engine) Reconnect(ctx context.Context, src domain.Source) error {
	a, ok := e.adapters[src]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, src)
	}
	return a.Reconnect(ctx)
}

func (e *Engine) Adapter(src domain.Source) (ports.SourceAdapter, bool) {
	a, ok := e.adapters[src]
	return a, ok
}

// Status reports a source adapter's state, or the emote cache for "emotes".
func (e *Engine) Status(name string) (any, bool) {
	if name == "emotes" {
		if e.deps.Emotes == nil {
			return nil, false
		}
		return e.deps.Emotes.Status(), true
	}

	src, ok := domain.ParseSource(name)
	if !ok {
		return nil, false
	}
	a, ok := e.adapters[src]
	if !ok {
		return nil, false
	}
	return a.Status(), true
}

func (e *Engine) Store() *props.Store {
	return e.deps.Store
}

func (e *Engine) Hub() *broadcast.Hub {
	return e.deps.Hub
}

// Stop cancels background work, removes the engine's timers, closes every
// session and waits for the listeners to exit or ctx to expire.
func (e *Engine) Stop(ctx context.Context) {
	e.cancel()
	if e.deps.Timers != nil {
		for _, id := range []string{timerSweep, timerEmoteStartup, timerEmoteRefresh} {
			e.deps.Timers.RemoveTimer(id)
		}
	}

	for _, src := range e.order {
		e.adapters[src].Disconnect(ctx)
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.log.Warn("Gave up waiting for background tasks", slog.String("error", ctx.Err().Error()))
	}

	if e.deps.Emotes != nil {
		e.deps.Emotes.Close()
	}
	if e.deps.Pronouns != nil {
		e.deps.Pronouns.Close()
	}
	e.log.Info("Engine stopped", slog.String("channel", e.opts.Channel))
}
