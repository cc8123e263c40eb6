package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"sync"
	"sync/atomic"
	"time"
)

var _ ports.SourceAdapter = (*Adapter)(nil)

type Options struct {
	Channel       string
	MaxMessageAge time.Duration
	AnnounceDelay time.Duration
	Now           func() time.Time
}

// Adapter runs the connection lifecycle shared by every source. Connect and
// Disconnect are serialized, so at most one session exists at a time.
type Adapter struct {
	log    logger.Logger
	dialer Dialer
	store  ports.PropertyStore
	sink   Sink
	sayer  ports.ChatSayer
	opts   Options

	connMu sync.Mutex

	mu          sync.RWMutex
	state       ports.SourceState
	linkage     string
	link        string
	connectedAt time.Time
	lastEnd     ports.SourceState
	lastError   string
	session     Session
	cancel      context.CancelFunc
	done        chan struct{}

	received atomic.Uint64
	dropped  atomic.Uint64
}

func New(log logger.Logger, dialer Dialer, store ports.PropertyStore, sink Sink, opts Options) *Adapter {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Adapter{
		log:    log,
		dialer: dialer,
		store:  store,
		sink:   sink,
		opts:   opts,
		state:  ports.StateDisconnected,
	}
}

// SetAnnouncer makes the adapter post connect and disconnect notices to chat.
func (a *Adapter) SetAnnouncer(sayer ports.ChatSayer) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sayer = sayer
}

func (a *Adapter) Source() domain.Source {
	return a.dialer.Source()
}

func (a *Adapter) State() ports.SourceState {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.state
}

func (a *Adapter) Status() ports.SourceStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return ports.SourceStatus{
		Source:      a.dialer.Source(),
		State:       a.state,
		Connected:   a.state == ports.StateConnected,
		Linkage:     a.linkage,
		Link:        a.link,
		ConnectedAt: a.connectedAt,
		LastEnd:     a.lastEnd,
		LastError:   a.lastError,
		Received:    a.received.Load(),
		Dropped:     a.dropped.Load(),
	}
}

// Connect opens a session unless one is already open, the channel is
// disabled, or the source is not linked (ErrNoLinkage).
func (a *Adapter) Connect(ctx context.Context) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	if a.State() == ports.StateConnected {
		a.log.Debug("Already connected, will not connect")
		return nil
	}

	enabled, err := a.store.ChannelBool(ctx, props.Enabled)
	if err != nil {
		return fmt.Errorf("read enabled: %w", err)
	}
	if !enabled {
		a.log.Debug("Channel is disabled, will not connect")
		return nil
	}

	linkage, err := a.dialer.Linkage(ctx)
	if err != nil {
		return fmt.Errorf("read linkage: %w", err)
	}
	if linkage == "" {
		return ErrNoLinkage
	}

	a.setState(ports.StateConnecting, linkage, "")
	a.log.Info("Connecting", slog.String("linkage", linkage))

	sess, err := a.dialer.Dial(ctx, linkage)
	if err != nil {
		a.setState(ports.StateErrorClosed, linkage, err.Error())
		metrics.AdapterConnected.WithLabelValues(a.opts.Channel, string(a.Source())).Set(0)
		a.settle(ports.StateErrorClosed)
		return fmt.Errorf("dial %s: %w", a.Source(), err)
	}

	lctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.state = ports.StateConnected
	a.link = sess.Link()
	a.connectedAt = a.opts.Now()
	a.lastError = ""
	a.session = sess
	a.cancel = cancel
	a.done = done
	sayer := a.sayer
	a.mu.Unlock()

	metrics.AdapterConnected.WithLabelValues(a.opts.Channel, string(a.Source())).Set(1)
	a.log.Info("Connected", slog.String("link", sess.Link()))
	if sayer != nil {
		sayer.SayLater(fmt.Sprintf("connected to %s chat: %s", a.Source(), sess.Link()), a.opts.AnnounceDelay)
	}

	go a.listen(lctx, sess, done)
	return nil
}

func (a *Adapter) listen(ctx context.Context, sess Session, done chan struct{}) {
	defer close(done)

	err := sess.Listen(ctx, func(msg domain.InboundMessage) {
		a.handle(ctx, msg)
	})

	terminal := ports.StateEnded
	if err != nil && !errors.Is(err, context.Canceled) {
		terminal = ports.StateErrorClosed
	}

	a.mu.Lock()
	owned := a.session == sess
	if owned {
		a.session = nil
		a.cancel = nil
		a.done = nil
		a.state = terminal
		if terminal == ports.StateErrorClosed {
			a.lastError = err.Error()
		}
	}
	sayer := a.sayer
	a.mu.Unlock()

	if !owned {
		return
	}

	_ = sess.Close()
	metrics.AdapterConnected.WithLabelValues(a.opts.Channel, string(a.Source())).Set(0)
	a.settle(terminal)
	if err != nil {
		a.log.Warn("Session closed with error", slog.String("error", err.Error()))
	} else {
		a.log.Info("Session ended")
	}
	if sayer != nil {
		sayer.Say(fmt.Sprintf("disconnected from %s chat", a.Source()))
	}
}

func (a *Adapter) handle(ctx context.Context, msg domain.InboundMessage) {
	a.received.Add(1)
	msg.Source = a.Source()

	if msg.Stale(a.opts.Now(), a.opts.MaxMessageAge) {
		a.dropped.Add(1)
		metrics.StaleMessages.WithLabelValues(a.opts.Channel, string(msg.Source)).Inc()
		a.log.Debug("Dropping stale message", slog.String("username", msg.Chatter.Username), slog.Time("timestamp", msg.Timestamp))
		return
	}

	a.sink(ctx, msg)
}

// Disconnect closes the session, if any, and waits for its listener to exit.
// The adapter is Disconnected afterwards in every case.
func (a *Adapter) Disconnect(ctx context.Context) {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	a.mu.Lock()
	sess, cancel, done, sayer := a.session, a.cancel, a.done, a.sayer
	a.session, a.cancel, a.done = nil, nil, nil
	a.state = ports.StateDisconnected
	a.mu.Unlock()

	if sess == nil {
		return
	}

	a.log.Info("Disconnecting")
	cancel()
	if err := sess.Close(); err != nil {
		a.log.Warn("Error closing session", slog.String("error", err.Error()))
	}

	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Gave up waiting for listener to stop", slog.String("error", ctx.Err().Error()))
	}

	metrics.AdapterConnected.WithLabelValues(a.opts.Channel, string(a.Source())).Set(0)
	if sayer != nil {
		sayer.Say(fmt.Sprintf("disconnected from %s chat", a.Source()))
	}
}

func (a *Adapter) Reconnect(ctx context.Context) error {
	a.Disconnect(ctx)
	return a.Connect(ctx)
}

// settle moves a session that ended in terminal on to Disconnected and
// records how it ended. A newer session started meanwhile is left alone.
func (a *Adapter) settle(terminal ports.SourceState) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.lastEnd = terminal
	if a.session == nil && a.state == terminal {
		a.state = ports.StateDisconnected
	}
}

func (a *Adapter) setState(state ports.SourceState, linkage, lastError string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = state
	a.linkage = linkage
	if lastError != "" {
		a.lastError = lastError
	}
}
