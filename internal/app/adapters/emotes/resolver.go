package emotes

import (
	"context"
	"errors"
	"fmt"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"maps"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain/emote"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"sync"
	"time"
)

var ErrGlobalFetch = errors.New("global emote fetch failed")

var _ ports.EmoteResolver = (*Resolver)(nil)

// ChannelIDLookup resolves a Twitch login to its numeric user id.
type ChannelIDLookup interface {
	GetChannelID(ctx context.Context, login string) (string, error)
}

type Options struct {
	Channel   string
	TTL       time.Duration
	RetryTime time.Duration
	Now       func() time.Time
}

type Status struct {
	NumEmotes       int             `json:"NumEmotes"`
	NumYouTube      int             `json:"NumYouTube"`
	Connections     map[string]bool `json:"Connections"`
	LastUpdated     time.Time       `json:"LastUpdated"`
	StartedUpdating time.Time       `json:"StartedUpdating"`
}

// Resolver finds third-party emotes in message text. Its word table is
// refreshed in the background at most once per TTL, and a failed refresh is
// not retried before RetryTime has passed since it started.
type Resolver struct {
	log       logger.Logger
	channel   string
	providers []Provider
	lookup    ChannelIDLookup
	ttl       time.Duration
	retry     time.Duration
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.RWMutex
	words           map[string]string
	colon           map[string]string
	connections     map[string]bool
	lastUpdated     time.Time
	startedUpdating time.Time
}

func NewResolver(log logger.Logger, opts Options, lookup ChannelIDLookup, providers ...Provider) *Resolver {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		log:         log,
		channel:     opts.Channel,
		providers:   providers,
		lookup:      lookup,
		ttl:         opts.TTL,
		retry:       opts.RetryTime,
		now:         opts.Now,
		ctx:         ctx,
		cancel:      cancel,
		words:       make(map[string]string),
		colon:       make(map[string]string),
		connections: make(map[string]bool),
	}
}

// LoadYouTube installs the ":code:" table from a JSON file.
func (r *Resolver) LoadYouTube(path string) error {
	table, err := LoadYouTubeEmotes(path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.colon = table
	r.mu.Unlock()

	r.log.Info("Loaded youtube emotes", slog.Int("count", len(table)))
	return nil
}

// Resolve returns url -> ranges for the emotes currently known, and kicks off
// a background refresh when the table is due.
func (r *Resolver) Resolve(text string) map[string][]string {
	r.MaybeRefresh()

	r.mu.RLock()
	words, colon := r.words, r.colon
	r.mu.RUnlock()

	return emote.Find(text, words, colon)
}

// MaybeRefresh starts a refresh goroutine if the guard allows one and
// reports whether it did.
func (r *Resolver) MaybeRefresh() bool {
	r.mu.Lock()
	now := r.now()
	if !r.dueLocked(now) {
		r.mu.Unlock()
		return false
	}
	r.startedUpdating = now
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.refresh(r.ctx, now); err != nil {
			r.log.Error("Emote refresh failed", err)
		}
	}()
	return true
}

func (r *Resolver) dueLocked(now time.Time) bool {
	if !r.lastUpdated.IsZero() && !now.After(r.lastUpdated.Add(r.ttl)) {
		return false
	}
	if !r.startedUpdating.IsZero() && !now.After(r.startedUpdating.Add(r.retry)) {
		return false
	}
	return true
}

func (r *Resolver) refresh(ctx context.Context, started time.Time) error {
	r.log.Info("Updating 3rd-party emote cache")

	globals := make([]map[string]string, len(r.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range r.providers {
		g.Go(func() error {
			table, err := p.Global(gctx)
			if err != nil {
				return fmt.Errorf("%s: %w", p.Name(), err)
			}
			globals[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.CacheRefresh.WithLabelValues(r.channel, "emotes", "error").Inc()
		return fmt.Errorf("%w: %w", ErrGlobalFetch, err)
	}

	words := make(map[string]string)
	connections := make(map[string]bool, 2*len(r.providers))
	for i, p := range r.providers {
		maps.Copy(words, globals[i])
		connections["global_"+p.Name()] = true
		connections["channel_"+p.Name()] = false
	}

	r.fetchChannel(ctx, words, connections)

	r.mu.Lock()
	r.words = words
	r.connections = connections
	r.lastUpdated = started
	r.startedUpdating = time.Time{}
	r.mu.Unlock()

	metrics.CacheRefresh.WithLabelValues(r.channel, "emotes", "ok").Inc()
	r.log.Info("Done updating 3rd-party emote cache", slog.Int("count", len(words)))
	return nil
}

func (r *Resolver) fetchChannel(ctx context.Context, words map[string]string, connections map[string]bool) {
	if r.lookup == nil {
		return
	}

	id, err := r.lookup.GetChannelID(ctx, r.channel)
	if err != nil {
		r.log.Warn("Error getting channel ID, skipping channel emotes", slog.String("error", err.Error()))
		return
	}

	for _, p := range r.providers {
		table, err := p.Channel(ctx, id)
		if err != nil {
			r.log.Warn("Channel emote fetch failed", slog.String("provider", p.Name()), slog.String("error", err.Error()))
			continue
		}
		maps.Copy(words, table)
		connections["channel_"+p.Name()] = true
	}
}

func (r *Resolver) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Status{
		NumEmotes:       len(r.words),
		NumYouTube:      len(r.colon),
		Connections:     maps.Clone(r.connections),
		LastUpdated:     r.lastUpdated,
		StartedUpdating: r.startedUpdating,
	}
}

// Close cancels a running refresh and waits for it.
func (r *Resolver) Close() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until running refreshes finish.
func (r *Resolver) Wait() {
	r.wg.Wait()
}
