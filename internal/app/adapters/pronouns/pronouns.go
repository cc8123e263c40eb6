package pronouns

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain"
	"multichat/internal/app/infrastructure/storage"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const DefaultBaseURL = "https://pronouns.alejo.io"

var _ ports.PronounResolver = (*Resolver)(nil)

var knownPronouns = map[string]string{
	"aeaer":    "Ae/Aer",
	"any":      "Any",
	"eem":      "E/Em",
	"faefaer":  "Fae/Faer",
	"hehim":    "He/Him",
	"heshe":    "He/She",
	"hethem":   "He/They",
	"itits":    "It/Its",
	"other":    "Other",
	"perper":   "Per/Per",
	"sheher":   "She/Her",
	"shethem":  "She/They",
	"theythem": "They/Them",
	"vever":    "Ve/Ver",
	"xexem":    "Xe/Xem",
	"ziehir":   "Zie/Hir",
}

type entry struct {
	pronouns        string
	lastUpdated     time.Time
	startedUpdating time.Time
}

type Options struct {
	Channel   string
	BaseURL   string
	TTL       time.Duration
	RetryTime time.Duration
	Capacity  int
	Now       func() time.Time
}

// Resolver answers pronoun lookups from its cache immediately and refreshes
// stale entries in the background. A fresh answer is pushed to viewers and
// patched into chat history.
type Resolver struct {
	log     logger.Logger
	channel string
	baseURL string
	client  *http.Client
	bc      ports.Broadcaster
	history ports.HistoryPort
	ttl     time.Duration
	retry   time.Duration
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	cache   *storage.Cache[*entry]
	display map[string]string
}

func New(log logger.Logger, opts Options, client *http.Client, bc ports.Broadcaster, history ports.HistoryPort) *Resolver {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10_000
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		log:     log,
		channel: opts.Channel,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  client,
		bc:      bc,
		history: history,
		ttl:     opts.TTL,
		retry:   opts.RetryTime,
		now:     opts.Now,
		ctx:     ctx,
		cancel:  cancel,
		cache:   storage.NewCache[*entry](opts.Capacity, 2*opts.TTL),
		display: maps.Clone(knownPronouns),
	}
}

// Resolve returns the cached pronouns for username (possibly empty) and
// starts a fetch when the entry is due.
func (r *Resolver) Resolve(username string) string {
	key := strings.ToLower(username)
	now := r.now()

	r.mu.Lock()
	e, ok := r.cache.Get(key)
	if !ok {
		e = &entry{}
		r.cache.Set(key, e)
	}
	current := e.pronouns
	if !e.lastUpdated.IsZero() && !now.After(e.lastUpdated.Add(r.ttl)) {
		r.mu.Unlock()
		return current
	}
	if !e.startedUpdating.IsZero() && !now.After(e.startedUpdating.Add(r.retry)) {
		r.mu.Unlock()
		return current
	}
	e.startedUpdating = now
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.fetch(r.ctx, username); err != nil {
			metrics.CacheRefresh.WithLabelValues(r.channel, "pronouns", "error").Inc()
			r.log.Warn("Pronoun fetch failed", slog.String("username", username), slog.String("error", err.Error()))
		}
	}()
	return current
}

type userPronoun struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	PronounID string `json:"pronoun_id"`
}

func (r *Resolver) fetch(ctx context.Context, username string) error {
	key := strings.ToLower(username)

	var users []userPronoun
	if err := r.getJSON(ctx, r.baseURL+"/api/users/"+url.PathEscape(key), &users); err != nil {
		return err
	}

	r.mu.Lock()
	var p string
	if len(users) > 0 && users[0].PronounID != "" {
		p = users[0].PronounID
		if disp, ok := r.display[p]; ok {
			p = disp
		}
	}

	e, ok := r.cache.Get(key)
	if !ok {
		e = &entry{}
		r.cache.Set(key, e)
	}
	e.pronouns = p
	e.lastUpdated = r.now()
	e.startedUpdating = time.Time{}
	r.mu.Unlock()

	metrics.CacheRefresh.WithLabelValues(r.channel, "pronouns", "ok").Inc()
	r.log.Debug("Pronouns fetched", slog.String("username", username), slog.String("pronouns", p))

	if r.bc != nil {
		r.bc.Broadcast(domain.EnvelopePronouns, map[string]any{
			"username": username,
			"pronouns": p,
		})
	}
	if r.history != nil && p != "" {
		r.history.UpdatePronouns(username, p)
	}
	return nil
}

// LoadPronounMap extends the id -> display table from the service's list.
func (r *Resolver) LoadPronounMap(ctx context.Context) error {
	var list []struct {
		Name    string `json:"name"`
		Display string `json:"display"`
	}
	if err := r.getJSON(ctx, r.baseURL+"/api/pronouns", &list); err != nil {
		return fmt.Errorf("load pronoun list: %w", err)
	}

	r.mu.Lock()
	for _, d := range list {
		r.display[d.Name] = d.Display
	}
	r.mu.Unlock()

	r.log.Info("Fetched pronoun list", slog.Int("count", len(list)))
	return nil
}

func (r *Resolver) getJSON(ctx context.Context, rawURL string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// Wait blocks until in-flight fetches finish.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) Close() {
	r.cancel()
	r.wg.Wait()
}
