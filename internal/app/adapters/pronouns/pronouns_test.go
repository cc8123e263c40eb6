package pronouns

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/internal/app/adapters/broadcast"
	"multichat/internal/app/domain"
	"multichat/pkg/logger"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type pronounServer struct {
	*httptest.Server
	calls atomic.Int32
	fail  atomic.Bool
}

func newPronounServer(t *testing.T) *pronounServer {
	t.Helper()

	ps := &pronounServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		ps.calls.Add(1)
		if ps.fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/api/users/alice":
			_, _ = w.Write([]byte(`[{"id":"1","login":"alice","pronoun_id":"sheher"}]`))
		case "/api/users/newbie":
			_, _ = w.Write([]byte(`[{"id":"2","login":"newbie","pronoun_id":"brandnew"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	mux.HandleFunc("/api/pronouns", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"name":"brandnew","display":"Brand/New"}]`))
	})

	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func newTestResolver(ps *pronounServer, clock *fakeClock, hub *broadcast.Hub) *Resolver {
	if hub == nil {
		hub = broadcast.New(logger.NewDiscard(), "c", 100, 0)
	}
	return New(logger.NewDiscard(), Options{
		Channel:   "c",
		BaseURL:   ps.URL,
		TTL:       24 * time.Hour,
		RetryTime: 30 * time.Second,
		Now:       clock.Now,
	}, ps.Client(), hub, hub)
}

func TestResolver_FetchBroadcastAndPatchHistory(t *testing.T) {
	ps := newPronounServer(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	hub := broadcast.New(logger.NewDiscard(), "c", 100, 0)
	hub.Publish(domain.ChatMessage{Username: "Alice", Text: "hi"})

	sub, _ := hub.Subscribe()
	defer hub.Unsubscribe(sub.ID)

	r := newTestResolver(ps, clock, hub)
	defer r.Close()

	assert.Equal(t, "", r.Resolve("Alice"))
	r.Wait()

	assert.Equal(t, "She/Her", r.Resolve("alice"))
	assert.Equal(t, "She/Her", hub.History()[0].Pronouns)

	select {
	case data := <-sub.C:
		assert.JSONEq(t, `{"type":"pronouns","content":{"username":"Alice","pronouns":"She/Her"}}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("no pronouns envelope")
	}
	assert.Equal(t, int32(1), ps.calls.Load())
}

func TestResolver_NoRefetchWithinTTL(t *testing.T) {
	ps := newPronounServer(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestResolver(ps, clock, nil)
	defer r.Close()

	r.Resolve("alice")
	r.Wait()

	clock.Advance(23 * time.Hour)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(1), ps.calls.Load())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, "She/Her", r.Resolve("alice"))
	r.Wait()
	assert.Equal(t, int32(2), ps.calls.Load())
}

func TestResolver_GuardBoundariesAreExclusive(t *testing.T) {
	ps := newPronounServer(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestResolver(ps, clock, nil)
	defer r.Close()

	r.Resolve("alice")
	r.Wait()

	clock.Advance(24 * time.Hour)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(1), ps.calls.Load(), "refresh exactly at lastUpdated+TTL")

	clock.Advance(time.Nanosecond)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(2), ps.calls.Load())

	ps.fail.Store(true)
	clock.Advance(25 * time.Hour)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(3), ps.calls.Load())

	clock.Advance(30 * time.Second)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(3), ps.calls.Load(), "retry exactly at startedUpdating+RETRY")

	clock.Advance(time.Nanosecond)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(4), ps.calls.Load())
}

func TestResolver_FailureRetriesAfterRetryTime(t *testing.T) {
	ps := newPronounServer(t)
	ps.fail.Store(true)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestResolver(ps, clock, nil)
	defer r.Close()

	r.Resolve("alice")
	r.Wait()

	clock.Advance(10 * time.Second)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(1), ps.calls.Load())

	ps.fail.Store(false)
	clock.Advance(25 * time.Second)
	r.Resolve("alice")
	r.Wait()
	assert.Equal(t, int32(2), ps.calls.Load())
	assert.Equal(t, "She/Her", r.Resolve("alice"))
}

func TestResolver_UnknownIDAndPronounMap(t *testing.T) {
	ps := newPronounServer(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}

	raw := newTestResolver(ps, clock, nil)
	defer raw.Close()
	raw.Resolve("newbie")
	raw.Wait()
	assert.Equal(t, "brandnew", raw.Resolve("newbie"))

	loaded := newTestResolver(ps, clock, nil)
	defer loaded.Close()
	require.NoError(t, loaded.LoadPronounMap(context.Background()))
	loaded.Resolve("newbie")
	loaded.Wait()
	assert.Equal(t, "Brand/New", loaded.Resolve("newbie"))

	loaded.Resolve("ghost")
	loaded.Wait()
	assert.Equal(t, "", loaded.Resolve("ghost"))
}
