package source

import (
	"context"
	"errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/adapters/props"
	"multichat/internal/app/domain"
	dprops "multichat/internal/app/domain/props"
	"multichat/internal/app/infrastructure/storage"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSession struct {
	msgs   chan domain.InboundMessage
	end    chan error
	closed atomic.Int32
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		msgs: make(chan domain.InboundMessage),
		end:  make(chan error, 1),
	}
}

func (s *fakeSession) Listen(ctx context.Context, emit func(domain.InboundMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.end:
			return err
		case m := <-s.msgs:
			emit(m)
		}
	}
}

func (s *fakeSession) Close() error {
	s.closed.Add(1)
	return nil
}

func (s *fakeSession) Link() string { return "youtu.be/vid" }

type fakeDialer struct {
	linkage string
	dials   atomic.Int32
	err     error

	mu       sync.Mutex
	sessions []*fakeSession
}

func (d *fakeDialer) Source() domain.Source { return domain.SourceYouTube }

func (d *fakeDialer) Linkage(context.Context) (string, error) { return d.linkage, nil }

func (d *fakeDialer) Dial(context.Context, string) (Session, error) {
	d.dials.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	s := newFakeSession()
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDialer) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[len(d.sessions)-1]
}

type fakeSayer struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeSayer) Say(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, text)
}

func (f *fakeSayer) SayLater(text string, _ time.Duration) { f.Say(text) }

func (f *fakeSayer) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

type collector struct {
	mu   sync.Mutex
	msgs []domain.InboundMessage
}

func (c *collector) sink(_ context.Context, m domain.InboundMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func newStore(t *testing.T) *props.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := storage.NewRedis(mr.Addr(), "", "multibot:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return props.New(logger.NewDiscard(), rdb, "c", nil)
}

func newTestAdapter(t *testing.T, d *fakeDialer, now func() time.Time) (*Adapter, *collector, *props.Store) {
	t.Helper()
	store := newStore(t)
	c := &collector{}
	a := New(logger.NewDiscard(), d, store, c.sink, Options{
		Channel:       "c",
		MaxMessageAge: 10 * time.Second,
		Now:           now,
	})
	t.Cleanup(func() { a.Disconnect(context.Background()) })
	return a, c, store
}

func TestAdapter_ConnectTwiceDialsOnce(t *testing.T) {
	d := &fakeDialer{linkage: "UC123"}
	a, _, _ := newTestAdapter(t, d, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Connect(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), d.dials.Load())
	assert.Equal(t, ports.StateConnected, a.State())

	st := a.Status()
	assert.True(t, st.Connected)
	assert.Equal(t, "UC123", st.Linkage)
	assert.Equal(t, "youtu.be/vid", st.Link)
}

func TestAdapter_DisabledOrUnlinkedDoesNotDial(t *testing.T) {
	d := &fakeDialer{linkage: "UC123"}
	a, _, store := newTestAdapter(t, d, nil)
	ctx := context.Background()

	require.NoError(t, store.SetChannelProp(ctx, dprops.Enabled, false))
	require.NoError(t, a.Connect(ctx))
	assert.Equal(t, int32(0), d.dials.Load())
	assert.Equal(t, ports.StateDisconnected, a.State())

	require.NoError(t, store.SetChannelProp(ctx, dprops.Enabled, true))
	d.linkage = ""
	assert.ErrorIs(t, a.Connect(ctx), ErrNoLinkage)
	assert.Equal(t, int32(0), d.dials.Load())
}

func TestAdapter_StaleMessagesDropped(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	d := &fakeDialer{linkage: "UC123"}
	a, c, _ := newTestAdapter(t, d, func() time.Time { return now })
	staleBefore := testutil.ToFloat64(metrics.StaleMessages.WithLabelValues("c", "youtube"))
	require.NoError(t, a.Connect(context.Background()))

	s := d.last()
	s.msgs <- domain.InboundMessage{Text: "old", Timestamp: now.Add(-11 * time.Second)}
	s.msgs <- domain.InboundMessage{Text: "fresh", Timestamp: now.Add(-9 * time.Second)}
	s.msgs <- domain.InboundMessage{Text: "untimed"}

	require.Eventually(t, func() bool { return c.Len() == 2 }, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	assert.Equal(t, "fresh", c.msgs[0].Text)
	assert.Equal(t, domain.SourceYouTube, c.msgs[0].Source)
	assert.Equal(t, "untimed", c.msgs[1].Text)
	c.mu.Unlock()

	st := a.Status()
	assert.Equal(t, uint64(3), st.Received)
	assert.Equal(t, uint64(1), st.Dropped)
	assert.Equal(t, staleBefore+1, testutil.ToFloat64(metrics.StaleMessages.WithLabelValues("c", "youtube")))
}

func TestAdapter_DisconnectIdempotentAndAwaitsListener(t *testing.T) {
	d := &fakeDialer{linkage: "UC123"}
	a, _, _ := newTestAdapter(t, d, nil)
	sayer := &fakeSayer{}
	a.SetAnnouncer(sayer)
	ctx := context.Background()

	a.Disconnect(ctx)
	require.NoError(t, a.Connect(ctx))
	s := d.last()

	a.Disconnect(ctx)
	a.Disconnect(ctx)

	assert.Equal(t, ports.StateDisconnected, a.State())
	assert.Equal(t, int32(1), s.closed.Load())
	assert.Equal(t, []string{"connected to youtube chat: youtu.be/vid", "disconnected from youtube chat"}, sayer.Lines())
}

func TestAdapter_SessionEndAndReconnect(t *testing.T) {
	d := &fakeDialer{linkage: "UC123"}
	a, _, _ := newTestAdapter(t, d, nil)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx))
	d.last().end <- nil
	require.Eventually(t, func() bool { return a.Status().LastEnd == ports.StateEnded }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ports.StateDisconnected, a.State())
	assert.Empty(t, a.Status().LastError)

	require.NoError(t, a.Connect(ctx))
	assert.Equal(t, ports.StateConnected, a.State())
	d.last().end <- errors.New("socket reset")
	require.Eventually(t, func() bool { return a.Status().LastEnd == ports.StateErrorClosed }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ports.StateDisconnected, a.State())
	assert.Equal(t, "socket reset", a.Status().LastError)

	require.NoError(t, a.Reconnect(ctx))
	assert.Equal(t, ports.StateConnected, a.State())
	assert.Equal(t, int32(3), d.dials.Load())
}

func TestAdapter_DisconnectAfterEndIsDisconnected(t *testing.T) {
	d := &fakeDialer{linkage: "UC123"}
	a, _, _ := newTestAdapter(t, d, nil)
	ctx := context.Background()

	require.NoError(t, a.Connect(ctx))
	d.last().end <- nil
	require.Eventually(t, func() bool { return a.Status().LastEnd == ports.StateEnded }, time.Second, 5*time.Millisecond)

	a.Disconnect(ctx)
	assert.Equal(t, ports.StateDisconnected, a.State())
	assert.False(t, a.Status().Connected)
}

func TestAdapter_DialFailure(t *testing.T) {
	d := &fakeDialer{linkage: "UC123", err: errors.New("no live stream")}
	a, _, _ := newTestAdapter(t, d, nil)

	assert.Error(t, a.Connect(context.Background()))
	assert.Equal(t, ports.StateDisconnected, a.State())

	st := a.Status()
	assert.Equal(t, ports.StateErrorClosed, st.LastEnd)
	assert.Equal(t, "no live stream", st.LastError)
}
