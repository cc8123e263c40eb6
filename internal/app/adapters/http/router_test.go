package http

import (
	"context"
	"encoding/json"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/internal/app/adapters/broadcast"
	"multichat/internal/app/adapters/props"
	"multichat/internal/app/domain"
	dprops "multichat/internal/app/domain/props"
	"multichat/internal/app/infrastructure/config"
	"multichat/internal/app/infrastructure/storage"
	"multichat/pkg/logger"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeStatus map[string]any

func (f fakeStatus) Status(name string) (any, bool) {
	v, ok := f[name]
	return v, ok
}

type fixture struct {
	router *Router
	store  *props.Store
	hub    *broadcast.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb, err := storage.NewRedis(mr.Addr(), "", "multibot:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := (&config.Manager{}).GetDefault()
	cfg.App.GinMode = "test"
	cfg.App.AuthToken = "s3cret"
	manager, err := config.NewStatic(cfg)
	require.NoError(t, err)

	log := logger.NewDiscard()
	hub := broadcast.New(log, "c", 100, 16)
	store := props.New(log, rdb, "c", hub)
	status := fakeStatus{"twitch": map[string]any{"connected": true}}

	return &fixture{
		router: NewRouter(log, manager, store, hub, status),
		store:  store,
		hub:    hub,
	}
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer s3cret")
	}

	w := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(w, req)
	return w
}

func TestChannelProps(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/channel_props/max_nickname_length", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `20`, w.Body.String())

	w = f.do(http.MethodPost, "/channel_props/youtube_id", `{"prop_value":"UCabc"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/channel_props/youtube_id", `{"prop_value":"UCabc"}`, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())

	w = f.do(http.MethodGet, "/channel_props/youtube_id", "", false)
	assert.JSONEq(t, `"UCabc"`, w.Body.String())

	w = f.do(http.MethodGet, "/channel_props/not_a_prop", "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/channel_props/font", `{"prop_value":`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChannelProps_EnabledCooldown(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/channel_props/enabled", `{"prop_value":false}`, true)
	assert.Equal(t, "ok", w.Body.String())

	w = f.do(http.MethodPost, "/channel_props/enabled", `{"prop_value":true}`, true)
	assert.Equal(t, "wait", w.Body.String())

	enabled, err := f.store.ChannelBool(context.Background(), dprops.Enabled)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestViewers(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/viewers/alice/nickname", `{"prop_value":"Al"}`, true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/viewers/alice/favorite_color", `{"prop_value":"red"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/viewers/alice/nickname", "", false)
	assert.JSONEq(t, `"Al"`, w.Body.String())

	w = f.do(http.MethodGet, "/viewers", "", false)
	assert.JSONEq(t, `{"alice":{"nickname":"Al"}}`, w.Body.String())

	w = f.do(http.MethodDelete, "/viewers/alice", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodDelete, "/viewers/alice", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/viewers", "", false)
	assert.JSONEq(t, `{}`, w.Body.String())
}

func TestChatHistoryAndClear(t *testing.T) {
	f := newFixture(t)
	f.hub.Publish(domain.ChatMessage{Source: domain.SourceTwitch, Username: "bob", Text: "hi"})

	w := f.do(http.MethodGet, "/chat_history", "", false)
	var history []domain.ChatMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Text)

	w = f.do(http.MethodPost, "/clear_chat", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/chat_history", "", false)
	assert.JSONEq(t, `[{"clear":true}]`, w.Body.String())
}

func TestStatusAndNumClients(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/status/twitch", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"connected":true}`, w.Body.String())

	w = f.do(http.MethodGet, "/status/myspace", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/ws/num_clients", "", false)
	assert.Equal(t, "0", w.Body.String())
}

func TestMetricsNeedsBasicAuth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
