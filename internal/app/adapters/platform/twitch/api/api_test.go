package api

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/pkg/logger"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newHelix(t *testing.T, users http.HandlerFunc) *Twitch {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"apptoken","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/helix/users", users)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewTwitch(logger.NewDiscard(), Options{
		ClientID:     "cid",
		ClientSecret: "secret",
		HelixURL:     srv.URL + "/helix",
		TokenURL:     srv.URL + "/oauth2/token",
	}, srv.Client())
}

func TestGetChannelID(t *testing.T) {
	tw := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer apptoken", r.Header.Get("Authorization"))
		assert.Equal(t, "cid", r.Header.Get("Client-Id"))
		assert.Equal(t, "somechannel", r.URL.Query().Get("login"))
		_, _ = w.Write([]byte(`{"data":[{"id":"12345","login":"somechannel"}]}`))
	})

	id, err := tw.GetChannelID(context.Background(), "somechannel")
	require.NoError(t, err)
	assert.Equal(t, "12345", id)
}

func TestGetChannelID_NotFound(t *testing.T) {
	tw := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := tw.GetChannelID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChannelID_RetriesOnRateLimit(t *testing.T) {
	var calls atomic.Int32
	tw := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Ratelimit-Reset", strconv.FormatInt(time.Now().Unix()-1, 10))
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"1"}]}`))
	})

	id, err := tw.GetChannelID(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetChannelID_APIError(t *testing.T) {
	tw := newHelix(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`))
	})

	_, err := tw.GetChannelID(context.Background(), "c")
	assert.EqualError(t, err, "Invalid OAuth token")
}

func TestNoCredentials(t *testing.T) {
	tw := NewTwitch(logger.NewDiscard(), Options{}, nil)

	_, err := tw.GetChannelID(context.Background(), "c")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestCalcWaitDuration(t *testing.T) {
	now := time.Unix(1000, 0)

	assert.Equal(t, time.Duration(0), calcWaitDuration("", now))
	assert.Equal(t, time.Duration(0), calcWaitDuration("x", now))
	assert.Equal(t, time.Duration(0), calcWaitDuration("999", now))
	assert.Equal(t, 5*time.Second, calcWaitDuration("1005", now))
}
