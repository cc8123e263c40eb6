package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"io"
	"log/slog"
	"multichat/pkg/logger"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultHelixURL = "https://api.twitch.tv/helix"
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
)

const (
	maxRetries  = 5
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second
)

// Twitch is a Helix client authenticated with an app access token.
type Twitch struct {
	log      logger.Logger
	clientID string
	baseURL  string
	client   *http.Client
}

type Options struct {
	ClientID     string
	ClientSecret string
	HelixURL     string
	TokenURL     string
}

// NewTwitch builds a Helix client whose requests carry a client-credentials
// token. base is the transport used for both the token and API calls.
func NewTwitch(log logger.Logger, opts Options, base *http.Client) *Twitch {
	if opts.HelixURL == "" {
		opts.HelixURL = DefaultHelixURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = DefaultTokenURL
	}
	if base == nil {
		base = http.DefaultClient
	}

	t := &Twitch{
		log:      log,
		clientID: opts.ClientID,
		baseURL:  opts.HelixURL,
	}
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return t
	}

	cc := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	t.client = cc.Client(ctx)
	t.client.Timeout = 15 * time.Second
	return t
}

type apiError struct {
	Error   string `json:"error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func (t *Twitch) doTwitchRequest(ctx context.Context, method, rawURL string, target any) (int, error) {
	if t.client == nil {
		return 0, ErrNoCredentials
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Client-Id", t.clientID)

		t.log.Debug("Sending Twitch request", slog.Int("attempt", attempt), slog.String("method", method), slog.String("url", rawURL))

		resp, err := t.client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("twitch request: %w", err)
		}

		raw, err := io.ReadAll(resp.Body)
		if cerr := resp.Body.Close(); cerr != nil {
			t.log.Error("Failed to close response body", cerr)
		}
		if err != nil {
			return resp.StatusCode, fmt.Errorf("read twitch response: %w", err)
		}

		t.log.Trace("Response received", slog.Int("status", resp.StatusCode), slog.String("body", string(raw)))
		switch resp.StatusCode {
		case http.StatusOK:
			if target == nil {
				return resp.StatusCode, nil
			}
			if err := json.Unmarshal(raw, target); err != nil {
				return resp.StatusCode, fmt.Errorf("decode twitch response: %w", err)
			}
			return resp.StatusCode, nil

		case http.StatusTooManyRequests:
			wait := calcWaitDuration(resp.Header.Get("Ratelimit-Reset"), time.Now())
			if wait <= 0 {
				wait = time.Duration(attempt) * baseBackoff
			}
			if wait > maxBackoff {
				wait = maxBackoff
			}

			t.log.Warn("Rate limit hit, backing off", slog.Int("attempt", attempt), slog.String("wait", wait.String()))
			select {
			case <-ctx.Done():
				return resp.StatusCode, ctx.Err()
			case <-time.After(wait):
			}

		default:
			var apiErr apiError
			if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Message == "" {
				return resp.StatusCode, fmt.Errorf("twitch API returned %d: %s", resp.StatusCode, string(raw))
			}
			return resp.StatusCode, errors.New(apiErr.Message)
		}
	}

	return 0, fmt.Errorf("twitch request failed after %d retries", maxRetries)
}

func calcWaitDuration(resetHeader string, now time.Time) time.Duration {
	if resetHeader == "" {
		return 0
	}

	ts, err := strconv.ParseInt(resetHeader, 10, 64)
	if err != nil {
		return 0
	}

	resetTime := time.Unix(ts, 0)
	if resetTime.Before(now) {
		return 0
	}
	return resetTime.Sub(now)
}

type userResponse struct {
	Data []struct {
		ID          string `json:"id"`
		Login       string `json:"login"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

// GetChannelID returns the numeric user id for login.
func (t *Twitch) GetChannelID(ctx context.Context, login string) (string, error) {
	var resp userResponse
	if _, err := t.doTwitchRequest(ctx, http.MethodGet, t.baseURL+"/users?login="+url.QueryEscape(login), &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", fmt.Errorf("user %s: %w", login, ErrNotFound)
	}
	return resp.Data[0].ID, nil
}
