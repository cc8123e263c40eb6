package owncast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/gorilla/websocket"
	"log/slog"
	"multichat/internal/app/adapters/source"
	"multichat/internal/app/domain"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

var _ source.Dialer = (*Owncast)(nil)

type Options struct {
	DisplayName string
	// Insecure switches to http/ws, for servers without TLS.
	Insecure bool
}

// Owncast registers a chat user on the instance stored in owncast_url and
// reads its chat socket.
type Owncast struct {
	log    logger.Logger
	store  ports.PropertyStore
	opts   Options
	client *http.Client
	ws     *websocket.Dialer
}

func New(log logger.Logger, store ports.PropertyStore, opts Options, client *http.Client, ws *websocket.Dialer) *Owncast {
	if client == nil {
		client = http.DefaultClient
	}
	if ws == nil {
		ws = websocket.DefaultDialer
	}

	return &Owncast{
		log:    log,
		store:  store,
		opts:   opts,
		client: client,
		ws:     ws,
	}
}

func (o *Owncast) Source() domain.Source {
	return domain.SourceOwncast
}

func (o *Owncast) Linkage(ctx context.Context) (string, error) {
	return o.store.ChannelString(ctx, props.OwncastURL)
}

func (o *Owncast) schemes() (string, string) {
	if o.opts.Insecure {
		return "http", "ws"
	}
	return "https", "wss"
}

func (o *Owncast) Dial(ctx context.Context, host string) (source.Session, error) {
	host = strings.TrimSuffix(host, "/")
	httpScheme, wsScheme := o.schemes()

	token, err := o.register(ctx, httpScheme+"://"+host+"/api/chat/register")
	if err != nil {
		return nil, err
	}

	wsURL := fmt.Sprintf("%s://%s/ws?accessToken=%s", wsScheme, host, url.QueryEscape(token))
	conn, _, err := o.ws.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("owncast ws connect: %w", err)
	}

	return &session{
		log:  o.log,
		conn: conn,
		link: "https://" + host,
	}, nil
}

func (o *Owncast) register(ctx context.Context, apiURL string) (string, error) {
	body, err := json.Marshal(map[string]any{"displayName": o.opts.DisplayName})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("owncast register: %w", err)
	}
	defer resp.Body.Close()

	var reg struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return "", fmt.Errorf("owncast register decode (status %d): %w", resp.StatusCode, err)
	}
	if reg.AccessToken == "" {
		return "", fmt.Errorf("owncast register: no accessToken returned (status %d)", resp.StatusCode)
	}
	return reg.AccessToken, nil
}

type session struct {
	log       logger.Logger
	conn      *websocket.Conn
	link      string
	closeOnce sync.Once
}

func (s *session) Link() string {
	return s.link
}

func (s *session) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func (s *session) Listen(ctx context.Context, emit func(domain.InboundMessage)) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("owncast read: %w", err)
		}

		for _, line := range strings.Split(string(data), "\n") {
			if line == "" {
				continue
			}
			msg, ok, err := ParseEvent([]byte(line))
			if err != nil {
				s.log.Warn("Parse error", slog.String("error", err.Error()))
				continue
			}
			if ok {
				emit(msg)
			}
		}
	}
}
