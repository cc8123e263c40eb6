package kick

import (
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
	"strings"
	"sync"
	"time"
)

var _ source.Dialer = (*Kick)(nil)

const (
	eventChatMessage  = `App\Events\ChatMessageEvent`
	eventPing         = "pusher:ping"
	eventPong         = "pusher:pong"
	eventSubscribe    = "pusher:subscribe"
	eventEstablished  = "pusher:connection_established"
	handshakeDeadline = 10 * time.Second
)

// Kick subscribes to the Pusher channel of the chatroom stored in
// kick_chatroom_id.
type Kick struct {
	log       logger.Logger
	store     ports.PropertyStore
	pusherURL string
	ws        *websocket.Dialer
}

func New(log logger.Logger, store ports.PropertyStore, pusherURL string, ws *websocket.Dialer) *Kick {
	if ws == nil {
		ws = websocket.DefaultDialer
	}

	return &Kick{
		log:       log,
		store:     store,
		pusherURL: pusherURL,
		ws:        ws,
	}
}

func (k *Kick) Source() domain.Source {
	return domain.SourceKick
}

func (k *Kick) Linkage(ctx context.Context) (string, error) {
	return k.store.ChannelString(ctx, props.KickChatroomID)
}

func parseChatroomID(s string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid chatroom id %q: %w", s, err)
	}
	return id, nil
}

type pusherFrame struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data"`
}

func (k *Kick) Dial(ctx context.Context, chatroom string) (source.Session, error) {
	id, err := parseChatroomID(chatroom)
	if err != nil {
		return nil, err
	}

	conn, _, err := k.ws.DialContext(ctx, k.pusherURL, nil)
	if err != nil {
		return nil, fmt.Errorf("kick ws connect: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeDeadline))
	var hello pusherFrame
	if err := conn.ReadJSON(&hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("kick handshake: %w", err)
	}
	if hello.Event != eventEstablished {
		_ = conn.Close()
		return nil, fmt.Errorf("kick handshake: unexpected event %q", hello.Event)
	}
	_ = conn.SetReadDeadline(time.Time{})

	channel := fmt.Sprintf("chatrooms.%d.v2", id)
	sub := map[string]any{
		"event": eventSubscribe,
		"data":  map[string]string{"auth": "", "channel": channel},
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("kick subscribe: %w", err)
	}

	link := "kick.com"
	if name, err := k.store.ChannelString(ctx, props.KickUsername); err == nil && name != "" {
		link = "kick.com/" + name
	}

	return &session{
		log:     k.log,
		conn:    conn,
		channel: channel,
		link:    link,
	}, nil
}

type session struct {
	log       logger.Logger
	conn      *websocket.Conn
	channel   string
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
		var frame pusherFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("kick read: %w", err)
		}

		switch frame.Event {
		case eventPing:
			if err := s.conn.WriteJSON(map[string]any{"event": eventPong, "data": map[string]any{}}); err != nil {
				return fmt.Errorf("kick pong: %w", err)
			}
		case eventChatMessage:
			if frame.Channel != "" && frame.Channel != s.channel {
				continue
			}
			msg, ok, err := ParseChatMessage(frame.Data)
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

type chatMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	Sender    struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Slug     string `json:"slug"`
		Identity struct {
			Color  string `json:"color"`
			Badges []struct {
				Type string `json:"type"`
			} `json:"badges"`
		} `json:"identity"`
	} `json:"sender"`
}

// ParseChatMessage decodes a ChatMessageEvent payload. Pusher sends the
// payload as a JSON string, so data is unquoted first when needed.
func ParseChatMessage(data json.RawMessage) (domain.InboundMessage, bool, error) {
	raw := []byte(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return domain.InboundMessage{}, false, fmt.Errorf("unquote kick payload: %w", err)
		}
		raw = []byte(s)
	}

	var m chatMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.InboundMessage{}, false, fmt.Errorf("decode kick message: %w", err)
	}
	if m.Sender.Username == "" {
		return domain.InboundMessage{}, false, nil
	}

	var isMod, isBroadcaster bool
	for _, b := range m.Sender.Identity.Badges {
		switch b.Type {
		case "moderator":
			isMod = true
		case "broadcaster":
			isBroadcaster = true
		}
	}

	var ts time.Time
	if m.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, m.CreatedAt); err == nil {
			ts = t
		}
	}

	text, emotes := ExtractEmotes(m.Content)

	return domain.InboundMessage{
		Source: domain.SourceKick,
		Chatter: domain.Chatter{
			UserID:        fmt.Sprint(m.Sender.ID),
			Username:      m.Sender.Username,
			Login:         m.Sender.Slug,
			IsBroadcaster: isBroadcaster,
			IsMod:         isMod || isBroadcaster,
		},
		Color:     m.Sender.Identity.Color,
		Text:      text,
		Emotes:    emotes,
		Timestamp: ts,
	}, true, nil
}

const emoteURL = "https://files.kick.com/emotes/%s/fullsize"

// ExtractEmotes replaces inline "[emote:ID:NAME]" tokens with NAME and
// returns the rune ranges they occupy in the rewritten text.
func ExtractEmotes(content string) (string, map[string][]string) {
	var (
		b      strings.Builder
		emotes map[string][]string
		pos    int
	)

	rest := content
	for {
		i := strings.Index(rest, "[emote:")
		if i < 0 {
			break
		}
		j := strings.IndexByte(rest[i:], ']')
		if j < 0 {
			break
		}
		token := rest[i+len("[emote:") : i+j]
		id, name, ok := strings.Cut(token, ":")
		if !ok || id == "" || name == "" {
			b.WriteString(rest[:i+j+1])
			pos += len([]rune(rest[:i+j+1]))
			rest = rest[i+j+1:]
			continue
		}

		b.WriteString(rest[:i])
		pos += len([]rune(rest[:i]))
		b.WriteString(name)
		n := len([]rune(name))

		if emotes == nil {
			emotes = make(map[string][]string)
		}
		url := fmt.Sprintf(emoteURL, id)
		emotes[url] = append(emotes[url], fmt.Sprintf("%d-%d", pos, pos+n-1))
		pos += n
		rest = rest[i+j+1:]
	}
	b.WriteString(rest)

	return b.String(), emotes
}
