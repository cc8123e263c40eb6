package domain

import (
	"strings"
	"time"
)

type Source string

const (
	SourceTwitch  Source = "twitch"
	SourceYouTube Source = "youtube"
	SourceOwncast Source = "owncast"
	SourceKick    Source = "kick"
)

var Sources = []Source{SourceTwitch, SourceYouTube, SourceOwncast, SourceKick}

func ParseSource(s string) (Source, bool) {
	for _, src := range Sources {
		if strings.EqualFold(s, string(src)) {
			return src, true
		}
	}
	return "", false
}

// ChatMessage is the normalized event stored in history and sent to viewers.
// Emotes maps an image URL (or a native emote id) to inclusive rune ranges
// "start-end" inside Text. A message with Clear set carries nothing else.
type ChatMessage struct {
	Source   Source              `json:"source,omitempty"`
	Username string              `json:"username,omitempty"`
	Nickname string              `json:"nickname,omitempty"`
	Pronouns string              `json:"pronouns,omitempty"`
	Color    string              `json:"color,omitempty"`
	Emotes   map[string][]string `json:"emotes,omitempty"`
	Text     string              `json:"text,omitempty"`
	Clear    bool                `json:"clear,omitempty"`
}

func ClearMarker() ChatMessage {
	return ChatMessage{Clear: true}
}

// Chatter describes who sent an inbound message on its platform.
type Chatter struct {
	UserID        string
	Username      string
	Login         string
	IsBroadcaster bool
	IsMod         bool
}

// InboundMessage is what an adapter hands to the engine. Timestamp is the
// platform event time; zero means the platform gave none.
type InboundMessage struct {
	Source    Source
	Chatter   Chatter
	Color     string
	Text      string
	Emotes    map[string][]string
	Timestamp time.Time
}

// Stale reports whether the event is older than maxAge at now.
func (m InboundMessage) Stale(now time.Time, maxAge time.Duration) bool {
	if m.Timestamp.IsZero() || maxAge <= 0 {
		return false
	}
	return now.Sub(m.Timestamp) > maxAge
}

func (m InboundMessage) ChatMessage() ChatMessage {
	emotes := make(map[string][]string, len(m.Emotes))
	for k, v := range m.Emotes {
		emotes[k] = append([]string(nil), v...)
	}

	return ChatMessage{
		Source:   m.Source,
		Username: m.Chatter.Username,
		Color:    m.Color,
		Emotes:   emotes,
		Text:     m.Text,
	}
}

// Envelope is the frame written to viewer connections.
type Envelope struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
	Replay  bool   `json:"replay,omitempty"`
}

const (
	EnvelopeChat         = "chat"
	EnvelopeCommand      = "command"
	EnvelopeChannelProp  = "channel_prop"
	EnvelopeViewerProp   = "viewer_prop"
	EnvelopeDeleteViewer = "delete_viewer"
	EnvelopePronouns     = "pronouns"
	EnvelopePageHash     = "page_hash"
)
