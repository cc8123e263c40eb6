package owncast

import (
	"encoding/json"
	"fmt"
	"multichat/internal/app/domain"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultColor = "rgb(255,255,255)"

type event struct {
	Type      string `json:"type"`
	Body      string `json:"body"`
	Title     string `json:"title"`
	Image     string `json:"image"`
	Timestamp string `json:"timestamp"`
	User      *struct {
		ID           string   `json:"id"`
		DisplayName  string   `json:"displayName"`
		DisplayColor *float64 `json:"displayColor"`
		IsModerator  bool     `json:"isModerator"`
		Scopes       []string `json:"scopes"`
	} `json:"user"`
}

// ParseEvent turns one socket line into a chat message. Events without a
// body or a named user are skipped.
func ParseEvent(line []byte) (domain.InboundMessage, bool, error) {
	var ev event
	if err := json.Unmarshal(line, &ev); err != nil {
		return domain.InboundMessage{}, false, fmt.Errorf("decode owncast event: %w", err)
	}
	if ev.Body == "" || ev.User == nil || ev.User.DisplayName == "" {
		return domain.InboundMessage{}, false, nil
	}

	color := defaultColor
	if ev.User.DisplayColor != nil {
		color = fmt.Sprintf("hsla(%d, 100%%, 60%%, 0.85)", int(*ev.User.DisplayColor))
	}

	body := ev.Body
	if ev.Type != "CHAT" {
		body = strings.NewReplacer("<p>", "", "</p>", "", "\n", " ").Replace(body)
	}

	var emotes map[string][]string
	if ev.Type == "FEDIVERSE_ENGAGEMENT_LIKE" {
		body = fmt.Sprintf("%s %s %s", ev.Title, ev.Image, body)
		if ev.Image != "" {
			idx := strings.Index(body, ev.Image)
			start := utf8.RuneCountInString(body[:idx])
			end := start + utf8.RuneCountInString(ev.Image) - 1
			emotes = map[string][]string{ev.Image: {fmt.Sprintf("%d-%d", start, end)}}
		}
	}

	var ts time.Time
	if ev.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
			ts = t
		}
	}

	isMod := ev.User.IsModerator
	for _, scope := range ev.User.Scopes {
		if scope == "MODERATOR" {
			isMod = true
		}
	}

	return domain.InboundMessage{
		Source: domain.SourceOwncast,
		Chatter: domain.Chatter{
			UserID:   ev.User.ID,
			Username: ev.User.DisplayName,
			IsMod:    isMod,
		},
		Color:     color,
		Text:      body,
		Emotes:    emotes,
		Timestamp: ts,
	}, true, nil
}
