package emotes

import (
	"context"
	"net/http"
)

type SevenTV struct {
	client  *http.Client
	baseURL string
}

func NewSevenTV(client *http.Client, baseURL string) *SevenTV {
	if baseURL == "" {
		baseURL = "https://7tv.io"
	}
	return &SevenTV{client: client, baseURL: baseURL}
}

type sevenTVEmote struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type sevenTVSet struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Emotes []sevenTVEmote `json:"emotes"`
}

type sevenTVUser struct {
	EmoteSetID string     `json:"emote_set_id"`
	EmoteSet   sevenTVSet `json:"emote_set"`
}

func (s sevenTVSet) table() map[string]string {
	out := make(map[string]string, len(s.Emotes))
	for _, e := range s.Emotes {
		out[e.Name] = "https://cdn.7tv.app/emote/" + e.ID + "/3x.webp"
	}
	return out
}

func (sv *SevenTV) Name() string { return "7tv" }

func (sv *SevenTV) Global(ctx context.Context) (map[string]string, error) {
	var set sevenTVSet
	if err := getJSON(ctx, sv.client, sv.baseURL+"/v3/emote-sets/global", &set); err != nil {
		return nil, err
	}
	return set.table(), nil
}

func (sv *SevenTV) Channel(ctx context.Context, twitchUserID string) (map[string]string, error) {
	var user sevenTVUser
	if err := getJSON(ctx, sv.client, sv.baseURL+"/v3/users/twitch/"+twitchUserID, &user); err != nil {
		return nil, err
	}
	return user.EmoteSet.table(), nil
}
