package emotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Provider fetches code -> image URL tables from one third-party emote service.
type Provider interface {
	Name() string
	Global(ctx context.Context) (map[string]string, error)
	Channel(ctx context.Context, twitchUserID string) (map[string]string, error)
}

func getJSON(ctx context.Context, client *http.Client, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

type BTTV struct {
	client  *http.Client
	baseURL string
}

func NewBTTV(client *http.Client, baseURL string) *BTTV {
	if baseURL == "" {
		baseURL = "https://api.betterttv.net"
	}
	return &BTTV{client: client, baseURL: baseURL}
}

type bttvEmote struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

func bttvCDN(id string) string {
	return "https://cdn.betterttv.net/emote/" + id + "/3x.webp"
}

func (b *BTTV) Name() string { return "bttv" }

func (b *BTTV) Global(ctx context.Context) (map[string]string, error) {
	var emotes []bttvEmote
	if err := getJSON(ctx, b.client, b.baseURL+"/3/cached/emotes/global", &emotes); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(emotes))
	for _, e := range emotes {
		out[e.Code] = bttvCDN(e.ID)
	}
	return out, nil
}

func (b *BTTV) Channel(ctx context.Context, twitchUserID string) (map[string]string, error) {
	var data struct {
		ChannelEmotes []bttvEmote `json:"channelEmotes"`
		SharedEmotes  []bttvEmote `json:"sharedEmotes"`
	}
	if err := getJSON(ctx, b.client, b.baseURL+"/3/cached/users/twitch/"+twitchUserID, &data); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(data.ChannelEmotes)+len(data.SharedEmotes))
	for _, e := range data.ChannelEmotes {
		out[e.Code] = bttvCDN(e.ID)
	}
	for _, e := range data.SharedEmotes {
		out[e.Code] = bttvCDN(e.ID)
	}
	return out, nil
}

type FFZ struct {
	client  *http.Client
	baseURL string
}

func NewFFZ(client *http.Client, baseURL string) *FFZ {
	if baseURL == "" {
		baseURL = "https://api.frankerfacez.com"
	}
	return &FFZ{client: client, baseURL: baseURL}
}

type ffzSets struct {
	Sets map[string]struct {
		Emoticons []struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			Animated bool   `json:"animated"`
		} `json:"emoticons"`
	} `json:"sets"`
}

func (s ffzSets) table() map[string]string {
	out := make(map[string]string)
	for _, set := range s.Sets {
		for _, e := range set.Emoticons {
			id := strconv.Itoa(e.ID)
			if e.Animated {
				out[e.Name] = "https://cdn.frankerfacez.com/emote/" + id + "/animated/2.webp"
			} else {
				out[e.Name] = "https://cdn.frankerfacez.com/emote/" + id + "/2"
			}
		}
	}
	return out
}

func (f *FFZ) Name() string { return "ffz" }

// Global reads set 3, FFZ's main global set.
func (f *FFZ) Global(ctx context.Context) (map[string]string, error) {
	var data ffzSets
	if err := getJSON(ctx, f.client, f.baseURL+"/v1/set/3", &data); err != nil {
		return nil, err
	}
	return data.table(), nil
}

func (f *FFZ) Channel(ctx context.Context, twitchUserID string) (map[string]string, error) {
	var data ffzSets
	if err := getJSON(ctx, f.client, f.baseURL+"/v1/room/id/"+twitchUserID, &data); err != nil {
		return nil, err
	}
	return data.table(), nil
}
