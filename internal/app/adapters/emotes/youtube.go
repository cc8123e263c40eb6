package emotes

import (
	"encoding/json"
	"fmt"
	"os"
)

type youtubeEmote struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// LoadYouTubeEmotes reads a JSON list of {id, code} where id is the image
// URL and code is the ":name:" form typed in chat.
func LoadYouTubeEmotes(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read youtube emotes: %w", err)
	}

	var emotes []youtubeEmote
	if err := json.Unmarshal(data, &emotes); err != nil {
		return nil, fmt.Errorf("parse youtube emotes: %w", err)
	}

	out := make(map[string]string, len(emotes))
	for _, e := range emotes {
		out[e.Code] = e.ID
	}
	return out, nil
}
