package props

import "time"

// Channel property keys.
const (
	Enabled           = "enabled"
	DidFirstRun       = "did_first_run"
	FwdCmdsYTTwitch   = "fwd_cmds_yt_twitch"
	MaxNicknameLength = "max_nickname_length"
	GreetzThreshold   = "greetz_threshold"
	GreetzWBThreshold = "greetz_wb_threshold"
	YouTubeID         = "youtube_id"
	OwncastURL        = "owncast_url"
	KickUsername      = "kick_username"
	KickChatroomID    = "kick_chatroom_id"
	ShowUsernames     = "show_usernames"
	ShowNicknames     = "show_nicknames"
	ShowPronouns      = "show_pronouns"
	TextShadow        = "text_shadow"
	Font              = "font"
)

// Viewer property keys.
const (
	Nickname     = "nickname"
	CustomGreetz = "custom_greetz"
)

var channelDefaults = map[string]any{
	Enabled:           true,
	DidFirstRun:       false,
	FwdCmdsYTTwitch:   []any{"!sr", "!test"},
	MaxNicknameLength: float64(20),
	GreetzThreshold:   float64((5 * time.Hour).Milliseconds()),
	GreetzWBThreshold: float64((45 * time.Minute).Milliseconds()),
	YouTubeID:         "",
	OwncastURL:        "",
	KickUsername:      "",
	KickChatroomID:    "",
	ShowUsernames:     true,
	ShowNicknames:     true,
	ShowPronouns:      true,
	TextShadow:        "1px 1px 2px black",
	Font:              `"Cabin", "Segoe UI", "Helvetica Neue", Helvetica, Arial, sans-serif`,
}

var viewerDefaults = map[string]any{
	Nickname:     nil,
	CustomGreetz: nil,
}

// ChannelDefault returns the default for key in the same shape a JSON decode
// of the stored value would produce (numbers are float64, lists are []any).
func ChannelDefault(key string) any {
	v := channelDefaults[key]
	if list, ok := v.([]any); ok {
		return append([]any(nil), list...)
	}
	return v
}

func ChannelKeys() []string {
	keys := make([]string, 0, len(channelDefaults))
	for k := range channelDefaults {
		keys = append(keys, k)
	}
	return keys
}

func IsChannelKey(key string) bool {
	_, ok := channelDefaults[key]
	return ok
}

func ViewerDefault(key string) any {
	return viewerDefaults[key]
}

func IsViewerKey(key string) bool {
	_, ok := viewerDefaults[key]
	return ok
}

// LinkageKeys maps each platform linkage property to the adapter it configures.
var LinkageKeys = map[string]string{
	YouTubeID:      "youtube",
	OwncastURL:     "owncast",
	KickChatroomID: "kick",
}
