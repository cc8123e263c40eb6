package config

import "time"

type Config struct {
	App     App     `json:"app"`
	Channel Channel `json:"channel"`
	Bot     Bot     `json:"bot"`
	Twitch  Twitch  `json:"twitch"`
	Redis   Redis   `json:"redis"`
	YouTube YouTube `json:"youtube"`
	Owncast Owncast `json:"owncast"`
	Kick    Kick    `json:"kick"`
	Timings Timings `json:"timings"`
	Proxy   *Proxy  `json:"proxy"`
}

type App struct {
	LogLevel  string `json:"log_level"`
	LogFile   string `json:"log_file"`
	GinMode   string `json:"gin_mode"`
	Listen    string `json:"listen"`
	AuthToken string `json:"auth_token"`
	BaseURL   string `json:"base_url"`
}

type Channel struct {
	Name          string `json:"name"`
	SuperAdmin    string `json:"super_admin"`
	HistoryLength int    `json:"history_length"`
}

type Bot struct {
	Username        string `json:"username"`
	OAuth           string `json:"oauth"`
	DefaultNickname string `json:"default_nickname"`
}

type Twitch struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type Redis struct {
	URL       string `json:"url"`
	Password  string `json:"password"`
	Namespace string `json:"namespace"`
}

type YouTube struct {
	APIKey     string `json:"api_key"`
	EmotesFile string `json:"emotes_file"`
}

type Owncast struct {
	TLS bool `json:"tls"`
}

type Kick struct {
	PusherURL string `json:"pusher_url"`
}

// Timings holds every interval of the engine. Values are nanoseconds in JSON.
type Timings struct {
	ReconnectSweep    time.Duration `json:"reconnect_sweep"`
	MaxMessageAge     time.Duration `json:"max_message_age"`
	AnnounceDelay     time.Duration `json:"announce_delay"`
	GreetzCommandWait time.Duration `json:"greetz_command_wait"`
	EmoteStartupDelay time.Duration `json:"emote_startup_delay"`
	EmoteCacheTime    time.Duration `json:"emote_cache_time"`
	EmoteRetryTime    time.Duration `json:"emote_retry_time"`
	PronounCacheTime  time.Duration `json:"pronoun_cache_time"`
	PronounRetryTime  time.Duration `json:"pronoun_retry_time"`
	EnabledCooldown   time.Duration `json:"enabled_cooldown"`
}

type Proxy struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}
