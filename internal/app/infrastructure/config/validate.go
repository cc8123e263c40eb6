package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// validate checks what the file alone must satisfy and fills zero values
// with defaults. Identity fields may still arrive from the environment.
func (m *Manager) validate(cfg *Config) error {
	// app
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.App.LogLevel != "" && !validLevels[cfg.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of trace, debug, info, warn, error; got %s", cfg.App.LogLevel)
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if cfg.App.GinMode != "" && !validModes[cfg.App.GinMode] {
		return fmt.Errorf("app.gin_mode must be one of debug, release, test; got %s", cfg.App.GinMode)
	}
	if cfg.App.Listen == "" {
		cfg.App.Listen = ":80"
	}
	cfg.App.BaseURL = strings.TrimRight(cfg.App.BaseURL, "/")

	// channel
	if cfg.Channel.HistoryLength < 0 {
		return errors.New("channel.history_length must be positive")
	}
	if cfg.Channel.HistoryLength == 0 {
		cfg.Channel.HistoryLength = DefaultHistoryLength
	}
	cfg.Channel.Name = strings.ToLower(strings.TrimPrefix(cfg.Channel.Name, "#"))

	// bot
	if cfg.Bot.DefaultNickname == "" {
		cfg.Bot.DefaultNickname = DefaultBotNickname
	}

	// redis
	if cfg.Redis.Namespace == "" {
		cfg.Redis.Namespace = DefaultNamespace
	}

	// youtube
	if cfg.YouTube.EmotesFile == "" {
		cfg.YouTube.EmotesFile = DefaultYouTubeEmotesFn
	}

	// kick
	if cfg.Kick.PusherURL == "" {
		cfg.Kick.PusherURL = DefaultKickPusherURL
	}

	// timings
	def := DefaultTimings()
	fill := []struct {
		name string
		val  *time.Duration
		def  time.Duration
	}{
		{"reconnect_sweep", &cfg.Timings.ReconnectSweep, def.ReconnectSweep},
		{"max_message_age", &cfg.Timings.MaxMessageAge, def.MaxMessageAge},
		{"announce_delay", &cfg.Timings.AnnounceDelay, def.AnnounceDelay},
		{"greetz_command_wait", &cfg.Timings.GreetzCommandWait, def.GreetzCommandWait},
		{"emote_startup_delay", &cfg.Timings.EmoteStartupDelay, def.EmoteStartupDelay},
		{"emote_cache_time", &cfg.Timings.EmoteCacheTime, def.EmoteCacheTime},
		{"emote_retry_time", &cfg.Timings.EmoteRetryTime, def.EmoteRetryTime},
		{"pronoun_cache_time", &cfg.Timings.PronounCacheTime, def.PronounCacheTime},
		{"pronoun_retry_time", &cfg.Timings.PronounRetryTime, def.PronounRetryTime},
		{"enabled_cooldown", &cfg.Timings.EnabledCooldown, def.EnabledCooldown},
	}
	for _, f := range fill {
		if *f.val < 0 {
			return fmt.Errorf("timings.%s must not be negative", f.name)
		}
		if *f.val == 0 {
			*f.val = f.def
		}
	}

	// proxy
	if cfg.Proxy != nil && cfg.Proxy.Address != "" && (cfg.Proxy.Port <= 0 || cfg.Proxy.Port > 65535) {
		return errors.New("proxy.port must be in range [1,65535]")
	}

	return nil
}

// validateRequired runs once the environment has been applied.
func (m *Manager) validateRequired(cfg *Config) error {
	if cfg.Channel.Name == "" {
		return errors.New("channel.name is required")
	}
	if cfg.Bot.Username == "" {
		return errors.New("bot.username is required")
	}
	if cfg.Bot.OAuth == "" {
		return errors.New("bot.oauth is required")
	}
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	return nil
}
