package config

import (
	"errors"
	"fmt"
	"github.com/joho/godotenv"
	"os"
	"strconv"
	"strings"
)

// ApplyEnv loads the given dotenv files (missing files are skipped) and
// overlays the process environment on the loaded config. The overlay is kept
// in memory only, so secrets never reach config.json.
func (m *Manager) ApplyEnv(files ...string) error {
	for _, f := range files {
		if f == "" {
			continue
		}
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg == nil {
		return errors.New("no config loaded")
	}

	if err := applyEnv(m.cfg, os.LookupEnv); err != nil {
		return err
	}
	if err := m.validate(m.cfg); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return m.validateRequired(m.cfg)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"TWITCH_CHANNEL":              &cfg.Channel.Name,
		"TWITCH_SUPER_ADMIN_USERNAME": &cfg.Channel.SuperAdmin,
		"TWITCH_BOT_USERNAME":         &cfg.Bot.Username,
		"TWITCH_BOT_OAUTH_TOKEN":      &cfg.Bot.OAuth,
		"DEFAULT_BOT_NICKNAME":        &cfg.Bot.DefaultNickname,
		"TWITCH_CLIENT_ID":            &cfg.Twitch.ClientID,
		"TWITCH_SECRET":               &cfg.Twitch.ClientSecret,
		"BASE_URL":                    &cfg.App.BaseURL,
		"LOG_LEVEL":                   &cfg.App.LogLevel,
		"AUTH_TOKEN":                  &cfg.App.AuthToken,
		"STATE_DB_URL":                &cfg.Redis.URL,
		"STATE_DB_PASSWORD":           &cfg.Redis.Password,
		"YOUTUBE_API_KEY":             &cfg.YouTube.APIKey,
	}
	for name, dst := range str {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		cfg.App.Listen = ":" + strings.TrimPrefix(v, ":")
	}

	if v, ok := lookup("CHAT_HISTORY_LENGTH"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHAT_HISTORY_LENGTH: %w", err)
		}
		cfg.Channel.HistoryLength = n
	}

	return nil
}
