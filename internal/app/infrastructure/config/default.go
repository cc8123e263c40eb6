package config

import "time"

const (
	DefaultNamespace       = "multibot:"
	DefaultBotNickname     = "🤖"
	DefaultHistoryLength   = 100
	DefaultKickPusherURL   = "wss://ws-us2.pusher.com/app/32cbd69e4b950bf97679?protocol=7&client=js&version=8.4.0-rc2&flash=false"
	DefaultYouTubeEmotesFn = "yt.json"
)

func (m *Manager) GetDefault() *Config {
	return &Config{
		App: App{
			LogLevel: "info",
			LogFile:  "logs/main.log",
			GinMode:  "release",
			Listen:   ":80",
		},
		Channel: Channel{
			HistoryLength: DefaultHistoryLength,
		},
		Bot: Bot{
			DefaultNickname: DefaultBotNickname,
		},
		Redis: Redis{
			URL:       "redis://localhost:6379/0",
			Namespace: DefaultNamespace,
		},
		YouTube: YouTube{
			EmotesFile: DefaultYouTubeEmotesFn,
		},
		Owncast: Owncast{
			TLS: true,
		},
		Kick: Kick{
			PusherURL: DefaultKickPusherURL,
		},
		Timings: DefaultTimings(),
	}
}

func DefaultTimings() Timings {
	return Timings{
		ReconnectSweep:    time.Minute,
		MaxMessageAge:     10 * time.Second,
		AnnounceDelay:     500 * time.Millisecond,
		GreetzCommandWait: 2 * time.Second,
		EmoteStartupDelay: 2 * time.Minute,
		EmoteCacheTime:    time.Hour,
		EmoteRetryTime:    30 * time.Second,
		PronounCacheTime:  24 * time.Hour,
		PronounRetryTime:  30 * time.Second,
		EnabledCooldown:   5 * time.Second,
	}
}
