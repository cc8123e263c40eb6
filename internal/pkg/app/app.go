package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/proxy"
	"log/slog"
	"multichat/internal/app/adapters/broadcast"
	"multichat/internal/app/adapters/emotes"
	router "multichat/internal/app/adapters/http"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/adapters/multichat"
	"multichat/internal/app/adapters/platform/kick"
	"multichat/internal/app/adapters/platform/owncast"
	"multichat/internal/app/adapters/platform/twitch/api"
	"multichat/internal/app/adapters/platform/twitch/irc"
	"multichat/internal/app/adapters/platform/youtube"
	"multichat/internal/app/adapters/pronouns"
	"multichat/internal/app/adapters/props"
	"multichat/internal/app/adapters/source"
	"multichat/internal/app/engine"
	"multichat/internal/app/infrastructure/config"
	"multichat/internal/app/infrastructure/storage"
	"multichat/internal/app/infrastructure/timers"
	"multichat/pkg/logger"
	"net"
	"net/http"
	"os"
	"time"
)

type Options struct {
	ConfigPath string
	EnvFiles   []string
}

// Run wires one channel's engine and HTTP surface and blocks until ctx is
// cancelled or the server fails.
func Run(ctx context.Context, opts Options) error {
	manager, err := config.New(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := manager.ApplyEnv(opts.EnvFiles...); err != nil {
		return fmt.Errorf("apply env: %w", err)
	}
	cfg := manager.Get()

	log := logger.New(logger.Options{
		Level:  cfg.App.LogLevel,
		File:   cfg.App.LogFile,
		Stdout: os.Stdout,
	})

	client, wsDialer, err := newTransports(cfg.Proxy)
	if err != nil {
		return err
	}

	prometheus.MustRegister(metrics.MessageProcessingTime)

	rdb, err := storage.NewRedis(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.Namespace)
	if err != nil {
		return err
	}
	defer rdb.Close()

	channel := cfg.Channel.Name
	chLog := logger.NewPrefixedLogger(log, channel)

	hub := broadcast.New(logger.NewPrefixedLogger(chLog, "broadcast"), channel, cfg.Channel.HistoryLength, broadcast.DefaultBufferSize)
	store := props.New(logger.NewPrefixedLogger(chLog, "props"), rdb, channel, hub)

	helix := api.NewTwitch(logger.NewPrefixedLogger(log, "helix"), api.Options{
		ClientID:     cfg.Twitch.ClientID,
		ClientSecret: cfg.Twitch.ClientSecret,
	}, client)

	emoteResolver := emotes.NewResolver(logger.NewPrefixedLogger(chLog, "emotes"), emotes.Options{
		Channel:   channel,
		TTL:       cfg.Timings.EmoteCacheTime,
		RetryTime: cfg.Timings.EmoteRetryTime,
	}, helix,
		emotes.NewBTTV(client, ""),
		emotes.NewSevenTV(client, ""),
		emotes.NewFFZ(client, ""),
	)
	if err := emoteResolver.LoadYouTube(cfg.YouTube.EmotesFile); err != nil {
		log.Warn("YouTube emotes not loaded", slog.String("path", cfg.YouTube.EmotesFile), slog.String("error", err.Error()))
	}

	pronounResolver := pronouns.New(logger.NewPrefixedLogger(chLog, "pronouns"), pronouns.Options{
		Channel:   channel,
		TTL:       cfg.Timings.PronounCacheTime,
		RetryTime: cfg.Timings.PronounRetryTime,
	}, client, hub, hub)

	chat := multichat.New(chLog, channel, store, emoteResolver, pronounResolver, hub)

	twitchIRC := irc.New(logger.NewPrefixedLogger(chLog, "twitch"), irc.Options{
		Channel:  channel,
		Username: cfg.Bot.Username,
		OAuth:    cfg.Bot.OAuth,
	})
	twitchIRC.SetSender(chat)

	dialers := []source.Dialer{twitchIRC}
	if cfg.YouTube.APIKey != "" {
		yt, err := youtube.New(ctx, logger.NewPrefixedLogger(chLog, "youtube"), store, youtube.Options{APIKey: cfg.YouTube.APIKey}, client)
		if err != nil {
			return err
		}
		dialers = append(dialers, yt)
	} else {
		log.Warn("YOUTUBE_API_KEY is not set, youtube chat is disabled")
	}
	dialers = append(dialers,
		owncast.New(logger.NewPrefixedLogger(chLog, "owncast"), store, owncast.Options{
			DisplayName: cfg.Bot.DefaultNickname,
			Insecure:    !cfg.Owncast.TLS,
		}, client, wsDialer),
		kick.New(logger.NewPrefixedLogger(chLog, "kick"), store, cfg.Kick.PusherURL, wsDialer),
	)

	wheel := timers.NewTimingWheel(time.Second, 60)
	defer wheel.Stop()

	eng := engine.New(chLog, engine.Options{
		Channel:     channel,
		BotUsername: cfg.Bot.Username,
		BotNickname: cfg.Bot.DefaultNickname,
		SuperAdmin:  cfg.Channel.SuperAdmin,
		BaseURL:     cfg.App.BaseURL,
		Timings:     cfg.Timings,
	}, engine.Deps{
		Store:    store,
		Hub:      hub,
		Chat:     chat,
		Sayer:    twitchIRC,
		Dialers:  dialers,
		Emotes:   emoteResolver,
		Pronouns: pronounResolver,
		Timers:   wheel,
	})

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		eng.Stop(stopCtx)
	}()

	r := router.NewRouter(log, manager, store, hub, eng)

	log.Info("Multichat started", slog.String("channel", channel), slog.String("listen", cfg.App.Listen))
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// newTransports builds the outbound HTTP client and websocket dialer, both
// routed through the configured SOCKS5 proxy when there is one.
func newTransports(p *config.Proxy) (*http.Client, *websocket.Dialer, error) {
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: http.DefaultTransport,
	}
	wsDialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}

	if p == nil || p.Address == "" || p.Port == 0 {
		return client, wsDialer, nil
	}

	dialer, err := proxy.SOCKS5("tcp", fmt.Sprintf("%s:%d", p.Address, p.Port), nil, proxy.Direct)
	if err != nil {
		return nil, nil, fmt.Errorf("socks5 proxy: %w", err)
	}
	dialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, network, addr)
		}
		return dialer.Dial(network, addr)
	}

	client.Transport = &http.Transport{DialContext: dialContext}
	wsDialer.Proxy = nil
	wsDialer.NetDialContext = dialContext
	return client, wsDialer, nil
}
