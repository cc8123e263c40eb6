package commands

import (
	"context"
	"fmt"
	goaway "github.com/TwiN/go-away"
	"log/slog"
	"multichat/internal/app/adapters/metrics"
	"multichat/internal/app/domain"
	"multichat/internal/app/domain/command"
	"multichat/internal/app/domain/props"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"strings"
	"time"
	"unicode/utf8"
)

type Options struct {
	Channel     string
	BaseURL     string
	SuperAdmin  string
	StartedAt   time.Time
}

// Dispatcher answers chat commands typed in the Twitch channel and relays
// selected YouTube commands there.
type Dispatcher struct {
	log     logger.Logger
	store   ports.PropertyStore
	say     ports.ChatSayer
	history ports.HistoryPort
	opts    Options
	stats   func() (cpuPercent float64, memMB uint64)
}

func New(log logger.Logger, store ports.PropertyStore, say ports.ChatSayer, history ports.HistoryPort, opts Options) *Dispatcher {
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}

	return &Dispatcher{
		log:     log,
		store:   store,
		say:     say,
		history: history,
		opts:    opts,
		stats:   processStats,
	}
}

// Handle runs the command in msg, if any.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.InboundMessage) command.Result {
	cmd, ok := command.Parse(msg.Text)
	if !ok {
		return command.Result{}
	}

	username := msg.Chatter.Username
	res := command.Result{Valid: true, ShouldReply: true}

	switch cmd.Name {
	case command.Help:
		d.say.Say("commands: !nick - set your nickname; !botpage - link to the page with nicknames and other info; !multichat - link to combined chat; !clear - clear the multichat")
	case command.BotPage:
		d.say.Say(fmt.Sprintf("see the nicknames and other bot info at %s/%s", d.opts.BaseURL, d.opts.Channel))
	case command.MultiChat:
		d.say.Say(fmt.Sprintf("see the multichat at %s/%s/chat (change font and show/hide options on !botpage)", d.opts.BaseURL, d.opts.Channel))
	case command.Clear:
		if !d.privileged(msg.Chatter) {
			d.say.Say(fmt.Sprintf("@%s you do not have permission to clear chat", username))
			break
		}
		d.history.Clear()
		res.ShouldReply = false
	case command.Nick:
		if cmd.Arg == "" {
			d.removeNickname(ctx, username)
		} else {
			d.setNickname(ctx, username, cmd.Arg)
		}
	case command.Ping:
		if !msg.Chatter.IsMod && !msg.Chatter.IsBroadcaster {
			return command.Result{}
		}
		d.say.Say(d.pingReply())
	}

	metrics.Commands.WithLabelValues(d.opts.Channel, string(cmd.Name)).Inc()
	d.log.Info("Handled command", slog.String("command", string(cmd.Name)), slog.String("username", username))
	return res
}

func (d *Dispatcher) privileged(c domain.Chatter) bool {
	if c.IsMod || c.IsBroadcaster {
		return true
	}
	if d.opts.SuperAdmin == "" {
		return false
	}
	return strings.EqualFold(c.Username, d.opts.SuperAdmin) || strings.EqualFold(c.Login, d.opts.SuperAdmin)
}

func (d *Dispatcher) removeNickname(ctx context.Context, username string) {
	_, set, err := d.store.ViewerString(ctx, username, props.Nickname)
	if err != nil {
		d.log.Error("Failed to read nickname", err, slog.String("username", username))
		return
	}
	if !set {
		d.say.Say(fmt.Sprintf("@%s please provide a nickname, e.g. !nick name", username))
		return
	}

	if err := d.store.SetViewerProp(ctx, username, props.Nickname, nil); err != nil {
		d.log.Error("Failed to remove nickname", err, slog.String("username", username))
		return
	}
	d.say.Say(fmt.Sprintf("@%s removed nickname, sad to see you go", username))
}

func (d *Dispatcher) setNickname(ctx context.Context, username, nickname string) {
	maxLen, err := d.store.ChannelInt64(ctx, props.MaxNicknameLength)
	if err != nil {
		d.log.Error("Failed to read max nickname length", err)
	}

	current, set, err := d.store.ViewerString(ctx, username, props.Nickname)
	if err != nil {
		d.log.Error("Failed to read nickname", err, slog.String("username", username))
		return
	}

	switch {
	case goaway.IsProfane(nickname):
		d.say.Say(fmt.Sprintf("@%s no profanity allowed in nickname, choose a different one", username))
	case set && current == nickname:
		d.say.Say(fmt.Sprintf("@%s you already have that nickname", username))
	case int64(utf8.RuneCountInString(nickname)) > maxLen:
		d.say.Say(fmt.Sprintf("@%s nickname %q is too long, max length = %d", username, nickname, maxLen))
	default:
		taken, err := d.nicknameTaken(ctx, username, nickname)
		if err != nil {
			d.log.Error("Failed to list viewers", err)
			return
		}
		if taken {
			d.say.Say(fmt.Sprintf("@%s nickname %q is already taken, see !botpage for the list", username, nickname))
			return
		}

		if err := d.store.SetViewerProp(ctx, username, props.Nickname, nickname); err != nil {
			d.log.Error("Failed to set nickname", err, slog.String("username", username))
			return
		}
		d.say.Say(fmt.Sprintf("@%s set nickname to %s", username, nickname))
	}
}

func (d *Dispatcher) nicknameTaken(ctx context.Context, username, nickname string) (bool, error) {
	viewers, err := d.store.AllViewers(ctx)
	if err != nil {
		return false, err
	}

	for viewer, vprops := range viewers {
		if viewer == username {
			continue
		}
		if props.AsString(vprops[props.Nickname]) == nickname {
			return true, nil
		}
	}
	return false, nil
}

// Forward relays a YouTube message to the Twitch channel when it starts with
// one of the fwd_cmds_yt_twitch prefixes. Profanity is censored.
func (d *Dispatcher) Forward(ctx context.Context, msg domain.InboundMessage) bool {
	prefixes, err := d.store.ChannelStrings(ctx, props.FwdCmdsYTTwitch)
	if err != nil {
		d.log.Error("Failed to read forwarded commands", err)
	}
	if !command.HasAnyPrefix(msg.Text, prefixes) {
		return false
	}

	text := goaway.Censor(command.Normalize(msg.Text))
	d.log.Info("Forwarding command", slog.String("source", string(msg.Source)), slog.String("text", text))
	d.say.Say(text)
	return true
}
