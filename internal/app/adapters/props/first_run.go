package props

import (
	"context"
	"log/slog"
	dprops "multichat/internal/app/domain/props"
)

// EnsureFirstRun wipes leftover viewer data and channel props, seeds the bot
// nickname and marks the channel initialized. It reports whether it ran.
func (s *Store) EnsureFirstRun(ctx context.Context, botUsername, botNickname string) (bool, error) {
	done, err := s.ChannelBool(ctx, dprops.DidFirstRun)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	s.log.Info("First run, clearing viewer data and channel props", slog.String("channel", s.channel))

	if err := s.ClearChannel(ctx); err != nil {
		return false, err
	}
	if botUsername != "" && botNickname != "" {
		if err := s.SetViewerProp(ctx, botUsername, dprops.Nickname, botNickname); err != nil {
			return false, err
		}
	}
	if err := s.SetChannelProp(ctx, dprops.DidFirstRun, true); err != nil {
		return false, err
	}
	return true, nil
}

// ClearChannel deletes every viewer hash, the viewer set and all known
// channel props. Listeners are not notified.
func (s *Store) ClearChannel(ctx context.Context) error {
	rdb := s.rdb.Client()

	viewers, err := rdb.SMembers(ctx, s.viewersKey()).Result()
	if err != nil {
		return storeErr("list viewers", err)
	}

	keys := make([]string, 0, len(viewers)+len(dprops.ChannelKeys())+1)
	for _, v := range viewers {
		keys = append(keys, s.viewerKey(v))
	}
	keys = append(keys, s.viewersKey())
	for _, k := range dprops.ChannelKeys() {
		keys = append(keys, s.channelPropKey(k))
	}

	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		return storeErr("clear channel", err)
	}
	return nil
}
