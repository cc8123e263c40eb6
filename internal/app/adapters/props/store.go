package props

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"multichat/internal/app/domain"
	dprops "multichat/internal/app/domain/props"
	"multichat/internal/app/infrastructure/storage"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"sync"
	"time"
)

var ErrStoreUnavailable = errors.New("property store unavailable")

var _ ports.PropertyStore = (*Store)(nil)

// Store keeps one channel's properties and its viewers' properties in redis.
// Keys: channels, channels/{c}/channel_props/{key}, channels/{c}/viewers,
// channels/{c}/viewers/{username}.
type Store struct {
	log     logger.Logger
	rdb     *storage.Redis
	channel string
	bc      ports.Broadcaster

	mu               sync.RWMutex
	channelListeners map[string][]ports.ChannelListener
	viewerListeners  map[string][]ports.ViewerListener
}

func New(log logger.Logger, rdb *storage.Redis, channel string, bc ports.Broadcaster) *Store {
	return &Store{
		log:              log,
		rdb:              rdb,
		channel:          channel,
		bc:               bc,
		channelListeners: make(map[string][]ports.ChannelListener),
		viewerListeners:  make(map[string][]ports.ViewerListener),
	}
}

func (s *Store) channelsKey() string {
	return s.rdb.Key("channels")
}

func (s *Store) channelPropKey(key string) string {
	return s.rdb.Key("channels", s.channel, "channel_props", key)
}

func (s *Store) viewersKey() string {
	return s.rdb.Key("channels", s.channel, "viewers")
}

func (s *Store) viewerKey(username string) string {
	return s.rdb.Key("channels", s.channel, "viewers", username)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Ping fails when redis cannot be reached.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

// EnsureChannel registers the channel in the global channel set.
func (s *Store) EnsureChannel(ctx context.Context) error {
	if err := s.rdb.Client().SAdd(ctx, s.channelsKey(), s.channel).Err(); err != nil {
		return storeErr("register channel", err)
	}
	return nil
}

func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	channels, err := s.rdb.Client().SMembers(ctx, s.channelsKey()).Result()
	if err != nil {
		return nil, storeErr("list channels", err)
	}
	return channels, nil
}

func (s *Store) AddChannelListener(key string, fn ports.ChannelListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channelListeners[key] = append(s.channelListeners[key], fn)
}

func (s *Store) AddViewerListener(key string, fn ports.ViewerListener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewerListeners[key] = append(s.viewerListeners[key], fn)
}

func (s *Store) channelListenersFor(key string) []ports.ChannelListener {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ports.ChannelListener(nil), s.channelListeners[key]...)
}

func (s *Store) viewerListenersFor(key string) []ports.ViewerListener {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ports.ViewerListener(nil), s.viewerListeners[key]...)
}

// GetChannelProp returns the stored value, or the default when the key is
// absent or cannot be decoded. On a redis error the default comes back
// together with the error.
func (s *Store) GetChannelProp(ctx context.Context, key string) (any, error) {
	raw, err := s.rdb.Client().Get(ctx, s.channelPropKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return dprops.ChannelDefault(key), nil
	}
	if err != nil {
		return dprops.ChannelDefault(key), storeErr("get channel prop "+key, err)
	}

	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("Undecodable channel prop, using default", slog.String("key", key), slog.String("error", err.Error()))
		return dprops.ChannelDefault(key), nil
	}
	return out, nil
}

// SetChannelProp writes value (nil deletes it), runs the key's listeners and
// then broadcasts the change.
func (s *Store) SetChannelProp(ctx context.Context, key string, value any) error {
	listeners := s.channelListenersFor(key)

	var oldValue any
	if len(listeners) > 0 {
		oldValue, _ = s.GetChannelProp(ctx, key)
	}

	if value == nil {
		if err := s.rdb.Client().Del(ctx, s.channelPropKey(key)).Err(); err != nil {
			return storeErr("delete channel prop "+key, err)
		}
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode channel prop %s: %w", key, err)
		}
		if err := s.rdb.Client().Set(ctx, s.channelPropKey(key), raw, 0).Err(); err != nil {
			return storeErr("set channel prop "+key, err)
		}
	}

	s.log.Debug("Channel prop written", slog.String("key", key), slog.Any("value", value))

	for _, fn := range listeners {
		fn(ctx, oldValue, value)
	}

	if s.bc != nil {
		s.bc.Broadcast(domain.EnvelopeChannelProp, map[string]any{
			"prop_name":  key,
			"prop_value": value,
		})
	}
	return nil
}

func (s *Store) ChannelBool(ctx context.Context, key string) (bool, error) {
	v, err := s.GetChannelProp(ctx, key)
	return dprops.AsBool(v), err
}

func (s *Store) ChannelInt64(ctx context.Context, key string) (int64, error) {
	v, err := s.GetChannelProp(ctx, key)
	return dprops.AsInt64(v), err
}

func (s *Store) ChannelString(ctx context.Context, key string) (string, error) {
	v, err := s.GetChannelProp(ctx, key)
	return dprops.AsString(v), err
}

func (s *Store) ChannelStrings(ctx context.Context, key string) ([]string, error) {
	v, err := s.GetChannelProp(ctx, key)
	return dprops.AsStrings(v), err
}

func (s *Store) ChannelMillis(ctx context.Context, key string) (time.Duration, error) {
	v, err := s.GetChannelProp(ctx, key)
	return dprops.AsMillis(v), err
}
