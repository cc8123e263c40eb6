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
	"sort"
)

func (s *Store) GetViewerProp(ctx context.Context, username, key string) (any, error) {
	raw, err := s.rdb.Client().HGet(ctx, s.viewerKey(username), key).Result()
	if errors.Is(err, redis.Nil) {
		return dprops.ViewerDefault(key), nil
	}
	if err != nil {
		return dprops.ViewerDefault(key), storeErr("get viewer prop "+key, err)
	}

	var out any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn("Undecodable viewer prop, using default", slog.String("username", username), slog.String("key", key))
		return dprops.ViewerDefault(key), nil
	}
	return out, nil
}

// ViewerString reports the string value and whether it is set at all.
func (s *Store) ViewerString(ctx context.Context, username, key string) (string, bool, error) {
	v, err := s.GetViewerProp(ctx, username, key)
	if v == nil {
		return "", false, err
	}
	return dprops.AsString(v), true, err
}

// SetViewerProp adds the viewer to the channel's viewer set together with the
// value, or deletes the value and drops the viewer from the set once its last
// property is gone.
func (s *Store) SetViewerProp(ctx context.Context, username, key string, value any) error {
	listeners := s.viewerListenersFor(key)

	var oldValue any
	if len(listeners) > 0 {
		oldValue, _ = s.GetViewerProp(ctx, username, key)
	}

	rdb := s.rdb.Client()
	if value == nil {
		if err := rdb.HDel(ctx, s.viewerKey(username), key).Err(); err != nil {
			return storeErr("delete viewer prop "+key, err)
		}
		left, err := rdb.HLen(ctx, s.viewerKey(username)).Result()
		if err != nil {
			return storeErr("count viewer props", err)
		}
		if left == 0 {
			if err := rdb.SRem(ctx, s.viewersKey(), username).Err(); err != nil {
				return storeErr("remove viewer", err)
			}
		}
	} else {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode viewer prop %s: %w", key, err)
		}
		_, err = rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, s.viewersKey(), username)
			pipe.HSet(ctx, s.viewerKey(username), key, string(raw))
			return nil
		})
		if err != nil {
			return storeErr("set viewer prop "+key, err)
		}
	}

	s.log.Debug("Viewer prop written", slog.String("username", username), slog.String("key", key), slog.Any("value", value))

	for _, fn := range listeners {
		fn(ctx, username, oldValue, value)
	}

	if s.bc != nil {
		s.bc.Broadcast(domain.EnvelopeViewerProp, map[string]any{
			"username":   username,
			"prop_name":  key,
			"prop_value": value,
		})
	}
	return nil
}

// DeleteViewer drops every property of the viewer. Listeners see each
// removed property going to nil.
func (s *Store) DeleteViewer(ctx context.Context, username string) error {
	current, err := s.AllViewerProps(ctx, username)
	if err != nil {
		return err
	}

	_, err = s.rdb.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, s.viewersKey(), username)
		pipe.Del(ctx, s.viewerKey(username))
		return nil
	})
	if err != nil {
		return storeErr("delete viewer", err)
	}

	for key, oldValue := range current {
		for _, fn := range s.viewerListenersFor(key) {
			fn(ctx, username, oldValue, nil)
		}
	}

	if s.bc != nil {
		s.bc.Broadcast(domain.EnvelopeDeleteViewer, map[string]any{"username": username})
	}
	return nil
}

func (s *Store) AllViewerProps(ctx context.Context, username string) (map[string]any, error) {
	hash, err := s.rdb.Client().HGetAll(ctx, s.viewerKey(username)).Result()
	if err != nil {
		return nil, storeErr("get viewer props", err)
	}
	return decodeHash(hash), nil
}

func (s *Store) ListViewers(ctx context.Context) ([]string, error) {
	viewers, err := s.rdb.Client().SMembers(ctx, s.viewersKey()).Result()
	if err != nil {
		return nil, storeErr("list viewers", err)
	}
	sort.Strings(viewers)
	return viewers, nil
}

// AllViewers returns username -> properties for every viewer in the set.
func (s *Store) AllViewers(ctx context.Context) (map[string]map[string]any, error) {
	viewers, err := s.ListViewers(ctx)
	if err != nil {
		return nil, err
	}

	cmds := make(map[string]*redis.MapStringStringCmd, len(viewers))
	_, err = s.rdb.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, v := range viewers {
			cmds[v] = pipe.HGetAll(ctx, s.viewerKey(v))
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("get all viewers", err)
	}

	out := make(map[string]map[string]any, len(cmds))
	for v, cmd := range cmds {
		out[v] = decodeHash(cmd.Val())
	}
	return out, nil
}

func decodeHash(hash map[string]string) map[string]any {
	out := make(map[string]any, len(hash))
	for k, raw := range hash {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		out[k] = v
	}
	return out
}
