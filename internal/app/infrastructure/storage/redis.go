package storage

import (
	"context"
	"fmt"
	"github.com/redis/go-redis/v9"
	"strings"
)

// Redis is a namespaced go-redis client. Every key built with Key carries the
// namespace so several deployments can share one database.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis accepts either a redis:// URL or a bare host:port address.
func NewRedis(rawURL, password, namespace string) (*Redis, error) {
	var opts *redis.Options
	if strings.Contains(rawURL, "://") {
		var err error
		opts, err = redis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
	} else {
		opts = &redis.Options{Addr: rawURL}
	}

	if password != "" {
		opts.Password = password
	}

	return NewRedisFromClient(redis.NewClient(opts), namespace), nil
}

func NewRedisFromClient(client *redis.Client, namespace string) *Redis {
	return &Redis{
		client:    client,
		namespace: namespace,
	}
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

// Key joins parts with "/" under the namespace: Key("channels", "c") == "multibot:channels/c".
func (r *Redis) Key(parts ...string) string {
	return r.namespace + strings.Join(parts, "/")
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
