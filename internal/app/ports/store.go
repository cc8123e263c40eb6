package ports

import (
	"context"
	"time"
)

type ChannelListener func(ctx context.Context, oldValue, newValue any)

type ViewerListener func(ctx context.Context, username string, oldValue, newValue any)

type PropertyStore interface {
	GetChannelProp(ctx context.Context, key string) (any, error)
	SetChannelProp(ctx context.Context, key string, value any) error
	ChannelBool(ctx context.Context, key string) (bool, error)
	ChannelInt64(ctx context.Context, key string) (int64, error)
	ChannelString(ctx context.Context, key string) (string, error)
	ChannelStrings(ctx context.Context, key string) ([]string, error)
	ChannelMillis(ctx context.Context, key string) (time.Duration, error)

	GetViewerProp(ctx context.Context, username, key string) (any, error)
	ViewerString(ctx context.Context, username, key string) (string, bool, error)
	SetViewerProp(ctx context.Context, username, key string, value any) error
	DeleteViewer(ctx context.Context, username string) error
	ListViewers(ctx context.Context) ([]string, error)
	AllViewers(ctx context.Context) (map[string]map[string]any, error)

	AddChannelListener(key string, fn ChannelListener)
	AddViewerListener(key string, fn ViewerListener)
}
