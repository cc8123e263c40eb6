package multichat

import (
	"context"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"multichat/internal/app/adapters/broadcast"
	"multichat/internal/app/adapters/props"
	"multichat/internal/app/domain"
	dprops "multichat/internal/app/domain/props"
	"multichat/internal/app/infrastructure/storage"
	"multichat/pkg/logger"
	"testing"
)

type staticEmotes map[string][]string

func (s staticEmotes) Resolve(string) map[string][]string {
	out := make(map[string][]string, len(s))
	for k, v := range s {
		out[k] = append([]string(nil), v...)
	}
	return out
}

type staticPronouns string

func (s staticPronouns) Resolve(string) string { return string(s) }

func TestMultiChat_SendChatEnriches(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := storage.NewRedis(mr.Addr(), "", "multibot:")
	require.NoError(t, err)
	defer rdb.Close()

	hub := broadcast.New(logger.NewDiscard(), "c", 100, 0)
	store := props.New(logger.NewDiscard(), rdb, "c", hub)
	require.NoError(t, store.SetViewerProp(context.Background(), "alice", dprops.Nickname, "Al"))

	emotes := staticEmotes{
		"https://cdn.betterttv.net/emote/x/3x.webp": {"4-8"},
		"25": {"0-2"},
	}
	mc := New(logger.NewDiscard(), "c", store, emotes, staticPronouns("She/Her"), hub)

	mc.SendChat(context.Background(), domain.ChatMessage{
		Source:   domain.SourceTwitch,
		Username: "alice",
		Text:     "hey KEKW",
		Emotes:   map[string][]string{"25": {"0-2"}},
	})
	mc.SendChat(context.Background(), domain.ChatMessage{Source: domain.SourceYouTube, Username: "bob", Text: "hi"})

	history := hub.History()
	require.Len(t, history, 2)

	assert.Equal(t, "Al", history[0].Nickname)
	assert.Equal(t, "She/Her", history[0].Pronouns)
	assert.Equal(t, []string{"0-2"}, history[0].Emotes["25"])
	assert.Equal(t, []string{"4-8"}, history[0].Emotes["https://cdn.betterttv.net/emote/x/3x.webp"])

	assert.Empty(t, history[1].Nickname)
}
