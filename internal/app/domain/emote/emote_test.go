package emote

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestFind(t *testing.T) {
	words := map[string]string{
		"catJAM": "https://cdn/catjam",
		"KEKW":   "https://cdn/kekw",
	}
	colon := map[string]string{
		":yt-wave:": "https://yt/wave",
	}

	tests := []struct {
		name string
		text string
		want map[string][]string
	}{
		{
			name: "single_word",
			text: "catJAM",
			want: map[string][]string{"https://cdn/catjam": {"0-5"}},
		},
		{
			name: "repeated_word",
			text: "KEKW hi KEKW",
			want: map[string][]string{"https://cdn/kekw": {"0-3", "8-11"}},
		},
		{
			name: "double_spaces",
			text: "hi  KEKW",
			want: map[string][]string{"https://cdn/kekw": {"4-7"}},
		},
		{
			name: "substring_is_not_token",
			text: "KEKWW",
			want: map[string][]string{},
		},
		{
			name: "colon_without_spaces",
			text: "hey:yt-wave:there",
			want: map[string][]string{"https://yt/wave": {"3-11"}},
		},
		{
			name: "colon_as_token_not_duplicated",
			text: ":yt-wave:",
			want: map[string][]string{"https://yt/wave": {"0-8"}},
		},
		{
			name: "rune_offsets",
			text: "héllo KEKW",
			want: map[string][]string{"https://cdn/kekw": {"6-9"}},
		},
		{
			name: "empty",
			text: "",
			want: map[string][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Find(tt.text, words, colon))
		})
	}
}

func TestFind_NoTables(t *testing.T) {
	assert.Empty(t, Find("KEKW :wave:", nil, nil))
}

func TestMerge(t *testing.T) {
	dst := map[string][]string{"25": {"0-4"}}
	got := Merge(dst, map[string][]string{"25": {"0-4", "6-10"}, "u": {"1-2"}})

	assert.Equal(t, []string{"0-4", "6-10"}, got["25"])
	assert.Equal(t, []string{"1-2"}, got["u"])
	assert.NotNil(t, Merge(nil, nil))
}
