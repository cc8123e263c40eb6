package command

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Command
		wantOk bool
	}{
		{name: "help", text: "!help", want: Command{Name: Help}, wantOk: true},
		{name: "commands_alias", text: "!commands", want: Command{Name: Help}, wantOk: true},
		{name: "case_insensitive", text: "!BotPage", want: Command{Name: BotPage}, wantOk: true},
		{name: "nick_bare", text: "!nick", want: Command{Name: Nick}, wantOk: true},
		{name: "nick_arg", text: "!nick  Sparky ", want: Command{Name: Nick, Arg: "Sparky"}, wantOk: true},
		{name: "nick_arg_with_space", text: "!nick big cat", want: Command{Name: Nick, Arg: "big cat"}, wantOk: true},
		{name: "trailing_tag_rune", text: "!clear \U000E0000", want: Command{Name: Clear}, wantOk: true},
		{name: "zero_width_inside", text: "!mul\u200Btichat", want: Command{Name: MultiChat}, wantOk: true},
		{name: "clear_with_arg", text: "!clear now", wantOk: false},
		{name: "unknown", text: "!sr song", wantOk: false},
		{name: "plain_text", text: "hello !help", wantOk: false},
		{name: "empty", text: "", wantOk: false},
		{name: "nickname_prefix_only", text: "!nickname x", wantOk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHasAnyPrefix(t *testing.T) {
	prefixes := []string{"!sr", "!test"}

	assert.True(t, HasAnyPrefix("!sr never gonna", prefixes))
	assert.True(t, HasAnyPrefix("\u200B!test", prefixes))
	assert.False(t, HasAnyPrefix("hi !sr", prefixes))
	assert.False(t, HasAnyPrefix("!sr", nil))
	assert.False(t, HasAnyPrefix("anything", []string{""}))
}

func TestStripInvisible(t *testing.T) {
	assert.Equal(t, "abc", StripInvisible("a\u200Bb\uFEFFc"))
	assert.Equal(t, "tab\tok", StripInvisible("tab\tok"))
	assert.Equal(t, "plain", StripInvisible("plain"))
}
