package command

import "strings"

type Name string

const (
	Help      Name = "help"
	BotPage   Name = "botpage"
	MultiChat Name = "multichat"
	Clear     Name = "clear"
	Nick      Name = "nick"
	Ping      Name = "ping"
)

var aliases = map[string]Name{
	"!help":      Help,
	"!commands":  Help,
	"!botpage":   BotPage,
	"!multichat": MultiChat,
	"!clear":     Clear,
	"!nick":      Nick,
	"!ping":      Ping,
}

type Command struct {
	Name Name
	Arg  string
}

// Result reports whether a message was a recognized command and whether the
// bot still owes the chat a reply of its own after handling it.
type Result struct {
	Valid       bool
	ShouldReply bool
}

// Normalize strips invisible runes and surrounding whitespace.
func Normalize(text string) string {
	return strings.TrimSpace(StripInvisible(text))
}

// Parse recognizes "!name" and "!name <arg>". Only !nick takes an argument;
// every other command must be the whole message.
func Parse(text string) (Command, bool) {
	text = Normalize(text)
	if !strings.HasPrefix(text, "!") {
		return Command{}, false
	}

	head, rest, _ := strings.Cut(text, " ")
	name, ok := aliases[strings.ToLower(head)]
	if !ok {
		return Command{}, false
	}

	rest = strings.TrimSpace(rest)
	if rest != "" && name != Nick {
		return Command{}, false
	}

	return Command{Name: name, Arg: rest}, true
}

// HasAnyPrefix reports whether text starts with one of prefixes.
func HasAnyPrefix(text string, prefixes []string) bool {
	text = Normalize(text)
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}
