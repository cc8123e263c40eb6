package greetz

import (
	"math/rand/v2"
	"strings"
	"time"
)

var (
	First = []string{
		"yo #",
		"yo #",
		"yo yo #",
		"yo yo yo #",
		"yo yo yo # whats up!",
		"heyo #",
		"yooo # good to see u",
		"good to see u #",
		"hi #",
		"hello #",
		"helo #",
		"whats up #",
		"hey #, whats up?",
		"welcome #",
		"welcome in, #",
		"greetings #",
		"hows it going #",
		"hey whats new with you #",
		"how have you been #",
		"#!",
	}
	FirstAlso = []string{
		"also hi #",
		"also hi # whats up!",
		"also its good to see u #",
		"also whats up #",
		"also, whats up #?",
		"also welcome #",
		"also welcome in, #",
		"also welcome to chat, #",
		"also welcome to the stream, #",
		"also hows it going #",
		"also how have you been #",
	}
	WelcomeBack = []string{
		"welcome back #",
		"welcome back in, #",
		"welcome back to chat, #",
		"good to see u again #",
		"hello again #",
		"hi again #",
	}
	WelcomeBackAlso = []string{
		"also welcome back #",
		"also welcome back in, #",
		"also welcome back to chat, #",
		"also good to see u again #",
		"also hello again #",
		"also hi again #",
	}
)

type Tier int

const (
	TierNone Tier = iota
	TierFirst
	TierWelcomeBack
)

func (t Tier) String() string {
	switch t {
	case TierFirst:
		return "first"
	case TierWelcomeBack:
		return "welcome_back"
	}
	return "none"
}

// Classify picks the greeting tier for a viewer last seen at lastSeen. A
// viewer never seen before counts as away forever.
func Classify(now, lastSeen time.Time, seen bool, threshold, wbThreshold time.Duration) Tier {
	if !seen {
		return TierFirst
	}

	elapsed := now.Sub(lastSeen)
	switch {
	case elapsed > threshold:
		return TierFirst
	case elapsed > wbThreshold:
		return TierWelcomeBack
	}
	return TierNone
}

// Pool returns the stock phrases for a tier; also selects the variants used
// after a command reply.
func Pool(t Tier, also bool) []string {
	switch {
	case t == TierFirst && also:
		return FirstAlso
	case t == TierFirst:
		return First
	case t == TierWelcomeBack && also:
		return WelcomeBackAlso
	case t == TierWelcomeBack:
		return WelcomeBack
	}
	return nil
}

// Pick returns custom when set, otherwise a random entry of pool.
func Pick(pool []string, custom string, rnd func(n int) int) string {
	if custom != "" {
		return custom
	}
	if len(pool) == 0 {
		return ""
	}
	if rnd == nil {
		rnd = rand.IntN
	}
	return pool[rnd(len(pool))]
}

// Render substitutes "@" with "@username" and "#" with the nickname.
func Render(template, username, nickname string) string {
	return strings.NewReplacer("@", "@"+username, "#", nickname).Replace(template)
}
