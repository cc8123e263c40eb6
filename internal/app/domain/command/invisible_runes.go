package command

import "strings"

// Chat clients append invisible runes (most often U+E0000) to dodge
// duplicate-message filters; they must not change how a command parses.
var zeroWidthRunes = map[rune]struct{}{
	'\u200B': {}, // ZERO WIDTH SPACE
	'\u200C': {}, // ZERO WIDTH NON-JOINER
	'\u200D': {}, // ZERO WIDTH JOINER
	'\u2060': {}, // WORD JOINER
	'\uFEFF': {}, // ZERO WIDTH NO-BREAK SPACE
	'\u180E': {}, // MONGOLIAN VOWEL SEPARATOR
	'\u034F': {}, // COMBINING GRAPHEME JOINER
	'\u00AD': {}, // SOFT HYPHEN
}

func isInvisibleRune(r rune) bool {
	if _, bad := zeroWidthRunes[r]; bad {
		return true
	}

	switch {
	// Plane 14 tags
	case r >= 0xE0000 && r <= 0xE007F:
		return true

	// Variation selectors
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true

	// Bidirectional and format controls
	case r >= 0x200E && r <= 0x200F, r >= 0x202A && r <= 0x202E, r >= 0x2061 && r <= 0x206F:
		return true

	// C0 and C1 controls except whitespace
	case r < 0x20 && r != '\t' && r != '\n' && r != '\r', r == 0x7F, r >= 0x80 && r <= 0x9F:
		return true
	}

	return false
}

func StripInvisible(s string) string {
	if strings.IndexFunc(s, isInvisibleRune) < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		if isInvisibleRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
