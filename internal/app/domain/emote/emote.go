package emote

import (
	"fmt"
	"regexp"
	"slices"
	"unicode"
	"unicode/utf8"
)

var colonCode = regexp.MustCompile(`:[a-zA-Z\-]+:`)

// Find returns url -> "start-end" ranges for every emote in text. Offsets are
// rune indexes with an inclusive end. words is matched against whole
// whitespace-separated tokens; colon is matched against ":code:" anywhere.
func Find(text string, words, colon map[string]string) map[string][]string {
	out := make(map[string][]string)

	add := func(url string, start, end int) {
		r := fmt.Sprintf("%d-%d", start, end)
		if !slices.Contains(out[url], r) {
			out[url] = append(out[url], r)
		}
	}

	if len(words) > 0 {
		start, idx := -1, 0
		var byteStart int
		for i, r := range text {
			if unicode.IsSpace(r) {
				if start >= 0 {
					if url, ok := words[text[byteStart:i]]; ok {
						add(url, start, idx-1)
					}
					start = -1
				}
			} else if start < 0 {
				start, byteStart = idx, i
			}
			idx++
		}
		if start >= 0 {
			if url, ok := words[text[byteStart:]]; ok {
				add(url, start, idx-1)
			}
		}
	}

	if len(colon) > 0 {
		for _, m := range colonCode.FindAllStringIndex(text, -1) {
			url, ok := colon[text[m[0]:m[1]]]
			if !ok {
				continue
			}
			start := utf8.RuneCountInString(text[:m[0]])
			add(url, start, start+utf8.RuneCountInString(text[m[0]:m[1]])-1)
		}
	}

	return out
}

// Merge copies src ranges into dst, skipping ranges dst already has.
func Merge(dst, src map[string][]string) map[string][]string {
	if dst == nil {
		dst = make(map[string][]string, len(src))
	}
	for url, ranges := range src {
		for _, r := range ranges {
			if !slices.Contains(dst[url], r) {
				dst[url] = append(dst[url], r)
			}
		}
	}
	return dst
}
