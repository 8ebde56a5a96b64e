// Package chunk splits long Japanese text into sentence-aligned pieces that
// fit a character budget.
package chunk

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// Terminator is appended after every sentence when a chunk is assembled.
const Terminator = "。"

var terminatorLen = utf8.RuneCountInString(Terminator)

func isBoundary(r rune) bool {
	switch r {
	case '。', '！', '？', '\n':
		return true
	}
	return false
}

// Sentences splits text on sentence-ending punctuation and line breaks.
// Sentences are trimmed and empty ones are dropped.
func Sentences(text string) []string {
	var out []string
	for _, s := range strings.FieldsFunc(text, isBoundary) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Seq yields chunks of at most limit runes. Sentences are packed greedily and
// each is followed by Terminator. A sentence that alone exceeds the limit
// becomes its own oversized chunk.
func Seq(text string, limit int) iter.Seq[string] {
	return func(yield func(string) bool) {
		var cur strings.Builder
		curLen := 0

		for _, s := range Sentences(text) {
			add := utf8.RuneCountInString(s) + terminatorLen
			if curLen > 0 && curLen+add > limit {
				if !yield(cur.String()) {
					return
				}
				cur.Reset()
				curLen = 0
			}
			cur.WriteString(s)
			cur.WriteString(Terminator)
			curLen += add
		}

		if curLen > 0 {
			yield(cur.String())
		}
	}
}

// Split collects Seq into a slice.
func Split(text string, limit int) []string {
	var out []string
	for c := range Seq(text, limit) {
		out = append(out, c)
	}
	return out
}

// Len returns the length of s in runes, the unit every size bound uses.
func Len(s string) int { return utf8.RuneCountInString(s) }
