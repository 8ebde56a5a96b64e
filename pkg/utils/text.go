package utils

import "unicode"

type script int

const (
	scriptSpace script = iota
	scriptLatin
	scriptHan
	scriptHiragana
	scriptKatakana
	scriptPunct
)

func classify(r rune) script {
	switch {
	case unicode.IsSpace(r):
		return scriptSpace
	case unicode.Is(unicode.Han, r) || r == '々':
		return scriptHan
	case unicode.Is(unicode.Hiragana, r):
		return scriptHiragana
	case unicode.Is(unicode.Katakana, r) || r == 'ー':
		return scriptKatakana
	case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-' || r == '\'':
		return scriptLatin
	}
	return scriptPunct
}

// TokenizeWords splits s into runs of the same script. Japanese has no word
// spacing, so kanji, kana and latin runs stand in for words.
func TokenizeWords(s string) []string {
	var out []string
	var cur []rune
	kind := script(-1)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, string(cur))
		cur = cur[:0]
	}
	for _, r := range s {
		k := classify(r)
		if kind == -1 {
			kind = k
		}
		if k != kind || k == scriptPunct {
			flush()
			kind = k
		}
		cur = append(cur, r)
	}
	flush()
	return out
}
