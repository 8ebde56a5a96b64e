package aozora

import (
	"regexp"
	"strings"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// rules run in order: ruby readings first, then editorial annotations, then
// whitespace.
var rules = []rule{
	{regexp.MustCompile(`｜([^《]+)《[^》]+》`), "$1"},
	{regexp.MustCompile(`([一-龥々ぁ-ゔァ-ヴー]+)《[^》]+》`), "$1"},
	{regexp.MustCompile(`［＃[^］]*ルビ[^］]*］`), ""},
	{regexp.MustCompile(`［＃[^］]+］`), ""},
	{regexp.MustCompile(`※［＃[^］]+］`), ""},
	{regexp.MustCompile(`\r\n`), "\n"},
	{regexp.MustCompile(`　+`), "　"},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
	{regexp.MustCompile(` +`), " "},
}

var (
	bodyStartMarkers = []string{"-------", "【テキスト中に現れる記号について】"}
	bodyEndMarkers   = []string{"底本：", "入力：", "校正：", "※［＃"}
)

// Normalize removes ruby and annotation markup, tidies whitespace and cuts
// the header legend and colophon.
func Normalize(raw string) string {
	text := raw
	for _, r := range rules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return strings.TrimSpace(trimBoilerplate(text))
}

// trimBoilerplate keeps the lines after the first start marker and before
// the last end marker.
func trimBoilerplate(text string) string {
	lines := strings.Split(text, "\n")

	start := 0
	for i, line := range lines {
		if containsAny(line, bodyStartMarkers) {
			start = i + 1
			break
		}
	}

	end := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		if containsAny(lines[i], bodyEndMarkers) {
			end = i
			break
		}
	}

	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
