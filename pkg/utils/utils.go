package utils

import (
	"strings"
	"unicode/utf8"
)

// ErrJSON produces a standard JSON error response.
func ErrJSON(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   msg,
	}
}

// LimitStr truncates s to n runes, appending "..." when it was longer.
func LimitStr(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// CleanJSON removes markdown code blocks from a string to extract raw JSON.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) >= 2 {
			if strings.HasPrefix(lines[0], "```") {
				lines = lines[1:]
			}
			if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
				lines = lines[:len(lines)-1]
			}
			s = strings.Join(lines, "\n")
		}
	}
	return strings.TrimSpace(s)
}

// StripThink drops a reasoning preamble closed by </think>.
func StripThink(s string) string {
	if strings.Contains(s, "<think>") {
		if idx := strings.LastIndex(s, "</think>"); idx != -1 {
			s = s[idx+len("</think>"):]
		}
	}
	return s
}

// TrimToObject cuts s down to the outermost {...}. ok is false when either
// brace is missing.
func TrimToObject(s string) (string, bool) {
	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i == -1 || j == -1 || j < i {
		return s, false
	}
	return s[i : j+1], true
}

// SanitizeFilename replaces spaces and path separators with underscores.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	return strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(s)
}
