package utils

import (
	"strings"
	"unicode"
)

// MaxFieldLength bounds caller-supplied strings that end up in logs and messages.
const MaxFieldLength = 128

// SanitizeInput cleans input by removing leading/trailing spaces and control characters
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	if len([]rune(input)) > MaxFieldLength {
		input = string([]rune(input)[:MaxFieldLength])
	}
	return input
}

// SanitizeOrDefault returns def when the sanitized input is empty.
func SanitizeOrDefault(input, def string) string {
	if s := SanitizeInput(input); s != "" {
		return s
	}
	return def
}

// EscapeMarkdown escapes the characters Telegram's legacy Markdown mode treats
// as entity delimiters.
func EscapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"`", "\\`",
		"[", "\\[",
	)
	return replacer.Replace(s)
}
