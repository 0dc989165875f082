package models

import "strings"

// SanitizeKeySegment escapes the delimiter in key segments so a subject containing ':'
// cannot address another subject's counter.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// CounterKey is the store key for (subject, class).
func CounterKey(subject string, class Class) string {
	return "rl:" + SanitizeKeySegment(subject) + ":" + SanitizeKeySegment(string(class))
}
