package config

import "strings"

// normalizeModeString trims whitespace and lowercases a raw mode value so
// `"  StandAlone  "` and `"standalone"` compare equal.
func normalizeModeString(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
