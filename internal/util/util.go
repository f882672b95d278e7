// Package util provides common utility functions used across the extension.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// UnwrapPayload undoes host-side string framing on a JSON payload.
// Some host builds pass payloads wrapped in an extra pair of quotes
// with inner quotes doubled; plain payloads pass through unchanged.
func UnwrapPayload(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return FixEscapeQuotes(s[1 : len(s)-1])
	}
	return s
}
