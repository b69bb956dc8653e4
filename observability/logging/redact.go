package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output and sanitized configs.
const RedactedValue = "[REDACTED]"

// Keys listed here are logged verbatim by MaskField.
var plainKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"error":      {},
	"method":     {},
	"module":     {},
	"code":       {},
	"caller":     {},
	"loan_id":    {},
	"request_id": {},
}

// IsPlainKey reports whether values under key are logged without redaction.
func IsPlainKey(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute for key that hides value unless key is a
// plain key. Blank values pass through so missing inputs stay visible.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsPlainKey(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskSecret hides a non-empty secret.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	return RedactedValue
}

// MaskSecrets hides every entry of values and returns a new slice.
func MaskSecrets(values []string) []string {
	if len(values) == 0 {
		return values
	}
	masked := make([]string, len(values))
	for i, v := range values {
		masked[i] = MaskSecret(v)
	}
	return masked
}
