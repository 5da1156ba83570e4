// Package util holds small helpers for reading configuration from the environment.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean environment variable, falling back to def when
// the variable is unset or unrecognized. Accepted forms (case-insensitive):
// true/1/yes/on and false/0/no/off.
func ParseBoolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: unrecognized boolean value, using default", "key", key, "value", raw, "default", def)
		return def
	}
}
