package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is relative to the working directory, matching the desktop build layout.
const DefaultPath = "config/config.ini"

// ResolvePath applies CLI flag, MUSEGEN_CONFIG, then DefaultPath.
func ResolvePath(explicit string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if env := strings.TrimSpace(os.Getenv("MUSEGEN_CONFIG")); env != "" {
		return env
	}
	return DefaultPath
}

// ExpandUser replaces a leading ~ with the user's home directory.
func ExpandUser(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") && !strings.HasPrefix(raw, `~\`) {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	if raw == "~" {
		return home
	}
	return filepath.Join(home, raw[2:])
}
