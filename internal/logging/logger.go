// Package logging configures per-run plain-text log files and reads them back.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	filePrefix  = "musegen_"
	fileSuffix  = ".log"
	stampLayout = "20060102_150405"
)

// Runtime bundles the configured logger and its open file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Options tunes New.
type Options struct {
	Level slog.Level
	// Console receives warnings and errors in addition to the file; nil disables it.
	Console io.Writer
	// Now stamps the file name; time.Now when nil.
	Now func() time.Time
}

// New opens dir/musegen_YYYYMMDD_HHMMSS.log and returns a text logger writing to it.
func New(dir string, opts Options) (Runtime, error) {
	dir, err := ResolveDir(dir)
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Runtime{}, fmt.Errorf("create log dir %q: %w", dir, err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	path := filepath.Join(dir, filePrefix+now().Format(stampLayout)+fileSuffix)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log file %q: %w", path, err)
	}

	var h slog.Handler = slog.NewTextHandler(f, &slog.HandlerOptions{Level: opts.Level})
	if opts.Console != nil {
		console := slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: slog.LevelWarn})
		h = teeHandler{primary: h, secondary: console}
	}

	logger := slog.New(h)
	logger.Info("logging initialized", "path", path, "level", opts.Level.String())
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// ResolveDir returns dir, or $XDG_STATE_HOME/musegen/logs (~/.local/state fallback) when dir is empty.
func ResolveDir(dir string) (string, error) {
	if dir = strings.TrimSpace(dir); dir != "" {
		return dir, nil
	}
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "musegen", "logs"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve log dir: %w", err)
	}
	return filepath.Join(home, ".local", "state", "musegen", "logs"), nil
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}
