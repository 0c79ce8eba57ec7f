package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel reads a LOG_LEVEL value (debug, info, warn, error). An empty
// value means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// NewStdoutHandler is the JSON handler every process logs through.
func NewStdoutHandler(level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}

// Setup installs the stdout handler as the default logger and returns it, so
// sinks added later (the database handler) can be fanned out next to it.
func Setup(level slog.Leveler) slog.Handler {
	handler := NewStdoutHandler(level)
	slog.SetDefault(slog.New(handler))
	return handler
}
