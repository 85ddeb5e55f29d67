// Package log wires the process-wide slog default used by both binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on stderr at the requested level. Level
// names are parsed case-insensitively; anything unrecognized means info.
func Setup(logLevel string) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// WithModule tags the default logger with the component emitting the logs.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
