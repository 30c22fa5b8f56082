// SPDX-License-Identifier: GPL-3.0
// Copyright 2024 Pete Heist

package dot11dcf

import (
	"log/slog"
	"os"
)

// LoggingConfig is an explicit handle for logging settings, replacing
// the global mutable debug level the source relies on (spec §9): no
// component reaches for package-level state, every component gets its
// own *slog.Logger carrying its own fields.
type LoggingConfig struct {
	Logger *slog.Logger
	Level  *slog.LevelVar
}

// NewLoggingConfig returns a LoggingConfig writing structured text lines
// to stderr, the way the teacher's log.go wraps the standard log
// package, but leveled and field-structured via log/slog.
func NewLoggingConfig() *LoggingConfig {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})
	return &LoggingConfig{Logger: slog.New(h), Level: lv}
}

// SetDebugLevel maps the command(cmd=1, level) debug level onto slog's
// level scale: 0 is informational, anything higher turns on debug
// logging.
func (l *LoggingConfig) SetDebugLevel(level int) {
	if level > 0 {
		l.Level.Set(slog.LevelDebug)
	} else {
		l.Level.Set(slog.LevelInfo)
	}
}

// For returns a logger scoped to the given component and MAC instance,
// the way a larger component in this module tags its own log lines.
func (l *LoggingConfig) For(macID, component string) *slog.Logger {
	return l.Logger.With("mac", macID, "component", component)
}
