// Package logging wires the injected zerolog logger used across plb.
// Per spec.md's design notes, the logger is passed explicitly to every
// component rather than held in a process-wide singleton, so the daemon
// can relevel it on SIGHUP without touching package state.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the type every component accepts for structured logging.
type Logger = zerolog.Logger

// New builds a Logger writing to w (os.Stdout in production, a buffer in
// tests) at the given level. Unknown level strings fall back to "info".
func New(w io.Writer, level string) Logger {
	l := zerolog.New(w).With().Timestamp().Str("service", "plb").Logger()
	return l.Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Default returns a stdout logger at info level, used only at process
// start before configuration has been loaded.
func Default() Logger {
	return New(os.Stdout, "info")
}

// Relevel swaps l's level in place, used by the daemon on SIGHUP reload.
func Relevel(l *Logger, level string) {
	*l = l.Level(parseLevel(level))
}

// ForNode returns a child logger tagged with the node name, so every log
// line about a node identifies it for operator triage (spec.md 7).
func ForNode(l Logger, node string) Logger {
	return l.With().Str("node", node).Logger()
}

// ForGuest returns a child logger tagged with the guest name and id.
func ForGuest(l Logger, guest string, id int) Logger {
	return l.With().Str("guest", guest).Int("guest_id", id).Logger()
}

// ForJob returns a child logger tagged with a migration job/task id.
func ForJob(l Logger, jobID string) Logger {
	return l.With().Str("job_id", jobID).Logger()
}
