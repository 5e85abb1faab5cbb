package mailindex

import (
	"log/slog"
	"os"
)

// NewJSONLogger returns a logger that writes JSON-formatted records to
// stderr. level sets the minimum log level.
//
//	idx, err := mailindex.Open(dir,
//	    mailindex.WithLogger(mailindex.NewJSONLogger(slog.LevelDebug)))
func NewJSONLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger returns a logger that writes human-readable records to
// stderr.
func NewTextLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger returns a logger that discards all output. This is the
// default when no logger is configured.
func NoopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
