package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger: human-readable text on stderr plus
// a JSON stream appended to logFile for later inspection. The returned
// cleanup closes the file and must run at shutdown.
//
// An unopenable log file is not fatal; logging degrades to stderr only.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("log file unavailable, continuing with stderr only", "file", logFile, "error", err)
		stderrOnly := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return stderrOnly, func() error { return nil }
	}

	return fanoutLogger(os.Stderr, file, level), file.Close
}

// SetupLoggerWithWriters is SetupLogger with injectable writers for tests.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	return fanoutLogger(stderr, file, level)
}

func fanoutLogger(stderr, file io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, opts),
		slog.NewJSONHandler(file, opts),
	))
}
