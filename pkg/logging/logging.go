package logging

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug, info, warn and error onto slog levels; anything
// else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text logger writing to sink and, when file is set, to a
// rotated log file as well. The returned closer releases the file.
func New(sink io.Writer, level, file string) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if file != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		}
		sink = io.MultiWriter(sink, fileLogger)
		closer = fileLogger
	}

	logger := slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
