package log

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

var logFileHandler *os.File

func FlushLog() {
	if logFileHandler != nil {
		logFileHandler.Sync()
	}
}

func FlushAndClose() error {
	if logFileHandler != nil {
		logFileHandler.Sync()
		return logFileHandler.Close()
	}

	return nil
}

// NewLogger creates a logger writing to both stdout and a timestamped file
// under logDir. logLevel can be "debug", "info", "warn" or "error"; anything
// else falls back to info.
func NewLogger(logLevel, logDir string) (*slog.Logger, error) {
	if logDir == "" {
		logDir = "logs"
	}

	if _, err := os.Stat(logDir); errors.Is(err, os.ErrNotExist) {
		err := os.MkdirAll(logDir, os.ModePerm)
		if err != nil {
			return nil, fmt.Errorf("error creating log directory: %w", err)
		}
	}

	fileName := "mapler-log-" + time.Now().Format("2006-01-02-15-04-05") + ".txt"
	lfh, err := os.Create(logDir + "/" + fileName)
	if err != nil {
		return nil, err
	}
	logFileHandler = lfh

	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey {
				return a
			}

			t := a.Value.Time()
			a.Value = slog.StringValue(t.Format(time.TimeOnly))

			return a
		},
	}
	handler := slog.NewTextHandler(io.MultiWriter(logFileHandler, os.Stdout), opts)

	return slog.New(handler), nil
}
