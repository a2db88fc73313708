package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// newLogger builds the process logger.  Unknown levels fall back to info and
// unknown formats to text.
func newLogger(w io.Writer, cfg LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// HistoryLogger appends a timestamped line to a file for every status
// change.  It is safe for concurrent use.
type HistoryLogger struct {
	filePath string
	mu       sync.Mutex
	now      func() time.Time
}

// NewHistoryLogger creates a logger writing to filePath.  The file is created
// on the first write.
func NewHistoryLogger(filePath string) *HistoryLogger {
	return &HistoryLogger{filePath: filePath, now: time.Now}
}

// Name identifies the handler in error logs.
func (hl *HistoryLogger) Name() string { return "history" }

// Changed records the new status.
func (hl *HistoryLogger) Changed(s Snapshot) error {
	return hl.Log("status %s (request %d)", s.Availability.Label(), s.Requests)
}

// Log writes a single event with timestamp.
func (hl *HistoryLogger) Log(format string, args ...any) error {
	hl.mu.Lock()
	defer hl.mu.Unlock()
	line := fmt.Sprintf("%s - %s\n", hl.now().Format(time.RFC3339), fmt.Sprintf(format, args...))
	// Open file in append mode, create if not exists
	f, err := os.OpenFile(hl.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
