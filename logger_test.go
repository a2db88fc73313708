package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryLogger_AppendsStatusChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	hl := NewHistoryLogger(path)
	hl.now = func() time.Time { return time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC) }

	status := NewStatus()
	status.OnChange(hl)
	status.Toggle()
	status.Toggle()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"2026-10-17T09:30:00Z - status Do Not Disturb (request 1)\n"+
			"2026-10-17T09:30:00Z - status Free (request 2)\n",
		string(data))
}

func TestHistoryLogger_UnwritablePath(t *testing.T) {
	hl := NewHistoryLogger(filepath.Join(t.TempDir(), "missing", "history.log"))

	err := hl.Changed(Snapshot{Availability: DoNotDisturb, Requests: 1})

	assert.ErrorContains(t, err, "open history")
}

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "ssid", "office")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"ssid":"office"`)
}

func TestNewLogger_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogConfig{Level: "loud", Format: "xml"})

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
