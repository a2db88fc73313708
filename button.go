package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Indicator is an on/off output such as an LED.
type Indicator interface {
	Set(on bool) error
	Halt() error
}

// Button is a momentary input.  WaitForPress blocks for at most timeout.
type Button interface {
	WaitForPress(timeout time.Duration) bool
	Halt() error
}

// memoryIndicator records the last state it was set to.
type memoryIndicator struct {
	mu sync.Mutex
	on bool
}

func (m *memoryIndicator) Set(on bool) error {
	m.mu.Lock()
	m.on = on
	m.mu.Unlock()
	return nil
}

func (m *memoryIndicator) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

func (m *memoryIndicator) Halt() error { return m.Set(false) }

// indicatorHandler lights the indicator while the status is Do Not Disturb.
type indicatorHandler struct {
	ind Indicator
}

func (indicatorHandler) Name() string { return "led" }

func (h indicatorHandler) Changed(s Snapshot) error {
	return h.ind.Set(s.Availability == DoNotDisturb)
}

// buttonPoll bounds each wait so Run notices cancellation.
const buttonPoll = 500 * time.Millisecond

// ButtonWatcher toggles the status on every debounced press.
type ButtonWatcher struct {
	button   Button
	status   *Status
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
}

func NewButtonWatcher(button Button, status *Status, debounce time.Duration, clock clockwork.Clock, logger *slog.Logger) *ButtonWatcher {
	return &ButtonWatcher{button: button, status: status, debounce: debounce, clock: clock, logger: logger}
}

// Run blocks until ctx is done.
func (w *ButtonWatcher) Run(ctx context.Context) {
	var last time.Time
	for ctx.Err() == nil {
		if !w.button.WaitForPress(buttonPoll) {
			continue
		}
		now := w.clock.Now()
		if !last.IsZero() && now.Sub(last) < w.debounce {
			continue
		}
		last = now
		snap := w.status.Toggle()
		w.logger.Info("status toggled", "source", "button", "status", snap.Availability.Label(), "requests", snap.Requests)
	}
}
