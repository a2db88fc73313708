//go:build !linux || !(arm || arm64) || disablegpio

package main

// This file is the hardware abstraction layer used off the Pi, or when the
// build tag "disablegpio" is given.  It lets the web page and the render
// loop run on a desktop machine: frames go to the log, the LED is a no-op
// and the button is never pressed.  hal_rpi.go holds the periph.io version.

import (
	"log/slog"
	"time"

	"periph.io/x/conn/v3/display"
)

// initHardware performs any global initialisation required for GPIO and I2C.
func initHardware() error {
	return nil
}

// openDisplay returns a drawer that only logs.
func openDisplay(cfg DisplayConfig, logger *slog.Logger) (display.Drawer, error) {
	return newLogDrawer(cfg, logger), nil
}

// openLED returns an indicator that remembers its state and drives nothing.
func openLED(pin int) (Indicator, error) {
	return &memoryIndicator{}, nil
}

// openButton returns a button that is never pressed.
func openButton(pin int) (Button, error) {
	return idleButton{}, nil
}

type idleButton struct{}

func (idleButton) WaitForPress(timeout time.Duration) bool {
	time.Sleep(timeout)
	return false
}

func (idleButton) Halt() error { return nil }
