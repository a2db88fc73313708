//go:build linux && (arm || arm64) && !disablegpio

// This file provides the Raspberry Pi implementation of the HAL using the
// periph.io library.  When cross-compiling for other platforms or when the
// build tag "disablegpio" is specified, hal.go is used instead.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// initHardware initialises periph host drivers.  Returning an error here
// prevents the device from starting.
func initHardware() error {
	_, err := host.Init()
	return err
}

// oledDisplay is an SSD1306 that also releases its I2C bus on Halt.
type oledDisplay struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

func (o *oledDisplay) Halt() error {
	err := o.Dev.Halt()
	if cerr := o.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

// openDisplay opens the I2C bus named in cfg (the first bus when empty) and
// the SSD1306 at its default address.
func openDisplay(cfg DisplayConfig, logger *slog.Logger) (display.Drawer, error) {
	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, &DisplayError{Op: "open bus", Err: err}
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.Opts{
		W:       cfg.Width,
		H:       cfg.Height,
		Rotated: cfg.Rotated,
	})
	if err != nil {
		bus.Close()
		return nil, &DisplayError{Op: "init", Err: err}
	}
	logger.Info("display ready", "display", dev.String(), "bus", bus.String())
	return &oledDisplay{Dev: dev, bus: bus}, nil
}

func pinByNumber(pin int) (gpio.PinIO, error) {
	p := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin))
	if p == nil {
		return nil, fmt.Errorf("no such pin GPIO%d", pin)
	}
	return p, nil
}

// gpioIndicator drives an LED high while on.
type gpioIndicator struct {
	pin gpio.PinIO
}

// openLED configures the BCM pin as an output, initially low.
func openLED(pin int) (Indicator, error) {
	p, err := pinByNumber(pin)
	if err != nil {
		return nil, err
	}
	if err := p.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("led GPIO%d: %w", pin, err)
	}
	return &gpioIndicator{pin: p}, nil
}

func (g *gpioIndicator) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return g.pin.Out(level)
}

func (g *gpioIndicator) Halt() error {
	return errors.Join(g.pin.Out(gpio.Low), g.pin.Halt())
}

// gpioButton is a push button wired between the pin and ground.
type gpioButton struct {
	pin gpio.PinIO
}

// openButton configures the BCM pin as a pulled-up input that reports
// falling edges.
func openButton(pin int) (Button, error) {
	p, err := pinByNumber(pin)
	if err != nil {
		return nil, err
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("button GPIO%d: %w", pin, err)
	}
	return &gpioButton{pin: p}, nil
}

// WaitForPress returns true when a falling edge arrives within timeout and
// the pin still reads low.
func (g *gpioButton) WaitForPress(timeout time.Duration) bool {
	if !g.pin.WaitForEdge(timeout) {
		return false
	}
	return g.pin.Read() == gpio.Low
}

func (g *gpioButton) Halt() error { return g.pin.Halt() }
