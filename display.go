package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// DisplayError wraps a failed draw or flush.  It is never fatal: the frame is
// skipped and the next tick draws again.
type DisplayError struct {
	Op  string
	Err error
}

func (e *DisplayError) Error() string { return fmt.Sprintf("display %s: %v", e.Op, e.Err) }

func (e *DisplayError) Unwrap() error { return e.Err }

// logDrawer stands in for the OLED when none is attached.  It accepts every
// frame and logs its size at debug level.
type logDrawer struct {
	bounds image.Rectangle
	logger *slog.Logger
	frames int
}

var _ display.Drawer = (*logDrawer)(nil)

func newLogDrawer(cfg DisplayConfig, logger *slog.Logger) *logDrawer {
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = 128, 64
	}
	return &logDrawer{bounds: image.Rect(0, 0, w, h), logger: logger}
}

func (d *logDrawer) String() string { return "log display" }

func (d *logDrawer) Halt() error { return nil }

func (d *logDrawer) ColorModel() color.Model { return image1bit.BitModel }

func (d *logDrawer) Bounds() image.Rectangle { return d.bounds }

func (d *logDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.frames++
	d.logger.Debug("frame", "display", d.String(), "bounds", r, "frames", d.frames)
	return nil
}
