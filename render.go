package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// frameLines is what one frame shows: status, address, request count.
type frameLines [3]string

func composeFrame(s Snapshot, addr netip.Addr) frameLines {
	ip := "-"
	if addr.IsValid() {
		ip = addr.String()
	}
	return frameLines{
		"Status: " + s.Availability.Label(),
		"IP: " + ip,
		fmt.Sprintf("Requests: %d", s.Requests),
	}
}

// Renderer mirrors the status store on the display at a fixed period.
type Renderer struct {
	status   *Status
	out      display.Drawer
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics

	addr    netip.Addr
	last    frameLines
	hasLast bool
}

// NewRenderer creates a renderer that draws to out every interval.
func NewRenderer(status *Status, out display.Drawer, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *Metrics) *Renderer {
	return &Renderer{
		status:   status,
		out:      out,
		clock:    clock,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetAddr records the network address shown on the second line.  It must be
// called before Run.
func (r *Renderer) SetAddr(addr netip.Addr) {
	r.addr = addr
}

// Splash shows a single message, e.g. while the network comes up.
func (r *Renderer) Splash(msg string) error {
	r.hasLast = false
	return r.draw([]string{msg})
}

// Run draws immediately and then once per interval until ctx is done.
func (r *Renderer) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.tick()
		}
	}
}

func (r *Renderer) tick() {
	if err := r.renderOnce(); err != nil {
		r.metrics.FrameFailures.Inc()
		r.logger.Warn("display frame skipped", "error", err)
	}
}

// renderOnce draws the current frame unless it is the one already on the
// panel.  A failed frame is not remembered, so the next tick draws it again.
func (r *Renderer) renderOnce() error {
	lines := composeFrame(r.status.Read(), r.addr)
	if r.hasLast && lines == r.last {
		return nil
	}
	if err := r.draw(lines[:]); err != nil {
		return err
	}
	r.last = lines
	r.hasLast = true
	r.logger.Debug("display updated", "status", lines[0], "ip", lines[1], "requests", lines[2])
	return nil
}

func (r *Renderer) draw(lines []string) error {
	img := paintLines(r.out.Bounds(), lines)
	if err := r.out.Draw(img.Bounds(), img, image.Point{}); err != nil {
		return &DisplayError{Op: "draw", Err: err}
	}
	return nil
}

// paintLines rasterises up to three lines into a 1-bit frame, one per third
// of the panel height.  On a 32 pixel panel descenders of one line touch the
// top of the next.
func paintLines(bounds image.Rectangle, lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(bounds)
	face := basicfont.Face7x13
	pitch := bounds.Dy() / len(frameLines{})
	d := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(bounds.Min.X, bounds.Min.Y+i*pitch+face.Ascent)
		d.DrawString(line)
	}
	return img
}
