package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/display"
)

// Entry point for the status light
func main() {
	configPath := flag.String("config", defaultConfigPath, "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := initHardware(); err != nil {
		return fmt.Errorf("initialisation error: %w", err)
	}
	station, err := newStation(cfg.Network, logger)
	if err != nil {
		return err
	}
	out := openDisplayOrLog(cfg.Display, logger)
	return start(ctx, cfg, station, out, clockwork.NewRealClock(), logger)
}

// start boots and serves.  The panel is switched off on a clean shutdown
// only; after a failed boot it keeps showing the failure until the process
// is restarted.
func start(ctx context.Context, cfg Config, station Station, out display.Drawer, clock clockwork.Clock, logger *slog.Logger) error {
	d, err := boot(ctx, cfg, station, out, clock, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Halt(); err != nil {
			logger.Warn("display halt", "error", err)
		}
	}()
	defer d.close()
	return d.serve(ctx)
}

// device is everything that runs once the network is up.
type device struct {
	cfg       Config
	logger    *slog.Logger
	clock     clockwork.Clock
	status    *Status
	metrics   *Metrics
	renderer  *Renderer
	connector *Connector
	server    *Server
	addr      netip.Addr
	closers   []func() error
}

// boot wires the status store to its outputs and joins the network.  A
// failed join is returned as a *ConnectionError and nothing is served.
func boot(ctx context.Context, cfg Config, station Station, out display.Drawer, clock clockwork.Clock, logger *slog.Logger) (*device, error) {
	d := &device{cfg: cfg, logger: logger, clock: clock, status: NewStatus()}
	d.status.OnHandlerError(func(h ChangeHandler, err error) {
		logger.Warn("change handler failed", "handler", h.Name(), "error", err)
	})
	d.metrics = NewMetrics(d.status)

	d.renderer = NewRenderer(d.status, out, cfg.Display.Interval, clock, logger, d.metrics)
	if err := d.renderer.Splash("Connecting to WiFi..."); err != nil {
		logger.Warn("display splash", "error", err)
	}

	if cfg.GPIO.LEDPin > 0 {
		led, err := openLED(cfg.GPIO.LEDPin)
		if err != nil {
			return nil, fmt.Errorf("status led: %w", err)
		}
		d.closers = append(d.closers, led.Halt)
		d.status.OnChange(indicatorHandler{ind: led})
	}
	if cfg.HistoryFile != "" {
		d.status.OnChange(NewHistoryLogger(cfg.HistoryFile))
	}

	d.connector = NewConnector(station, cfg.Network, logger, clock)
	addr, err := d.connector.Connect(ctx, cfg.Network.SSID, cfg.Network.Password)
	if err != nil {
		if serr := d.renderer.Splash("WiFi failed"); serr != nil {
			logger.Warn("display splash", "error", serr)
		}
		d.close()
		return nil, err
	}
	d.addr = addr
	d.renderer.SetAddr(addr)
	d.server = NewServer(cfg.HTTPAddr, d.status, d.metrics, logger)
	logger.Info("HTTP server will be available", "url", pageURL(addr.String(), cfg.HTTPAddr))
	return d, nil
}

// serve runs the page, the render loop, the link supervisor and the optional
// button and metrics listener until ctx is done or one of them fails.
func (d *device) serve(ctx context.Context) error {
	var watcher *ButtonWatcher
	if d.cfg.GPIO.ButtonPin > 0 {
		button, err := openButton(d.cfg.GPIO.ButtonPin)
		if err != nil {
			return fmt.Errorf("button: %w", err)
		}
		d.closers = append(d.closers, button.Halt)
		watcher = NewButtonWatcher(button, d.status, d.cfg.GPIO.Debounce, d.clock, d.logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.renderer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return d.connector.Supervise(gctx, d.cfg.Network.SSID, d.cfg.Network.Password, d.addr)
	})
	if watcher != nil {
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}
	if d.cfg.MetricsAddr != "" {
		msrv := &http.Server{Addr: d.cfg.MetricsAddr, Handler: d.metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			d.logger.Info("metrics listening", "addr", d.cfg.MetricsAddr)
			return serveUntilDone(gctx, msrv)
		})
	}
	g.Go(func() error {
		return d.server.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.logger.Info("shut down")
	return nil
}

// close releases GPIO pins.  The LED is switched off on the way out.
func (d *device) close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			d.logger.Warn("release hardware", "error", err)
		}
	}
	d.closers = nil
}

// openDisplayOrLog falls back to the log drawer when the panel is disabled
// or cannot be opened; a missing display never stops the device.
func openDisplayOrLog(cfg DisplayConfig, logger *slog.Logger) display.Drawer {
	if !cfg.Enabled {
		return newLogDrawer(cfg, logger)
	}
	out, err := openDisplay(cfg, logger)
	if err != nil {
		logger.Warn("display unavailable, logging frames instead", "error", err)
		return newLogDrawer(cfg, logger)
	}
	return out
}

// pageURL joins the station address with the port of the listen address.
func pageURL(host, listen string) string {
	_, port, err := net.SplitHostPort(listen)
	if err != nil || port == "" || port == "80" {
		return "http://" + host + "/"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
