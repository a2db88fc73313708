package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
)

// ConnectionReason classifies why joining the network failed.
type ConnectionReason string

const (
	ReasonBadCredentials ConnectionReason = "bad-credentials"
	ReasonNotFound       ConnectionReason = "ap-not-found"
	ReasonTimeout        ConnectionReason = "timeout"
	ReasonFailed         ConnectionReason = "failed"
)

// ConnectionError is returned when the station cannot join the network or
// obtain an address.  It is fatal at boot.
type ConnectionError struct {
	SSID   string
	Reason ConnectionReason
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wifi %q: %s: %v", e.SSID, e.Reason, e.Err)
	}
	return fmt.Sprintf("wifi %q: %s", e.SSID, e.Reason)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrNoAddress is reported by a station whose interface has no IPv4 address.
var ErrNoAddress = errors.New("no IPv4 address assigned")

// Station joins an access point as a client and reports the address it was
// given.
type Station interface {
	// Associate joins the network.  It may return a *ConnectionError to
	// classify the failure.
	Associate(ctx context.Context, ssid, password string) error
	// Addr returns the current IPv4 address, or ErrNoAddress.
	Addr(ctx context.Context) (netip.Addr, error)
}

// Connector drives a Station through the initial connection and keeps the
// link up afterwards.
type Connector struct {
	station  Station
	logger   *slog.Logger
	clock    clockwork.Clock
	timeout  time.Duration
	addrPoll time.Duration
	check    time.Duration
	retry    retryPolicy
}

// NewConnector builds a connector from the network section of the config.
func NewConnector(station Station, cfg NetworkConfig, logger *slog.Logger, clock clockwork.Clock) *Connector {
	c := &Connector{
		station:  station,
		logger:   logger,
		clock:    clock,
		timeout:  cfg.ConnectTimeout,
		addrPoll: 500 * time.Millisecond,
		check:    cfg.CheckInterval,
	}
	c.retry = retryPolicy{
		MaxAttempts:    cfg.ReconnectAttempts,
		InitialBackoff: cfg.ReconnectBackoff,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			c.logger.Warn("reconnect failed", "attempt", attempt, "error", err, "backoff", backoff)
		},
	}
	return c
}

// Connect blocks until the station is associated and has an address.  Any
// failure, including the timeout, is a *ConnectionError.
func (c *Connector) Connect(ctx context.Context, ssid, password string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("joining network", "ssid", ssid)
	if err := c.station.Associate(ctx, ssid, password); err != nil {
		return netip.Addr{}, asConnectionError(ctx, ssid, err)
	}

	for {
		addr, err := c.station.Addr(ctx)
		if err == nil {
			c.logger.Info("network up", "ssid", ssid, "addr", addr)
			return addr, nil
		}
		if !errors.Is(err, ErrNoAddress) {
			return netip.Addr{}, asConnectionError(ctx, ssid, err)
		}
		select {
		case <-ctx.Done():
			return netip.Addr{}, asConnectionError(ctx, ssid, err)
		case <-c.clock.After(c.addrPoll):
		}
	}
}

// Supervise checks the link every check interval and reconnects with
// exponential backoff when it is lost.  It returns nil when ctx is done and
// an error once reconnecting has been given up, at which point the process
// is expected to exit and be restarted.  The address shown to users stays
// the one from boot; a different address after reconnect is only logged.
func (c *Connector) Supervise(ctx context.Context, ssid, password string, boot netip.Addr) error {
	ticker := c.clock.NewTicker(c.check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}

		_, err := c.station.Addr(ctx)
		if err == nil {
			continue
		}
		c.logger.Warn("network link lost", "ssid", ssid, "error", err)

		addr, err := retryDo(ctx, c.clock, c.retry, classifyConnectionError, func() (netip.Addr, error) {
			return c.Connect(ctx, ssid, password)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("giving up on network: %w", err)
		}
		if addr != boot {
			c.logger.Warn("address changed after reconnect", "boot", boot, "current", addr)
		}
	}
}

// classifyConnectionError stops retrying when the credentials were refused;
// everything else may be a transient radio problem.
func classifyConnectionError(err error) retryAction {
	var ce *ConnectionError
	if errors.As(err, &ce) && ce.Reason == ReasonBadCredentials {
		return retryStop
	}
	return retryAgain
}

func asConnectionError(ctx context.Context, ssid string, err error) error {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ConnectionError{SSID: ssid, Reason: ReasonTimeout, Err: err}
	}
	return &ConnectionError{SSID: ssid, Reason: ReasonFailed, Err: err}
}
