package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/Wifx/gonetworkmanager/v2"
)

// interfaceAddrs lists the addresses of one interface, or of all of them
// when name is empty.
type interfaceAddrs func(name string) ([]net.Addr, error)

func systemAddrs(name string) ([]net.Addr, error) {
	if name == "" {
		return net.InterfaceAddrs()
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, err
	}
	return iface.Addrs()
}

// newStation returns the Station selected by cfg.Station.
func newStation(cfg NetworkConfig, logger *slog.Logger) (Station, error) {
	switch cfg.Station {
	case StationNetworkManager:
		return &NMStation{Interface: cfg.Interface, open: openNMDevice, addrs: systemAddrs, logger: logger}, nil
	case StationHost:
		return &HostStation{Interface: cfg.Interface, logger: logger, addrs: systemAddrs}, nil
	default:
		return nil, fmt.Errorf("unknown station %q", cfg.Station)
	}
}

// wifiDevice is the part of a NetworkManager wireless device the station
// needs.  State changes carry NetworkManager's own reason codes.
type wifiDevice interface {
	SubscribeState(receiver chan gonetworkmanager.DeviceStateChange, exit chan struct{}) error
	Activate(ssid, password string) error
}

// NMStation joins networks by asking NetworkManager over D-Bus to activate
// a wireless profile, then waits for the device to report the outcome.
type NMStation struct {
	Interface string
	open      func(iface string) (wifiDevice, error)
	addrs     interfaceAddrs
	logger    *slog.Logger
}

// NetworkManager NMDeviceStateReason values the station tells apart.
const (
	nmReasonNoSecrets         gonetworkmanager.NmDeviceStateReason = 7
	nmReasonSupplicantTimeout gonetworkmanager.NmDeviceStateReason = 11
	nmReasonSSIDNotFound      gonetworkmanager.NmDeviceStateReason = 53
)

// Associate activates the profile and blocks until the device is activated,
// fails, or ctx is done.
func (s *NMStation) Associate(ctx context.Context, ssid, password string) error {
	dev, err := s.open(s.Interface)
	if err != nil {
		return &ConnectionError{SSID: ssid, Reason: ReasonFailed, Err: err}
	}

	changes := make(chan gonetworkmanager.DeviceStateChange, 16)
	exit := make(chan struct{})
	defer close(exit)
	if err := dev.SubscribeState(changes, exit); err != nil {
		return &ConnectionError{SSID: ssid, Reason: ReasonFailed, Err: fmt.Errorf("subscribe to device state: %w", err)}
	}
	if err := dev.Activate(ssid, password); err != nil {
		return &ConnectionError{SSID: ssid, Reason: ReasonFailed, Err: err}
	}

	for {
		select {
		case <-ctx.Done():
			return &ConnectionError{SSID: ssid, Reason: ReasonTimeout, Err: ctx.Err()}
		case ch := <-changes:
			s.logger.Debug("wifi device state", "state", ch.State, "reason", ch.Reason)
			switch ch.State {
			case gonetworkmanager.NmDeviceStateActivated:
				return nil
			case gonetworkmanager.NmDeviceStateFailed:
				return deviceFailure(ssid, ch.Reason)
			}
		}
	}
}

// Addr returns the first IPv4 address of the WiFi interface.
func (s *NMStation) Addr(ctx context.Context) (netip.Addr, error) {
	return firstIPv4(s.addrs, s.Interface)
}

func deviceFailure(ssid string, reason gonetworkmanager.NmDeviceStateReason) error {
	err := fmt.Errorf("device failed with reason %d", uint32(reason))
	switch reason {
	case nmReasonNoSecrets:
		return &ConnectionError{SSID: ssid, Reason: ReasonBadCredentials, Err: err}
	case nmReasonSSIDNotFound:
		return &ConnectionError{SSID: ssid, Reason: ReasonNotFound, Err: err}
	case nmReasonSupplicantTimeout:
		return &ConnectionError{SSID: ssid, Reason: ReasonTimeout, Err: err}
	default:
		return &ConnectionError{SSID: ssid, Reason: ReasonFailed, Err: err}
	}
}

// HostStation uses whatever network the host is already on.  It is meant
// for wired boards and for running the device on a workstation.
type HostStation struct {
	Interface string
	logger    *slog.Logger
	addrs     interfaceAddrs
}

// Associate does nothing; the host manages its own network.
func (s *HostStation) Associate(ctx context.Context, ssid, password string) error {
	s.logger.Debug("host station: skipping association", "ssid", ssid)
	return nil
}

// Addr returns the first IPv4 address of Interface, or of any interface when
// Interface is empty.
func (s *HostStation) Addr(ctx context.Context) (netip.Addr, error) {
	return firstIPv4(s.addrs, s.Interface)
}

func firstIPv4(list interfaceAddrs, name string) (netip.Addr, error) {
	addrs, err := list(name)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("interface %q: %w", name, err)
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipnet.IP.To4()
		if ip4 == nil || ip4.IsLoopback() {
			continue
		}
		if addr, ok := netip.AddrFromSlice(ip4); ok {
			return addr, nil
		}
	}
	return netip.Addr{}, ErrNoAddress
}
