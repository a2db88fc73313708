package main

import (
	"fmt"

	"github.com/Wifx/gonetworkmanager/v2"
)

// nmProfileID names the NetworkManager profile owned by the device.  It is
// replaced on every activation so changed credentials take effect.
const nmProfileID = "deskstatus"

// nmDevice is a wireless device reached through NetworkManager's D-Bus API.
type nmDevice struct {
	nm  gonetworkmanager.NetworkManager
	dev gonetworkmanager.Device
}

func openNMDevice(iface string) (wifiDevice, error) {
	nm, err := gonetworkmanager.NewNetworkManager()
	if err != nil {
		return nil, fmt.Errorf("connect to NetworkManager: %w", err)
	}
	dev, err := nm.GetDeviceByIpIface(iface)
	if err != nil {
		return nil, fmt.Errorf("device %q: %w", iface, err)
	}
	return &nmDevice{nm: nm, dev: dev}, nil
}

func (d *nmDevice) SubscribeState(receiver chan gonetworkmanager.DeviceStateChange, exit chan struct{}) error {
	return d.dev.SubscribeState(receiver, exit)
}

// Activate replaces the device profile and activates it on this device.
// The PSK travels to NetworkManager over the system bus only.
func (d *nmDevice) Activate(ssid, password string) error {
	if err := removeProfile(nmProfileID); err != nil {
		return err
	}
	if _, err := d.nm.AddAndActivateConnection(wirelessProfile(ssid, password), d.dev); err != nil {
		return fmt.Errorf("activate %q: %w", ssid, err)
	}
	return nil
}

func removeProfile(id string) error {
	settings, err := gonetworkmanager.NewSettings()
	if err != nil {
		return fmt.Errorf("open NetworkManager settings: %w", err)
	}
	conns, err := settings.ListConnections()
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	for _, c := range conns {
		cs, err := c.GetSettings()
		if err != nil {
			continue
		}
		if name, _ := cs["connection"]["id"].(string); name != id {
			continue
		}
		if err := c.Delete(); err != nil {
			return fmt.Errorf("remove profile %q: %w", id, err)
		}
	}
	return nil
}

// wirelessProfile builds the settings of a WPA-PSK profile, or of an open
// network when password is empty.
func wirelessProfile(ssid, password string) map[string]map[string]interface{} {
	profile := map[string]map[string]interface{}{
		"connection": {
			"id":          nmProfileID,
			"type":        "802-11-wireless",
			"autoconnect": true,
		},
		"802-11-wireless": {
			"ssid": []byte(ssid),
			"mode": "infrastructure",
		},
		"ipv4": {"method": "auto"},
		"ipv6": {"method": "ignore"},
	}
	if password != "" {
		profile["802-11-wireless-security"] = map[string]interface{}{
			"key-mgmt": "wpa-psk",
			"psk":      password,
		}
	}
	return profile
}
