package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"WIFI_SSID", "WIFI_PASS", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func withBuildCredentials(t *testing.T, ssid, password string) {
	t.Helper()
	oldSSID, oldPassword := buildSSID, buildPassword
	buildSSID, buildPassword = ssid, password
	t.Cleanup(func() { buildSSID, buildPassword = oldSSID, oldPassword })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deskstatus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `
http_addr: ":8080"
history_file: /var/lib/deskstatus/history.log
network:
  station: host
  connect_timeout: 45s
display:
  height: 32
gpio:
  led_pin: 17
  button_pin: 27
log:
  level: debug
  format: json
`)

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "/var/lib/deskstatus/history.log", cfg.HistoryFile)
	assert.Equal(t, StationHost, cfg.Network.Station)
	assert.Equal(t, 45*time.Second, cfg.Network.ConnectTimeout)
	assert.Equal(t, "wlan0", cfg.Network.Interface, "unset keys keep their defaults")
	assert.Equal(t, 32, cfg.Display.Height)
	assert.Equal(t, 128, cfg.Display.Width)
	assert.True(t, cfg.Display.Enabled)
	assert.Equal(t, 17, cfg.GPIO.LEDPin)
	assert.Equal(t, 27, cfg.GPIO.ButtonPin)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoadConfig_CredentialsAreNotReadFromFile(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "network:\n  ssid: fromfile\n  password: fromfile\n")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, buildSSID, cfg.Network.SSID)
	assert.Equal(t, buildPassword, cfg.Network.Password)
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("WIFI_SSID", "office")
	t.Setenv("WIFI_PASS", "hunter2")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "warn")
	path := writeConfig(t, "http_addr: \":8080\"\nlog:\n  level: debug\n")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "office", cfg.Network.SSID)
	assert.Equal(t, "hunter2", cfg.Network.Password)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_EmptyPasswordSelectsOpenNetwork(t *testing.T) {
	clearConfigEnv(t)
	withBuildCredentials(t, "office", "built-in")
	t.Setenv("WIFI_SSID", "cafe")
	t.Setenv("WIFI_PASS", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "cafe", cfg.Network.SSID)
	assert.Empty(t, cfg.Network.Password)
}

func TestLoadConfig_UnsetPasswordKeepsBuildValue(t *testing.T) {
	clearConfigEnv(t)
	withBuildCredentials(t, "office", "built-in")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "office", cfg.Network.SSID)
	assert.Equal(t, "built-in", cfg.Network.Password)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "http_addr: [unterminated\n")

	_, err := LoadConfig(path)

	assert.ErrorContains(t, err, "invalid")
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Network.SSID = "office"
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "host station needs no ssid", mutate: func(c *Config) {
			c.Network.Station = StationHost
			c.Network.SSID = ""
		}},
		{name: "missing ssid", mutate: func(c *Config) { c.Network.SSID = "" }, wantErr: "WIFI_SSID"},
		{name: "unknown station", mutate: func(c *Config) { c.Network.Station = "bluetooth" }, wantErr: "unknown network.station"},
		{name: "no http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantErr: "http_addr"},
		{name: "zero timeout", mutate: func(c *Config) { c.Network.ConnectTimeout = 0 }, wantErr: "connect_timeout"},
		{name: "no reconnect attempts", mutate: func(c *Config) { c.Network.ReconnectAttempts = 0 }, wantErr: "reconnect_attempts"},
		{name: "odd display height", mutate: func(c *Config) { c.Display.Height = 48 }, wantErr: "32 or 64"},
		{name: "disabled display skips checks", mutate: func(c *Config) {
			c.Display.Enabled = false
			c.Display.Height = 0
		}},
		{name: "negative pin", mutate: func(c *Config) { c.GPIO.LEDPin = -1 }, wantErr: "negative"},
		{name: "button without debounce", mutate: func(c *Config) {
			c.GPIO.ButtonPin = 27
			c.GPIO.Debounce = 0
		}, wantErr: "debounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
