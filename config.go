package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is the file read when no -config flag is given.
const defaultConfigPath = "deskstatus.yaml"

// Network credentials baked in at build time:
//
//	go build -ldflags "-X main.buildSSID=office -X main.buildPassword=secret"
var (
	buildSSID     string
	buildPassword string
)

// Station kinds understood by newStation.
const (
	StationNetworkManager = "networkmanager"
	StationHost           = "host"
)

// Config is the top-level structure read from deskstatus.yaml.  Credentials
// are never read from the file; they come from the build or the environment.
type Config struct {
	HTTPAddr    string        `yaml:"http_addr"`    // listen address for the status page
	MetricsAddr string        `yaml:"metrics_addr"` // empty disables the metrics listener
	HistoryFile string        `yaml:"history_file"` // empty disables the status history
	Network     NetworkConfig `yaml:"network"`
	Display     DisplayConfig `yaml:"display"`
	GPIO        GPIOConfig    `yaml:"gpio"`
	Log         LogConfig     `yaml:"log"`
}

// NetworkConfig controls how the device joins the WiFi network.
type NetworkConfig struct {
	Station           string        `yaml:"station"`   // "networkmanager" or "host"
	Interface         string        `yaml:"interface"` // e.g. wlan0
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	CheckInterval     time.Duration `yaml:"check_interval"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`

	SSID     string `yaml:"-"`
	Password string `yaml:"-"`
}

// DisplayConfig describes the attached SSD1306 panel.
type DisplayConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Bus      string        `yaml:"bus"` // I2C bus name, empty for the first one
	Width    int           `yaml:"width"`
	Height   int           `yaml:"height"` // 32 or 64
	Rotated  bool          `yaml:"rotated"`
	Interval time.Duration `yaml:"interval"`
}

// GPIOConfig holds optional BCM pin numbers.  Zero disables the pin.
type GPIOConfig struct {
	LEDPin    int           `yaml:"led_pin"`
	ButtonPin int           `yaml:"button_pin"`
	Debounce  time.Duration `yaml:"debounce"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// envOverrides lists the variables that take precedence over the file and
// the build.  Unset or empty variables leave the loaded values alone, except
// WIFI_PASS: set but empty selects an open network.
type envOverrides struct {
	SSID      string `env:"WIFI_SSID"`
	Password  string `env:"WIFI_PASS"`
	HTTPAddr  string `env:"HTTP_ADDR"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		HTTPAddr: ":80",
		Network: NetworkConfig{
			Station:           StationNetworkManager,
			Interface:         "wlan0",
			ConnectTimeout:    30 * time.Second,
			CheckInterval:     10 * time.Second,
			ReconnectAttempts: 5,
			ReconnectBackoff:  2 * time.Second,
			SSID:              buildSSID,
			Password:          buildPassword,
		},
		Display: DisplayConfig{
			Enabled:  true,
			Width:    128,
			Height:   64,
			Interval: time.Second,
		},
		GPIO: GPIOConfig{
			Debounce: 250 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfig reads path on top of the defaults and applies the environment.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no config file, using defaults", "path", path)
	default:
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	var ov envOverrides
	if err := env.Load(&ov, nil); err != nil {
		return Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	applyOverrides(&cfg, ov, os.LookupEnv)

	return cfg, nil
}

func applyOverrides(cfg *Config, ov envOverrides, lookup func(string) (string, bool)) {
	if ov.SSID != "" {
		cfg.Network.SSID = ov.SSID
	}
	if _, ok := lookup("WIFI_PASS"); ok {
		cfg.Network.Password = ov.Password
	}
	if ov.HTTPAddr != "" {
		cfg.HTTPAddr = ov.HTTPAddr
	}
	if ov.LogLevel != "" {
		cfg.Log.Level = ov.LogLevel
	}
	if ov.LogFormat != "" {
		cfg.Log.Format = ov.LogFormat
	}
}

// Validate reports the first problem that would stop the device from
// starting.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	switch c.Network.Station {
	case StationNetworkManager:
		if c.Network.SSID == "" {
			return errors.New("WIFI_SSID is required for the networkmanager station")
		}
		if c.Network.Interface == "" {
			return errors.New("network.interface is required for the networkmanager station")
		}
	case StationHost:
	default:
		return fmt.Errorf("unknown network.station %q", c.Network.Station)
	}
	if c.Network.ConnectTimeout <= 0 {
		return errors.New("network.connect_timeout must be positive")
	}
	if c.Network.CheckInterval <= 0 {
		return errors.New("network.check_interval must be positive")
	}
	if c.Network.ReconnectAttempts < 1 {
		return errors.New("network.reconnect_attempts must be at least 1")
	}
	if c.Network.ReconnectBackoff <= 0 {
		return errors.New("network.reconnect_backoff must be positive")
	}
	if c.Display.Enabled {
		if c.Display.Width <= 0 {
			return errors.New("display.width must be positive")
		}
		if c.Display.Height != 32 && c.Display.Height != 64 {
			return fmt.Errorf("display.height must be 32 or 64, got %d", c.Display.Height)
		}
		if c.Display.Interval <= 0 {
			return errors.New("display.interval must be positive")
		}
	}
	if c.GPIO.LEDPin < 0 || c.GPIO.ButtonPin < 0 {
		return errors.New("gpio pins must not be negative")
	}
	if c.GPIO.ButtonPin > 0 && c.GPIO.Debounce <= 0 {
		return errors.New("gpio.debounce must be positive when a button is configured")
	}
	return nil
}
