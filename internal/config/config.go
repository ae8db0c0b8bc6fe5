// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultLogLevel      = "info"
	DefaultVolume        = 80
	DefaultShortHold     = "7s"
	DefaultLongHold      = "30s"
	DefaultBusName       = "io.github.jmylchreest.displaysyncd"
	DefaultElapsedFormat = "mm:ss"
)

// Config represents the displaysyncd configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Audio   AudioConfig   `toml:"audio"`
	Sync    SyncConfig    `toml:"sync"`
	DBus    DBusConfig    `toml:"dbus"`
	Display DisplayConfig `toml:"display"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// AudioConfig holds playback options.
type AudioConfig struct {
	Enabled bool `toml:"enabled"`
	Volume  int  `toml:"volume"` // 0-100
}

// SyncConfig holds play-sync group hold durations.
type SyncConfig struct {
	ShortHold string `toml:"short_hold"` // display parties
	LongHold  string `toml:"long_hold"`  // media parties
}

// DBusConfig holds the session bus surface options.
type DBusConfig struct {
	Enabled bool   `toml:"enabled"`
	BusName string `toml:"bus_name"`
}

// DisplayConfig holds terminal render target options.
type DisplayConfig struct {
	ShowArtworkURL bool   `toml:"show_artwork_url"`
	ElapsedFormat  string `toml:"elapsed_format"` // mm:ss or relative
}

// Validation errors.
var (
	ErrInvalidLogLevel = errors.New("log level must be debug, info, warn, or error")
	ErrInvalidVolume   = errors.New("volume must be between 0 and 100")
	ErrInvalidHold     = errors.New("hold duration must parse and be positive")
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  DefaultVolume,
		},
		Sync: SyncConfig{
			ShortHold: DefaultShortHold,
			LongHold:  DefaultLongHold,
		},
		DBus: DBusConfig{
			Enabled: true,
			BusName: DefaultBusName,
		},
		Display: DisplayConfig{
			ShowArtworkURL: false,
			ElapsedFormat:  DefaultElapsedFormat,
		},
	}
}

// ConfigPath returns the path to the config file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "displaysyncd", "config.toml")
}

// Load loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidVolume, c.Audio.Volume)
	}

	if _, err := c.holdDuration(c.Sync.ShortHold); err != nil {
		return fmt.Errorf("short_hold: %w", err)
	}
	if _, err := c.holdDuration(c.Sync.LongHold); err != nil {
		return fmt.Errorf("long_hold: %w", err)
	}

	return nil
}

// ShortHold returns the parsed short hold duration.
func (c *Config) ShortHold() time.Duration {
	d, err := c.holdDuration(c.Sync.ShortHold)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShortHold)
	}
	return d
}

// LongHold returns the parsed long hold duration.
func (c *Config) LongHold() time.Duration {
	d, err := c.holdDuration(c.Sync.LongHold)
	if err != nil {
		d, _ = time.ParseDuration(DefaultLongHold)
	}
	return d
}

func (c *Config) holdDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidHold, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidHold, raw)
	}
	return d, nil
}

// LogLevel returns the slog level for the configured level string.
func (c *Config) LogLevel() slog.Level {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
