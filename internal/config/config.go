package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config holds client configuration values.
type Config struct {
	ServerURL       string        `mapstructure:"server_url" yaml:"server_url"`
	SnapshotPath    string        `mapstructure:"snapshot_path" yaml:"snapshot_path"`
	SnapshotTimeout time.Duration `mapstructure:"snapshot_timeout" yaml:"snapshot_timeout"`
	IdentityDB      string        `mapstructure:"identity_db" yaml:"identity_db"`

	BridgeAddr        string        `mapstructure:"bridge_addr" yaml:"bridge_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	ReconnectBaseDelay   time.Duration `mapstructure:"reconnect_base_delay" yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `mapstructure:"reconnect_max_delay" yaml:"reconnect_max_delay"`
	ReconnectMaxAttempts int           `mapstructure:"reconnect_max_attempts" yaml:"reconnect_max_attempts"`

	SendRate     float64       `mapstructure:"send_rate" yaml:"send_rate"`
	SendBurst    int           `mapstructure:"send_burst" yaml:"send_burst"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ReadLimit    int64         `mapstructure:"read_limit" yaml:"read_limit"`

	NoticeDuration time.Duration `mapstructure:"notice_duration" yaml:"notice_duration"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:            "http://localhost:8000",
		SnapshotPath:         "/api/session/{handle}/queue",
		SnapshotTimeout:      10 * time.Second,
		IdentityDB:           "queuesync.db",
		BridgeAddr:           "127.0.0.1:8090",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    10 * time.Second,
		ReconnectMaxAttempts: 5,
		SendRate:             10,
		SendBurst:            20,
		WriteTimeout:         5 * time.Second,
		ReadLimit:            1 << 20,
		NoticeDuration:       5 * time.Second,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.SnapshotPath != "" {
		c.SnapshotPath = other.SnapshotPath
	}
	if other.SnapshotTimeout != 0 {
		c.SnapshotTimeout = other.SnapshotTimeout
	}
	if other.IdentityDB != "" {
		c.IdentityDB = other.IdentityDB
	}
	if other.BridgeAddr != "" {
		c.BridgeAddr = other.BridgeAddr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.ReconnectBaseDelay != 0 {
		c.ReconnectBaseDelay = other.ReconnectBaseDelay
	}
	if other.ReconnectMaxDelay != 0 {
		c.ReconnectMaxDelay = other.ReconnectMaxDelay
	}
	if other.ReconnectMaxAttempts != 0 {
		c.ReconnectMaxAttempts = other.ReconnectMaxAttempts
	}
	if other.SendRate != 0 {
		c.SendRate = other.SendRate
	}
	if other.SendBurst != 0 {
		c.SendBurst = other.SendBurst
	}
	if other.WriteTimeout != 0 {
		c.WriteTimeout = other.WriteTimeout
	}
	if other.ReadLimit != 0 {
		c.ReadLimit = other.ReadLimit
	}
	if other.NoticeDuration != 0 {
		c.NoticeDuration = other.NoticeDuration
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}

// Validate reports the first unusable value.
func (c Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("server_url: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("server_url: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server_url: missing host")
	}
	if c.ReconnectBaseDelay <= 0 {
		return errors.New("reconnect_base_delay must be positive")
	}
	if c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return errors.New("reconnect_max_delay must not be below reconnect_base_delay")
	}
	if c.ReconnectMaxAttempts < 0 {
		return errors.New("reconnect_max_attempts must not be negative")
	}
	if c.SendRate < 0 {
		return errors.New("send_rate must not be negative")
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return fmt.Errorf("log_format: unsupported %q", c.LogFormat)
	}
	return nil
}
