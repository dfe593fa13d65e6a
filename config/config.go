package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-asconlink/channel"
	"github.com/moffa90/go-asconlink/logging"
	"github.com/moffa90/go-asconlink/protocol"
)

// Environment variables that override the file.
const (
	EnvPort     = "ASCONLINK_PORT"
	EnvLogLevel = "ASCONLINK_LOG_LEVEL"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "asconlink.yaml"

// Config represents the asconlink configuration
type Config struct {
	Serial      channel.SerialConfig `yaml:"serial"`
	Timeouts    Timeouts             `yaml:"timeouts"`
	LogLevel    string               `yaml:"log_level"`
	LogFile     string               `yaml:"log_file"`     // optional, in addition to stderr
	MetricsAddr string               `yaml:"metrics_addr"` // empty disables the endpoint
}

// Timeouts bound the wait for each kind of reply
type Timeouts struct {
	Load     time.Duration `yaml:"load"`
	Trigger  time.Duration `yaml:"trigger"`
	Fetch    time.Duration `yaml:"fetch"`
	Register time.Duration `yaml:"register"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Serial: channel.DefaultSerialConfig(),
		Timeouts: Timeouts{
			Load:     protocol.DefaultLoadTimeout,
			Trigger:  protocol.DefaultTriggerTimeout,
			Fetch:    protocol.DefaultFetchTimeout,
			Register: protocol.DefaultRegisterTimeout,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from a file. Missing values take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save writes configuration to a file atomically
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to temp file then rename atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvPort); v != "" {
		c.Serial.Port = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.Serial.Mode(); err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	if c.Serial.BaudRate < 0 {
		return fmt.Errorf("serial.baud_rate must not be negative")
	}
	if c.Serial.DataBits != 0 && (c.Serial.DataBits < 5 || c.Serial.DataBits > 8) {
		return fmt.Errorf("serial.data_bits must be between 5 and 8")
	}

	for name, d := range map[string]time.Duration{
		"load":     c.Timeouts.Load,
		"trigger":  c.Timeouts.Trigger,
		"fetch":    c.Timeouts.Fetch,
		"register": c.Timeouts.Register,
	} {
		if d <= 0 {
			return fmt.Errorf("timeouts.%s must be positive", name)
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}
