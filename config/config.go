// Package config loads CLI configuration from a YAML file and the
// environment. Command-line flags take precedence over both and are applied by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/anchorageoss/nsm-session/codec"
	"github.com/anchorageoss/nsm-session/nsm"
)

// Environment variables read by LoadFromEnv
const (
	EnvConfigPath = "NSM_SESSION_CONFIG"
	EnvDevicePath = "NSM_DEVICE_PATH"
	EnvHash       = "NSM_HASH"
	EnvLogLevel   = "NSM_LOG_LEVEL"
)

// Config holds CLI configuration.
type Config struct {
	// DevicePath is checked for existence when a session opens
	DevicePath string `yaml:"device_path"`

	// Hash names the register hash algorithm (sha256, sha384, sha512)
	Hash string `yaml:"hash"`

	// Format is the document output format (json, cbor)
	Format string `yaml:"format"`

	// LogLevel is a zap level name (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	Demo DemoConfig `yaml:"demo"`
}

// DemoConfig configures the keep-alive loop of the demo command.
type DemoConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RandomBytes int           `yaml:"random_bytes"`
}

// DefaultConfig returns configuration with defaults.
func DefaultConfig() *Config {
	return &Config{
		DevicePath: nsm.DefaultDevicePath,
		Hash:       "sha256",
		Format:     string(codec.FormatJSON),
		LogLevel:   "info",
		Demo: DemoConfig{
			Interval:    5 * time.Second,
			RandomBytes: 32,
		},
	}
}

// ConfigPath returns the config file location. NSM_SESSION_CONFIG overrides
// the default of ~/.config/nsm-session/config.yaml; an empty result means no
// location could be determined.
func ConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "nsm-session", "config.yaml")
}

// Load reads the YAML file at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// LoadFromEnv overrides fields from environment variables that are set.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv(EnvDevicePath); v != "" {
		c.DevicePath = v
	}
	if v := os.Getenv(EnvHash); v != "" {
		c.Hash = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if _, err := nsm.ParseHashAlg(c.Hash); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := codec.ParseFormat(c.Format); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w: %v", nsm.ErrInvalidArgument, err)
	}
	if c.Demo.Interval <= 0 {
		return fmt.Errorf("config: %w: demo interval must be positive", nsm.ErrInvalidArgument)
	}
	if c.Demo.RandomBytes <= 0 {
		return fmt.Errorf("config: %w: demo random_bytes must be positive", nsm.ErrInvalidArgument)
	}
	return nil
}

// HashAlg returns the parsed hash algorithm
func (c *Config) HashAlg() (nsm.HashAlg, error) {
	return nsm.ParseHashAlg(c.Hash)
}
