package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anchorageoss/nsm-session/nsm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, nsm.DefaultDevicePath, cfg.DevicePath)
	assert.Equal(t, "sha256", cfg.Hash)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, 5*time.Second, cfg.Demo.Interval)
	require.NoError(t, cfg.Validate())

	alg, err := cfg.HashAlg()
	require.NoError(t, err)
	assert.Equal(t, nsm.HashSHA256, alg)
}

func TestConfigPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	path := ConfigPath()
	if path == "" {
		t.Skip("Could not determine home directory")
	}
	expected := filepath.Join(".config", "nsm-session", "config.yaml")
	assert.True(t, strings.HasSuffix(path, expected), "ConfigPath() = %q", path)

	t.Setenv(EnvConfigPath, "/etc/nsm.yaml")
	assert.Equal(t, "/etc/nsm.yaml", ConfigPath())
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("empty path yields defaults", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file keeps other defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("device_path: /dev/nsm\nhash: sha384\ndemo:\n  interval: 250ms\n"), 0600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/dev/nsm", cfg.DevicePath)
		assert.Equal(t, "sha384", cfg.Hash)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 250*time.Millisecond, cfg.Demo.Interval)
		assert.Equal(t, 32, cfg.Demo.RandomBytes)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("hash: [\n"), 0600))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Format = "cbor"
	cfg.Demo.RandomBytes = 8

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvDevicePath, "/tmp/nsm")
	t.Setenv(EnvHash, "sha512")
	t.Setenv(EnvLogLevel, "")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	assert.Equal(t, "/tmp/nsm", cfg.DevicePath)
	assert.Equal(t, "sha512", cfg.Hash)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"hash", func(c *Config) { c.Hash = "md5" }},
		{"format", func(c *Config) { c.Format = "xml" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"interval", func(c *Config) { c.Demo.Interval = 0 }},
		{"random bytes", func(c *Config) { c.Demo.RandomBytes = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, nsm.ErrInvalidArgument)
		})
	}
}
