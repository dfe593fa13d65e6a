package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asconlink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Timeouts.Load)
	assert.Equal(t, 2*time.Second, cfg.Timeouts.Fetch)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.Register)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
serial:
  port: /dev/ttyUSB1
  baud_rate: 9600
  parity: even
timeouts:
  fetch: 3s
log_level: debug
metrics_addr: ":9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, "even", cfg.Serial.Parity)
	assert.Equal(t, 8, cfg.Serial.DataBits, "unset fields keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Fetch)
	assert.Equal(t, time.Second, cfg.Timeouts.Trigger)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = Load(writeFile(t, "serial: [not, a, map]"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadOrDefault(writeFile(t, "log_level: [x]"))
	assert.Error(t, err, "a broken file is still an error")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Serial.Port = "COM4"
	cfg.Timeouts.Trigger = 1500 * time.Millisecond

	require.NoError(t, Save(cfg, path))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPort, "/dev/ttyACM0")
	t.Setenv(EnvLogLevel, "warn")

	cfg := DefaultConfig()
	cfg.ApplyEnv()
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{name: "bad parity", modify: func(c *Config) { c.Serial.Parity = "space" }, errMsg: "serial"},
		{name: "bad stop bits", modify: func(c *Config) { c.Serial.StopBits = 3 }, errMsg: "serial"},
		{name: "bad data bits", modify: func(c *Config) { c.Serial.DataBits = 9 }, errMsg: "data_bits"},
		{name: "zero timeout", modify: func(c *Config) { c.Timeouts.Fetch = 0 }, errMsg: "timeouts.fetch"},
		{name: "bad level", modify: func(c *Config) { c.LogLevel = "chatty" }, errMsg: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
