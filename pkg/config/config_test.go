package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "otprog.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint16(0x0403), cfg.Adapter.VID)
	assert.Equal(t, uint16(0x6014), cfg.Adapter.PID)
	assert.Equal(t, 0x8000, cfg.Transfer.ChunkSize)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[adapter]
tck_divisor = 29

[timing]
shutdown_pulses = 1024
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, uint16(29), cfg.Adapter.TCKDivisor)
	assert.Equal(t, 1024, cfg.Timing.ShutdownPulses)
	// Untouched sections keep their defaults.
	assert.Equal(t, uint16(0x0403), cfg.Adapter.VID)
	assert.Equal(t, 512000, cfg.Timing.StartupPulses)
	assert.Equal(t, 20, cfg.Transfer.RecvAttempts)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
[adapter]
speed = "fast"
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "speed")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.ErrorIs(t, err, ErrConfig)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero vid", func(c *Config) { c.Adapter.VID = 0 }},
		{"zero chunk", func(c *Config) { c.Transfer.ChunkSize = 0 }},
		{"oversize chunk", func(c *Config) { c.Transfer.ChunkSize = 0x10001 }},
		{"zero attempts", func(c *Config) { c.Transfer.RecvAttempts = 0 }},
		{"negative pulses", func(c *Config) { c.Timing.StartupPulses = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
[transfer]
chunk_size = 0
`)
	_, err := Load(path)
	require.ErrorIs(t, err, ErrConfig)
}
