// Package config loads programmer settings from a TOML file and fills in
// defaults for everything the file leaves out.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ErrConfig tags any configuration load or validation failure.
var ErrConfig = errors.New("config: invalid configuration")

// Adapter selects and tunes the USB adapter.
type Adapter struct {
	VID        uint16 `toml:"vid"`
	PID        uint16 `toml:"pid"`
	LatencyMs  uint8  `toml:"latency_ms"`
	TCKDivisor uint16 `toml:"tck_divisor"`
}

// Transfer bounds the register transfer engine.
type Transfer struct {
	ChunkSize    int `toml:"chunk_size"`
	RecvAttempts int `toml:"recv_attempts"`
}

// Timing sets the clocked delays around configuration.
type Timing struct {
	ShutdownPulses int `toml:"shutdown_pulses"`
	StartupPulses  int `toml:"startup_pulses"`
}

// Config is the full programmer configuration.
type Config struct {
	Adapter  Adapter  `toml:"adapter"`
	Transfer Transfer `toml:"transfer"`
	Timing   Timing   `toml:"timing"`
}

// Default returns the configuration used when no file is given: an FT232H
// on channel A at full TCK rate, 1 ms latency, 32 KiB chunks, and roughly
// half a million settling clocks on each side of the bitstream.
func Default() Config {
	return Config{
		Adapter: Adapter{
			VID:        0x0403,
			PID:        0x6014,
			LatencyMs:  1,
			TCKDivisor: 0,
		},
		Transfer: Transfer{
			ChunkSize:    0x8000,
			RecvAttempts: 20,
		},
		Timing: Timing{
			ShutdownPulses: 512000,
			StartupPulses:  512000,
		},
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("%w: %s: unknown key %q", ErrConfig, path, undec[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the lower layers cannot work with.
func (c Config) Validate() error {
	if c.Adapter.VID == 0 || c.Adapter.PID == 0 {
		return fmt.Errorf("%w: adapter vid/pid must be set", ErrConfig)
	}
	if c.Transfer.ChunkSize < 1 || c.Transfer.ChunkSize > 0x10000 {
		return fmt.Errorf("%w: chunk_size %d out of range [1, 65536]", ErrConfig, c.Transfer.ChunkSize)
	}
	if c.Transfer.RecvAttempts < 1 {
		return fmt.Errorf("%w: recv_attempts must be positive", ErrConfig)
	}
	if c.Timing.ShutdownPulses < 0 || c.Timing.StartupPulses < 0 {
		return fmt.Errorf("%w: pulse counts must not be negative", ErrConfig)
	}
	return nil
}
