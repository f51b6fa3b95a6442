package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProg/internal/observability"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/config"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "otprog",
	Short: "OpenTraceProg - Spartan-6 JTAG programmer for FT232H adapters",
	Long: `OpenTraceProg (otprog) programs Xilinx Spartan-6 FPGAs over JTAG
using an FTDI FT232H adapter in MPSSE mode.

Examples:
  otprog program design.bit           # Load a bitstream
  otprog idcode                       # Identify the attached device
  otprog usercode                     # Read the USERCODE register
  otprog program -c lab.toml top.bit  # Use a config file`,
	Version: "1.0.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
}

// loadConfig returns the file-backed configuration when --config was given,
// the defaults otherwise.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

// openSession opens the adapter named by the configuration and wraps it in
// an initialized session. The caller owns the session and must close it.
func openSession(cfg config.Config, log zerolog.Logger) (*jtag.Session, error) {
	tr, err := mpsse.OpenFTDI(cfg.Adapter.VID, cfg.Adapter.PID, cfg.Adapter.LatencyMs)
	if err != nil {
		return nil, err
	}
	sess := jtag.NewSession(tr,
		jtag.WithChunkSize(cfg.Transfer.ChunkSize),
		jtag.WithRecvAttempts(cfg.Transfer.RecvAttempts),
		jtag.WithLogger(log),
	)
	if err := sess.Init(cfg.Adapter.TCKDivisor); err != nil {
		tr.Close()
		return nil, err
	}
	return sess, nil
}

func newLogger() zerolog.Logger {
	return observability.InitLogger("otprog", verbose)
}
