package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/spartan6"
)

var programCmd = &cobra.Command{
	Use:   "program <bitstream>",
	Short: "Load a bitstream into the attached Spartan-6 device",
	Long: `Program the attached Spartan-6 FPGA with a raw bitstream file.

The sequence is:
  1. Synchronize with the MPSSE engine
  2. Verify the device IDCODE is a Spartan-6 family part
  3. Shut the device down (JSHUTDOWN)
  4. Shift the bitstream into the configuration register (CFG_IN)
  5. Start the configured design (JSTART)

Examples:
  otprog program design.bit
  otprog program -v -c lab.toml top.bit`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	rootCmd.AddCommand(programCmd)
}

func runProgram(cmd *cobra.Command, args []string) error {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	// The programmer owns the session from here; it closes the transport on
	// both the success and the abort path.
	prog := spartan6.NewProgrammer(sess,
		spartan6.WithSpinPulses(cfg.Timing.ShutdownPulses, cfg.Timing.StartupPulses),
		spartan6.WithProgLogger(log),
	)
	if err := prog.Run(args[0]); err != nil {
		return err
	}
	log.Info().Str("bitstream", args[0]).Msg("device programmed")
	return nil
}
