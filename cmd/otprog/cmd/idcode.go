package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/spartan6"
)

var idcodeCmd = &cobra.Command{
	Use:   "idcode",
	Short: "Read and decode the IDCODE of the attached device",
	RunE:  runIDCode,
}

var usercodeCmd = &cobra.Command{
	Use:   "usercode",
	Short: "Read the USERCODE register of the attached device",
	RunE:  runUserCode,
}

func init() {
	rootCmd.AddCommand(idcodeCmd)
	rootCmd.AddCommand(usercodeCmd)
}

func runIDCode(cmd *cobra.Command, args []string) error {
	raw, err := readRegister(spartan6.InstrIDCode)
	if err != nil {
		return err
	}
	fmt.Println(idcode.Parse(raw))
	return nil
}

func runUserCode(cmd *cobra.Command, args []string) error {
	raw, err := readRegister(spartan6.InstrUsercode)
	if err != nil {
		return err
	}
	fmt.Printf("0x%08X\n", raw)
	return nil
}

// readRegister opens a session, syncs, prepares the TAP, and reads one
// 32-bit data register.
func readRegister(instr byte) (uint32, error) {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return 0, err
	}

	sess, err := openSession(cfg, log)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	if err := sess.Sync(); err != nil {
		return 0, err
	}
	if err := sess.PrepareTAP(); err != nil {
		return 0, err
	}
	return sess.ReadRegister32(instr)
}
