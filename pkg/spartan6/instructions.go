// Package spartan6 drives the Xilinx Spartan-6 configuration protocol over
// a JTAG session.
package spartan6

// Spartan-6 instruction register opcodes (6-bit).
const (
	InstrExtest     = 0x0F
	InstrSample     = 0x01 // also PRELOAD
	InstrUsercode   = 0x08
	InstrCfgIn      = 0x05
	InstrIntest     = 0x07
	InstrHighZ      = 0x0A
	InstrIDCode     = 0x09
	InstrJProgram   = 0x0B
	InstrJStart     = 0x0C
	InstrJShutdown  = 0x0D
	InstrISCEnable  = 0x10
	InstrISCProgram = 0x11
	InstrISCNoop    = 0x14
	InstrISCDisable = 0x16
	InstrISCDNA     = 0x30
	InstrBypass     = 0x3F
)

// IDCODE validation: only the manufacturer and family fields are checked,
// so any Xilinx part in the family passes regardless of size or revision.
const (
	IDCodeFamilyMask = 0x001FFFFF
	IDCodeXilinx     = 0x00008093
)
