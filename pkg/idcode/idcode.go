// Package idcode decodes IEEE 1149.1 device identification values.
package idcode

import "fmt"

// IDCode is a parsed 32-bit JTAG IDCODE.
type IDCode struct {
	Raw              uint32
	Version          uint8  // [31:28]
	PartNumber       uint16 // [27:12]
	ManufacturerCode uint16 // [11:1], JEP106
	HasIDCode        bool   // bit 0 must read 1
}

// Parse splits a raw IDCODE into its fields.
func Parse(raw uint32) IDCode {
	return IDCode{
		Raw:              raw,
		Version:          uint8(raw >> 28 & 0xF),
		PartNumber:       uint16(raw >> 12 & 0xFFFF),
		ManufacturerCode: uint16(raw >> 1 & 0x7FF),
		HasIDCode:        raw&0x1 == 0x1,
	}
}

func (id IDCode) String() string {
	return fmt.Sprintf("0x%08X (mfg: %s, part: 0x%04X, rev: %d)",
		id.Raw, ManufacturerName(id.ManufacturerCode), id.PartNumber, id.Version)
}

// manufacturers covers the JEP106 codes seen on programmable-logic JTAG
// chains; anything else renders as its raw code.
var manufacturers = map[uint16]string{
	0x001: "AMD",
	0x015: "Philips",
	0x01F: "Atmel",
	0x020: "STMicroelectronics",
	0x049: "Xilinx",
	0x06E: "Altera",
	0x0BF: "Broadcom",
	0x15D: "Lattice Semiconductor",
	0x21C: "Microsemi",
}

// ManufacturerName resolves a JEP106 manufacturer code to a display name.
func ManufacturerName(code uint16) string {
	if name, ok := manufacturers[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown (0x%03X)", code)
}
