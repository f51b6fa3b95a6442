package mpsse

// Shift command flag bits. A shift opcode is built by OR-ing flags together;
// the serial engine executes the result as a single clocked operation.
// DoWrite and WriteTMS are mutually exclusive, and data cannot be written and
// sampled on the same clock edge, which is why TDI is driven on the falling
// edge (WriteNeg) while TDO is sampled on the rising edge.
const (
	WriteNeg = 0x01 // drive TDI on the falling TCK edge
	BitMode  = 0x02 // length field counts bits, not bytes
	ReadNeg  = 0x04 // sample TDO on the falling TCK edge
	LSBFirst = 0x08 // shift least significant bit first
	DoWrite  = 0x10 // shift data out on TDI
	DoRead   = 0x20 // capture data from TDO
	WriteTMS = 0x40 // drive TMS instead of TDI
)

// Configuration and housekeeping opcodes.
const (
	SetBitsLow         = 0x80 // value, direction for the low GPIO byte
	GetBitsLow         = 0x81
	SetBitsHigh        = 0x82 // value, direction for the high GPIO byte
	GetBitsHigh        = 0x83
	LoopbackOn         = 0x84 // connect TDI to TDO inside the engine
	LoopbackOff        = 0x85
	SetTCKDivisor      = 0x86 // divisor low, high; rate = 60MHz/((d+1)*2)
	SendImmediate      = 0x87 // flush the engine's response buffer to the host
	DisableClkDiv5     = 0x8A // H-series: run the engine from the 60MHz clock
	EnableClkDiv5      = 0x8B
	EnableClk3Phase    = 0x8C
	DisableClk3Phase   = 0x8D
	ClockBitsNoData    = 0x8E // pulse TCK for (n+1) cycles without shifting
	ClockBytesNoData   = 0x8F // pulse TCK for 8*(n+1) cycles without shifting
	EnableAdaptiveClk  = 0x96
	DisableAdaptiveClk = 0x97
)

// BadCommand is an opcode the engine does not implement. The engine answers
// any such opcode with BadCommandEcho followed by the offending byte, which
// Sync uses to prove the command stream and the engine agree on framing.
const (
	BadCommand     = 0xAA
	BadCommandEcho = 0xFA
)
