package mpsse

import "fmt"

// MaxShiftBytes is the largest byte count a single byte-granular shift
// command can carry, fixed by the 16-bit length field.
const MaxShiftBytes = 0x10000

// ShiftBytes encodes one byte-granular shift of n bytes into buf. Data is
// shifted LSB-first. A nil tdi encodes a read-only shift (the engine clocks
// whatever TDI happens to be); read adds simultaneous TDO capture. The TAP
// must already be in a shift state, and the shift leaves it there.
func ShiftBytes(buf *CommandBuffer, tdi []byte, n int, read bool) error {
	if n < 1 || n > MaxShiftBytes {
		return fmt.Errorf("mpsse: byte shift length %d out of range [1,%d]", n, MaxShiftBytes)
	}
	if tdi == nil && !read {
		return fmt.Errorf("mpsse: byte shift with neither data nor capture")
	}
	if tdi != nil && len(tdi) < n {
		return fmt.Errorf("mpsse: byte shift of %d bytes, only %d supplied", n, len(tdi))
	}

	cmd := byte(LSBFirst)
	if tdi != nil {
		cmd |= DoWrite | WriteNeg
	}
	if read {
		cmd |= DoRead
	}
	if err := buf.Append(cmd, byte(n-1), byte((n-1)>>8)); err != nil {
		return err
	}
	if tdi != nil {
		return buf.Append(tdi[:n]...)
	}
	return nil
}

// ShiftBits encodes a bit-granular shift of n bits (1..8) into buf. The
// first n-1 bits go out as a plain bit command; the final bit is always sent
// through the TMS command with TMS driven high, because the last clock of
// any IR/DR shift must simultaneously move the TAP to Exit1. The final bit's
// value rides in the MSB of the TMS data byte, the LSB holds the TMS level.
func ShiftBits(buf *CommandBuffer, tdi []byte, n int, read bool) error {
	if n < 1 || n > 8 {
		return fmt.Errorf("mpsse: bit shift length %d out of range [1,8]", n)
	}

	var val byte
	if tdi != nil {
		if len(tdi) < 1 {
			return fmt.Errorf("mpsse: bit shift with empty data buffer")
		}
		val = tdi[0]
	}

	if n > 1 {
		cmd := byte(BitMode | LSBFirst)
		if tdi != nil {
			cmd |= DoWrite | WriteNeg
		}
		if read {
			cmd |= DoRead
		}
		if err := buf.Append(cmd, byte(n-2)); err != nil {
			return err
		}
		if tdi != nil {
			if err := buf.Append(val & (1<<(n-1) - 1)); err != nil {
				return err
			}
		}
	}

	cmd := byte(WriteTMS | BitMode | LSBFirst | WriteNeg)
	if read {
		cmd |= DoRead
	}
	data := byte(0x01)
	if tdi != nil && val&(1<<(n-1)) != 0 {
		data |= 0x80
	}
	return buf.Append(cmd, 0, data)
}

// BitRecvLen reports how many response bytes a captured n-bit shift
// produces: the final bit always arrives in its own byte, so any shift
// longer than one bit spans two.
func BitRecvLen(n int) int {
	if n > 1 {
		return 2
	}
	return 1
}

// CombineBits reassembles the value of an n-bit captured shift from the raw
// response bytes. Captured bits enter each response byte from the MSB, so a
// count under 8 needs a right shift by 8-n; when the shift spanned a bit
// command plus the standalone TMS bit, the final bit arrives in the MSB of
// the second byte, not appended to the first.
func CombineBits(raw []byte, n int) (byte, error) {
	if n < 1 || n > 8 {
		return 0, fmt.Errorf("mpsse: bit combine length %d out of range [1,8]", n)
	}
	if len(raw) < BitRecvLen(n) {
		return 0, fmt.Errorf("mpsse: bit combine needs %d bytes, got %d", BitRecvLen(n), len(raw))
	}
	if n == 1 {
		return raw[0] >> 7, nil
	}
	return (raw[1]&0x80 | raw[0]>>1) >> (8 - n), nil
}

// Sync sends a deliberately invalid opcode and checks that the engine
// answers with the fixed two-byte bad-command echo. A mismatch means the
// host and engine disagree about command framing and nothing that follows
// can be trusted.
func Sync(buf *CommandBuffer, t Transport, attempts int) error {
	if err := buf.Append(BadCommand); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}

	var echo [2]byte
	if err := Receive(t, echo[:], attempts); err != nil {
		return fmt.Errorf("%w: %v", ErrSync, err)
	}
	if echo[0] != BadCommandEcho || echo[1] != BadCommand {
		return fmt.Errorf("%w: engine answered %02x %02x, want %02x %02x",
			ErrSync, echo[0], echo[1], BadCommandEcho, BadCommand)
	}
	return nil
}
