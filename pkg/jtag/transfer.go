package jtag

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
)

// ErrTransfer tags any failure inside a chunked register transfer. The
// operation is not retryable; the caller must force Test-Logic-Reset before
// touching the TAP again.
var ErrTransfer = errors.New("jtag: register transfer failed")

// WriteIR shifts an instruction into the instruction register and returns
// the TAP to Run-Test/Idle. The commands stay buffered; they go out with the
// next flush, exactly like the operations they precede.
func (s *Session) WriteIR(instr byte) error {
	if err := s.seq.IdleToShiftIR(); err != nil {
		return err
	}
	if err := mpsse.ShiftBits(s.buf, []byte{instr}, s.irLength, false); err != nil {
		return err
	}
	// The shift engine's terminal TMS-high clock moved Shift-IR to Exit1-IR.
	s.seq.Advance(true)
	if err := s.seq.Exit1ToIdle(); err != nil {
		return err
	}
	s.log.Debug().Uint8("instr", instr).Msg("instruction loaded")
	return nil
}

// TransferDR shifts bits through the data register: whole bytes in bounded
// chunks, then 1-8 residual bits. tdi supplies outgoing data and tdo
// collects captured data; either may be nil, not both. When several chunks
// are needed the buffer is flushed after each and, if capturing, the chunk's
// response is drained before the next chunk is encoded, so at most one chunk
// is ever in flight.
func (s *Session) TransferDR(tdi, tdo []byte, bits int) error {
	if tdi == nil && tdo == nil {
		return fmt.Errorf("%w: no buffers supplied", ErrTransfer)
	}
	if bits < 1 {
		return fmt.Errorf("%w: bit length %d", ErrTransfer, bits)
	}
	need := (bits + 7) / 8
	if tdi != nil && len(tdi) < need {
		return fmt.Errorf("%w: %d bits need %d tdi bytes, have %d", ErrTransfer, bits, need, len(tdi))
	}
	if tdo != nil && len(tdo) < need {
		return fmt.Errorf("%w: %d bits need %d tdo bytes, have %d", ErrTransfer, bits, need, len(tdo))
	}

	if err := s.seq.IdleToShiftDR(); err != nil {
		return err
	}

	wholeBytes := (bits - 1) / 8
	residual := bits - wholeBytes*8 // always in [1,8]

	ti, to := 0, 0
	chunk := 0
	for remaining := wholeBytes; remaining > 0; remaining -= chunk {
		chunk = remaining
		if chunk > s.chunkSize {
			chunk = s.chunkSize
		}

		var src []byte
		if tdi != nil {
			src = tdi[ti : ti+chunk]
			ti += chunk
		}
		if err := mpsse.ShiftBytes(s.buf, src, chunk, tdo != nil); err != nil {
			return fmt.Errorf("%w: %v", ErrTransfer, err)
		}

		if remaining-chunk > 0 {
			// More chunks follow: push this one and drain its capture so
			// in-flight data stays bounded to a single chunk.
			if err := s.buf.Flush(); err != nil {
				return fmt.Errorf("%w: %v", ErrTransfer, err)
			}
			if tdo != nil {
				if err := mpsse.Receive(s.tr, tdo[to:to+chunk], s.attempts); err != nil {
					return fmt.Errorf("%w: %v", ErrTransfer, err)
				}
				to += chunk
			}
		}
	}

	var src []byte
	if tdi != nil {
		src = tdi[ti : ti+1]
	}
	if err := mpsse.ShiftBits(s.buf, src, residual, tdo != nil); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	s.seq.Advance(true)

	if err := s.seq.Exit1ToIdle(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}

	if tdo == nil {
		return nil
	}

	// The last byte chunk was never drained inside the loop.
	if chunk > 0 {
		if err := mpsse.Receive(s.tr, tdo[to:to+chunk], s.attempts); err != nil {
			return fmt.Errorf("%w: %v", ErrTransfer, err)
		}
		to += chunk
	}

	var raw [2]byte
	n := mpsse.BitRecvLen(residual)
	if err := mpsse.Receive(s.tr, raw[:n], s.attempts); err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	b, err := mpsse.CombineBits(raw[:n], residual)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	tdo[to] = b
	return nil
}

// ReadRegister32 loads an instruction and reads the 32-bit data register it
// selects, assembled little-endian as it arrives LSB-first off the wire.
func (s *Session) ReadRegister32(instr byte) (uint32, error) {
	if err := s.WriteIR(instr); err != nil {
		return 0, err
	}
	var raw [4]byte
	if err := s.TransferDR(nil, raw[:], 32); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}
