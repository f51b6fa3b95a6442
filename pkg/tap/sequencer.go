package tap

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
)

// ErrWrongState reports a sequencer operation invoked from a TAP state it
// does not accept as its entry state.
var ErrWrongState = errors.New("tap: wrong entry state")

// spinFlushBursts bounds how many clock-only bursts accumulate in the
// command buffer before SpinIdle flushes.
const spinFlushBursts = 128

// Sequencer emits the fixed TMS patterns that move the TAP controller
// between the states the programming protocol uses, and tracks the resulting
// state explicitly. Each operation declares its required entry state and
// fails with ErrWrongState instead of silently corrupting the protocol; the
// only way past that is Reset, which is legal from anywhere.
type Sequencer struct {
	buf   *mpsse.CommandBuffer
	state State
}

// NewSequencer returns a sequencer writing into buf. The tracked state
// starts at Test-Logic-Reset; callers are expected to issue Reset before the
// first shift so the hardware agrees.
func NewSequencer(buf *mpsse.CommandBuffer) *Sequencer {
	return &Sequencer{buf: buf, state: TestLogicReset}
}

// State reports the tracked TAP state.
func (s *Sequencer) State() State { return s.state }

// writeTMS appends one TMS command clocking out n bits of pattern,
// LSB-first, with TDI held high, and advances the tracked state bit by bit.
func (s *Sequencer) writeTMS(n int, pattern byte) error {
	if n < 1 || n > 7 {
		return fmt.Errorf("tap: tms pattern length %d out of range [1,7]", n)
	}
	cmd := byte(mpsse.WriteTMS | mpsse.BitMode | mpsse.LSBFirst | mpsse.WriteNeg)
	if err := s.buf.Append(cmd, byte(n-1), 0x80|pattern); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		s.state = NextState(s.state, pattern&(1<<i) != 0)
	}
	return nil
}

// require checks the entry-state precondition for an operation.
func (s *Sequencer) require(op string, allowed ...State) error {
	for _, a := range allowed {
		if s.state == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s from %s", ErrWrongState, op, s.state)
}

// Reset forces Test-Logic-Reset with five TMS-high clocks. Valid from any
// state; this is the designated escape hatch after a failed operation.
func (s *Sequencer) Reset() error {
	return s.writeTMS(5, 0x1F)
}

// ResetToIdle moves Test-Logic-Reset to Run-Test/Idle.
func (s *Sequencer) ResetToIdle() error {
	if err := s.require("ResetToIdle", TestLogicReset); err != nil {
		return err
	}
	return s.writeTMS(1, 0x00)
}

// IdleToShiftIR moves Run-Test/Idle to Shift-IR.
func (s *Sequencer) IdleToShiftIR() error {
	if err := s.require("IdleToShiftIR", RunTestIdle); err != nil {
		return err
	}
	return s.writeTMS(4, 0x03)
}

// IdleToShiftDR moves Run-Test/Idle to Shift-DR.
func (s *Sequencer) IdleToShiftDR() error {
	if err := s.require("IdleToShiftDR", RunTestIdle); err != nil {
		return err
	}
	return s.writeTMS(3, 0x01)
}

// Exit1ToIdle moves Exit1-IR or Exit1-DR back to Run-Test/Idle through the
// matching Update state.
func (s *Sequencer) Exit1ToIdle() error {
	if err := s.require("Exit1ToIdle", Exit1IR, Exit1DR); err != nil {
		return err
	}
	return s.writeTMS(2, 0x01)
}

// Advance accounts for a single clock issued outside the sequencer. The
// shift engine terminates every shift with its own TMS-high clock, which
// moves Shift to Exit1; callers report that clock here so the tracked state
// stays truthful.
func (s *Sequencer) Advance(tms bool) {
	s.state = NextState(s.state, tms)
}

// SpinIdle holds the TAP in Run-Test/Idle for the given number of TCK
// pulses using clock-only commands, flushing periodically so the command
// buffer stays bounded. The wait is counted in clocks, not wall time.
func (s *Sequencer) SpinIdle(pulses int) error {
	if err := s.require("SpinIdle", RunTestIdle); err != nil {
		return err
	}
	if pulses <= 0 {
		return nil
	}

	// Pin TMS low so the idle loop cannot drift.
	if err := s.writeTMS(1, 0x00); err != nil {
		return err
	}

	bursts := 0
	for pulses > 0 {
		n := pulses
		if n > 8 {
			n = 8
		}
		if err := s.buf.Append(mpsse.ClockBitsNoData, byte(n-1)); err != nil {
			return err
		}
		pulses -= n

		if bursts++; bursts%spinFlushBursts == 0 {
			if err := s.buf.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
