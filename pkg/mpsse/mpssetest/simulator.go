// Package mpssetest provides in-memory transports for exercising the
// command layer and everything above it without hardware attached.
package mpssetest

import (
	"bytes"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/tap"
)

// Register instructions the simulated target decodes. They match the
// Spartan-6 values so programmer-level tests run against the real opcodes.
const (
	simInstrIDCode   = 0x09
	simInstrUserCode = 0x08
	simInstrBypass   = 0x3F
)

// SimTransport models an MPSSE engine wired to a single JTAG device. It
// parses the outgoing command stream, drives a TAP state machine from the
// TMS commands, serves IDCODE/USERCODE data register reads, sinks
// configuration data, and echoes unknown opcodes the way the real engine
// does. Captured TDO bits enter response bytes from the MSB, matching the
// hardware capture rule.
type SimTransport struct {
	IDCode   uint32
	UserCode uint32

	sm       *tap.StateMachine
	loopback bool

	irShift uint32
	irBits  int
	ir      byte

	dr      uint64
	drBits  int
	cfgBits int

	resp bytes.Buffer

	WriteCalls    int
	ReadCalls     int
	ByteShiftCmds int
	BitShiftCmds  int
	TMSCmds       int

	purges int
	resets int
	closed bool
}

// NewSimTransport returns a simulator whose TAP starts in Test-Logic-Reset.
func NewSimTransport() *SimTransport {
	return &SimTransport{
		sm: tap.NewStateMachine(),
		ir: simInstrIDCode, // IDCODE is the reset-time instruction
	}
}

// TAPState reports the simulated device's TAP state.
func (s *SimTransport) TAPState() tap.State { return s.sm.State() }

// ConfigBitsShifted reports how many bits were shifted into the data
// register while a non-readback instruction was selected.
func (s *SimTransport) ConfigBitsShifted() int { return s.cfgBits }

// Closed reports whether Close was called.
func (s *SimTransport) Closed() bool { return s.closed }

func (s *SimTransport) Write(p []byte) (int, error) {
	s.WriteCalls++
	i := 0
	for i < len(p) {
		n, err := s.exec(p[i:])
		if err != nil {
			return i, err
		}
		i += n
	}
	return len(p), nil
}

// exec interprets one command at the head of p and returns its length.
func (s *SimTransport) exec(p []byte) (int, error) {
	op := p[0]
	switch {
	case op == mpsse.SetBitsLow, op == mpsse.SetBitsHigh, op == mpsse.SetTCKDivisor:
		return 3, nil

	case op == mpsse.SendImmediate,
		op == mpsse.DisableClkDiv5, op == mpsse.EnableClkDiv5,
		op == mpsse.EnableClk3Phase, op == mpsse.DisableClk3Phase,
		op == mpsse.EnableAdaptiveClk, op == mpsse.DisableAdaptiveClk:
		return 1, nil

	case op == mpsse.LoopbackOn:
		s.loopback = true
		return 1, nil
	case op == mpsse.LoopbackOff:
		s.loopback = false
		return 1, nil

	case op == mpsse.ClockBitsNoData:
		for n := int(p[1]) + 1; n > 0; n-- {
			s.clock(false, false)
		}
		return 2, nil
	case op == mpsse.ClockBytesNoData:
		n := (int(p[1]) | int(p[2])<<8) + 1
		for c := 0; c < 8*n; c++ {
			s.clock(false, false)
		}
		return 3, nil

	case op&mpsse.WriteTMS != 0 && op&mpsse.BitMode != 0:
		s.TMSCmds++
		n := int(p[1]) + 1
		data := p[2]
		tdi := data&0x80 != 0
		var acc byte
		for b := 0; b < n; b++ {
			tdo := s.clock(data&(1<<b) != 0, tdi)
			acc = acc >> 1
			if tdo {
				acc |= 0x80
			}
		}
		if op&mpsse.DoRead != 0 {
			s.resp.WriteByte(acc)
		}
		return 3, nil

	case op&mpsse.BitMode != 0:
		s.BitShiftCmds++
		n := int(p[1]) + 1
		size := 2
		var data byte
		if op&mpsse.DoWrite != 0 {
			data = p[2]
			size = 3
		}
		var acc byte
		for b := 0; b < n; b++ {
			tdo := s.clock(false, data&(1<<b) != 0)
			acc = acc >> 1
			if tdo {
				acc |= 0x80
			}
		}
		if op&mpsse.DoRead != 0 {
			s.resp.WriteByte(acc)
		}
		return size, nil

	case op&mpsse.LSBFirst != 0 && op&(mpsse.DoWrite|mpsse.DoRead) != 0:
		s.ByteShiftCmds++
		n := (int(p[1]) | int(p[2])<<8) + 1
		size := 3
		write := op&mpsse.DoWrite != 0
		if write {
			size += n
		}
		for i := 0; i < n; i++ {
			var data byte
			if write {
				data = p[3+i]
			}
			var acc byte
			for b := 0; b < 8; b++ {
				tdo := s.clock(false, data&(1<<b) != 0)
				acc = acc >> 1
				if tdo {
					acc |= 0x80
				}
			}
			if op&mpsse.DoRead != 0 {
				s.resp.WriteByte(acc)
			}
		}
		return size, nil

	default:
		// Unknown opcode: the engine stalls and reports it.
		s.resp.WriteByte(mpsse.BadCommandEcho)
		s.resp.WriteByte(op)
		return 1, nil
	}
}

// clock runs one TCK cycle: shift registers react in the current state,
// then the TAP advances on TMS.
func (s *SimTransport) clock(tms, tdi bool) (tdo bool) {
	switch {
	case s.loopback:
		tdo = tdi
	case s.sm.State() == tap.ShiftIR:
		tdo = s.irShift&1 != 0
		if tdi {
			s.irShift |= 1 << s.irBits
		}
		s.irBits++
	case s.sm.State() == tap.ShiftDR:
		if s.drBits > 0 {
			tdo = s.dr&1 != 0
			s.dr >>= 1
			if tdi {
				s.dr |= 1 << (s.drBits - 1)
			}
		} else {
			s.cfgBits++
		}
	}

	switch s.sm.Clock(tms) {
	case tap.CaptureIR:
		s.irShift, s.irBits = 0, 0
	case tap.UpdateIR:
		s.ir = byte(s.irShift & 0x3F)
	case tap.CaptureDR:
		switch s.ir {
		case simInstrIDCode:
			s.dr, s.drBits = uint64(s.IDCode), 32
		case simInstrUserCode:
			s.dr, s.drBits = uint64(s.UserCode), 32
		case simInstrBypass:
			s.dr, s.drBits = 0, 1
		default:
			s.dr, s.drBits = 0, 0
		}
	case tap.TestLogicReset:
		s.ir = simInstrIDCode
	}
	return tdo
}

func (s *SimTransport) Read(p []byte) (int, error) {
	s.ReadCalls++
	n, _ := s.resp.Read(p)
	return n, nil
}

func (s *SimTransport) PurgeBuffers() error {
	s.purges++
	s.resp.Reset()
	return nil
}

func (s *SimTransport) Reset() error {
	s.resets++
	return nil
}

func (s *SimTransport) Close() error {
	s.closed = true
	return nil
}

// ScriptTransport serves canned responses and records writes. Useful where
// a test needs the transport to misbehave in a specific way.
type ScriptTransport struct {
	Writes    [][]byte
	Responses [][]byte

	// WriteLimit caps how many bytes a single Write accepts; zero means all.
	WriteLimit int

	ReadCalls int
	closed    bool
}

func (t *ScriptTransport) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	t.Writes = append(t.Writes, cp)
	if t.WriteLimit > 0 && len(p) > t.WriteLimit {
		return t.WriteLimit, nil
	}
	return len(p), nil
}

func (t *ScriptTransport) Read(p []byte) (int, error) {
	t.ReadCalls++
	if len(t.Responses) == 0 {
		return 0, nil
	}
	n := copy(p, t.Responses[0])
	if n == len(t.Responses[0]) {
		t.Responses = t.Responses[1:]
	} else {
		t.Responses[0] = t.Responses[0][n:]
	}
	return n, nil
}

func (t *ScriptTransport) PurgeBuffers() error { return nil }
func (t *ScriptTransport) Reset() error        { return nil }

func (t *ScriptTransport) Close() error {
	if t.closed {
		return fmt.Errorf("mpssetest: transport closed twice")
	}
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *ScriptTransport) Closed() bool { return t.closed }
