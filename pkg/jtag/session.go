package jtag

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/tap"
)

// Defaults mirror the limits the transfer engine was tuned against: one
// chunk per command-channel length field, and a receive budget that covers a
// full chunk arriving across several latency periods.
const (
	DefaultChunkSize    = 0x8000
	DefaultRecvAttempts = 20
	DefaultIRLength     = 6
)

// Session owns the transport, the command buffer, and the TAP sequencer for
// the lifetime of one adapter connection. Nothing in it is shared; all
// operations are synchronous and must come from a single goroutine.
type Session struct {
	tr  mpsse.Transport
	buf *mpsse.CommandBuffer
	seq *tap.Sequencer
	log zerolog.Logger

	chunkSize int
	attempts  int
	irLength  int
}

// Option adjusts session construction.
type Option func(*Session)

// WithChunkSize bounds how many whole bytes one shift command may carry.
func WithChunkSize(n int) Option {
	return func(s *Session) { s.chunkSize = n }
}

// WithRecvAttempts sets the bounded retry budget for each receive.
func WithRecvAttempts(n int) Option {
	return func(s *Session) { s.attempts = n }
}

// WithIRLength sets the target's instruction register width in bits.
func WithIRLength(n int) Option {
	return func(s *Session) { s.irLength = n }
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// NewSession wraps a transport in a session with its own command buffer and
// sequencer.
func NewSession(tr mpsse.Transport, opts ...Option) *Session {
	s := &Session{
		tr:        tr,
		chunkSize: DefaultChunkSize,
		attempts:  DefaultRecvAttempts,
		irLength:  DefaultIRLength,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = mpsse.NewCommandBuffer(tr, 0)
	s.seq = tap.NewSequencer(s.buf)
	return s
}

// TAPState reports the sequencer's tracked TAP state.
func (s *Session) TAPState() tap.State { return s.seq.State() }

// Init sends the MPSSE setup block with the given TCK divisor.
func (s *Session) Init(tckDivisor uint16) error {
	if err := mpsse.InitCommands(s.buf, tckDivisor); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("jtag: init: %w", err)
	}
	s.log.Debug().Uint16("tck_divisor", tckDivisor).Msg("engine initialized")
	return nil
}

// Sync verifies command framing against the engine.
func (s *Session) Sync() error {
	if err := mpsse.Sync(s.buf, s.tr, s.attempts); err != nil {
		return err
	}
	s.log.Debug().Msg("engine in sync")
	return nil
}

// PrepareTAP forces Test-Logic-Reset and settles in Run-Test/Idle.
func (s *Session) PrepareTAP() error {
	if err := s.seq.Reset(); err != nil {
		return err
	}
	if err := s.seq.ResetToIdle(); err != nil {
		return err
	}
	return s.buf.Flush()
}

// SpinIdle burns the given number of TCK pulses in Run-Test/Idle and pushes
// them to the adapter.
func (s *Session) SpinIdle(pulses int) error {
	if err := s.seq.SpinIdle(pulses); err != nil {
		return err
	}
	return s.buf.Flush()
}

// ForceReset drives the TAP to Test-Logic-Reset regardless of the tracked
// state. Best effort: it is the abort path, and an error here only means the
// session is even deader than it was.
func (s *Session) ForceReset() error {
	s.buf.Drop()
	s.log.Warn().Stringer("from", s.seq.State()).Msg("forcing test-logic-reset")
	if err := s.seq.Reset(); err != nil {
		return err
	}
	return s.buf.Flush()
}

// Close releases the transport.
func (s *Session) Close() error {
	return s.tr.Close()
}
