package spartan6

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/bitstream"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/idcode"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/jtag"
)

// Phase is the programmer's position in the strictly forward protocol. Any
// failure jumps straight to Closed; there are no retries and no backward
// transitions.
type Phase int

const (
	PhaseUnsynced Phase = iota
	PhaseSynced
	PhaseIdentityVerified
	PhaseConfigLoaded
	PhaseRestarted
	PhaseClosed
)

var phaseNames = [...]string{
	"Unsynced", "Synced", "IdentityVerified", "ConfigLoaded", "Restarted", "Closed",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// IdentityError reports a device whose IDCODE is not a Spartan-6 family
// part.
type IdentityError struct {
	Got uint32
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("spartan6: device %s is not a Spartan-6 family part (family %#06x, want %#06x)",
		idcode.Parse(e.Got), e.Got&IDCodeFamilyMask, IDCodeXilinx)
}

// Default spin delays, counted in TCK pulses, that give the device time to
// wind internal state up or down. Derived from 500 idle-spin rounds of 1024
// clocks each.
const (
	DefaultShutdownPulses = 500 * 1024
	DefaultStartupPulses  = 500 * 1024
)

// Programmer runs the configuration protocol over an exclusively owned
// session: sync, identity check, shutdown, bitstream load, restart, close.
type Programmer struct {
	sess *jtag.Session
	log  zerolog.Logger

	shutdownPulses int
	startupPulses  int

	phase Phase
}

// ProgOption adjusts programmer construction.
type ProgOption func(*Programmer)

// WithSpinPulses overrides the shutdown and startup delays.
func WithSpinPulses(shutdown, startup int) ProgOption {
	return func(p *Programmer) {
		p.shutdownPulses = shutdown
		p.startupPulses = startup
	}
}

// WithProgLogger attaches a logger.
func WithProgLogger(log zerolog.Logger) ProgOption {
	return func(p *Programmer) { p.log = log }
}

// NewProgrammer wraps a session. The session must already be initialized
// (MPSSE mode selected); the programmer performs everything from sync on.
func NewProgrammer(sess *jtag.Session, opts ...ProgOption) *Programmer {
	p := &Programmer{
		sess:           sess,
		log:            zerolog.Nop(),
		shutdownPulses: DefaultShutdownPulses,
		startupPulses:  DefaultStartupPulses,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phase reports how far the programmer got.
func (p *Programmer) Phase() Phase { return p.phase }

// Run programs the device with the bitstream at path. On any failure the
// TAP is forced to Test-Logic-Reset (best effort) and the transport is
// closed before the error is returned; the session cannot be reused.
func (p *Programmer) Run(path string) error {
	if err := p.sess.Sync(); err != nil {
		return p.abort("sync", err)
	}
	p.phase = PhaseSynced
	p.log.Info().Msg("engine synchronized")

	if err := p.verifyIdentity(); err != nil {
		return p.abort("identity", err)
	}
	p.phase = PhaseIdentityVerified

	data, err := bitstream.Load(path)
	if err != nil {
		return p.abort("bitstream", err)
	}
	p.log.Info().Str("path", path).Int("bytes", len(data)).Msg("bitstream loaded")

	if err := p.configure(data); err != nil {
		return p.abort("configure", err)
	}
	p.phase = PhaseConfigLoaded
	p.log.Info().Int("bytes", len(data)).Msg("configuration shifted to device")

	if err := p.restart(); err != nil {
		return p.abort("restart", err)
	}
	p.phase = PhaseRestarted
	p.log.Info().Msg("device restarted")

	if err := p.sess.Close(); err != nil {
		p.phase = PhaseClosed
		return fmt.Errorf("spartan6: close: %w", err)
	}
	p.phase = PhaseClosed
	return nil
}

// verifyIdentity resets the TAP, reads the IDCODE register, and checks the
// manufacturer and family fields.
func (p *Programmer) verifyIdentity() error {
	if err := p.sess.PrepareTAP(); err != nil {
		return err
	}
	id, err := p.sess.ReadRegister32(InstrIDCode)
	if err != nil {
		return err
	}
	p.log.Info().Stringer("idcode", idcode.Parse(id)).Msg("device identified")
	if id&IDCodeFamilyMask != IDCodeXilinx {
		return &IdentityError{Got: id}
	}
	return nil
}

// configure shuts the device down, shifts the whole bitstream into the
// configuration register in one transfer, and lets the shutdown delay pass
// in counted clocks.
func (p *Programmer) configure(data []byte) error {
	if err := p.sess.WriteIR(InstrJShutdown); err != nil {
		return err
	}
	if err := p.sess.SpinIdle(p.shutdownPulses); err != nil {
		return err
	}
	if err := p.sess.WriteIR(InstrCfgIn); err != nil {
		return err
	}
	return p.sess.TransferDR(data, nil, len(data)*8)
}

// restart starts the configured design and parks the TAP in
// Test-Logic-Reset.
func (p *Programmer) restart() error {
	if err := p.sess.WriteIR(InstrJStart); err != nil {
		return err
	}
	if err := p.sess.SpinIdle(p.startupPulses); err != nil {
		return err
	}
	return p.sess.ForceReset()
}

// ReadUserCode returns the 32-bit user code register of the attached
// device. The session must be synced and the TAP prepared.
func (p *Programmer) ReadUserCode() (uint32, error) {
	return p.sess.ReadRegister32(InstrUsercode)
}

// ReadIDCode returns the raw 32-bit IDCODE of the attached device. The
// session must be synced and the TAP prepared.
func (p *Programmer) ReadIDCode() (uint32, error) {
	return p.sess.ReadRegister32(InstrIDCode)
}

// abort is the single failure path: force Test-Logic-Reset so the TAP is
// in a known state for whoever touches the device next, close the
// transport, and name the phase that died.
func (p *Programmer) abort(step string, err error) error {
	p.log.Error().Err(err).Str("step", step).Stringer("phase", p.phase).Msg("programming failed")
	if rerr := p.sess.ForceReset(); rerr != nil {
		p.log.Warn().Err(rerr).Msg("forced reset failed")
	}
	if cerr := p.sess.Close(); cerr != nil {
		p.log.Warn().Err(cerr).Msg("transport close failed")
	}
	p.phase = PhaseClosed
	return fmt.Errorf("spartan6: %s: %w", step, err)
}
