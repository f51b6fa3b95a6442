package spartan6_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceProg/pkg/bitstream"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/mpsse/mpssetest"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/spartan6"
	"github.com/OpenTraceLab/OpenTraceProg/pkg/tap"
)

func writeBitstream(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i * 7)
	}
	path := filepath.Join(t.TempDir(), "design.bit")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newProgrammer(t *testing.T, sim *mpssetest.SimTransport) *spartan6.Programmer {
	t.Helper()
	sess := jtag.NewSession(sim)
	require.NoError(t, sess.Init(0))
	// Short delays keep the simulated clock count manageable.
	return spartan6.NewProgrammer(sess, spartan6.WithSpinPulses(64, 64))
}

func TestRunProgramsDevice(t *testing.T) {
	sim := mpssetest.NewSimTransport()
	sim.IDCode = 0x04008093 // Spartan-6 family part

	prog := newProgrammer(t, sim)
	path := writeBitstream(t, 4096)

	require.NoError(t, prog.Run(path))

	assert.Equal(t, spartan6.PhaseClosed, prog.Phase())
	assert.Equal(t, 4096*8, sim.ConfigBitsShifted())
	assert.Equal(t, tap.TestLogicReset, sim.TAPState())
	assert.True(t, sim.Closed())
}

func TestRunRejectsForeignDevice(t *testing.T) {
	sim := mpssetest.NewSimTransport()
	sim.IDCode = 0x00000000 // nothing on the chain answers

	prog := newProgrammer(t, sim)
	err := prog.Run(writeBitstream(t, 64))

	var idErr *spartan6.IdentityError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, uint32(0), idErr.Got)
	assert.Equal(t, spartan6.PhaseClosed, prog.Phase())
	assert.Zero(t, sim.ConfigBitsShifted(), "no configuration data reached the device")
	assert.True(t, sim.Closed(), "abort closes the transport")
}

func TestRunRejectsEmptyBitstream(t *testing.T) {
	sim := mpssetest.NewSimTransport()
	sim.IDCode = 0x04008093

	prog := newProgrammer(t, sim)
	path := filepath.Join(t.TempDir(), "empty.bit")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	err := prog.Run(path)
	require.ErrorIs(t, err, bitstream.ErrLoad)
	assert.Zero(t, sim.ConfigBitsShifted())
	assert.True(t, sim.Closed())
}

func TestRunRejectsMissingFile(t *testing.T) {
	sim := mpssetest.NewSimTransport()
	sim.IDCode = 0x04008093

	prog := newProgrammer(t, sim)
	err := prog.Run(filepath.Join(t.TempDir(), "nope.bit"))
	require.Error(t, err)
	assert.Equal(t, spartan6.PhaseClosed, prog.Phase())
}

func TestRunAbortsOnSyncFailure(t *testing.T) {
	// A transport that answers the sync probe with garbage.
	tr := &mpssetest.ScriptTransport{Responses: [][]byte{{0x01, 0x02}}}
	sess := jtag.NewSession(tr)
	prog := spartan6.NewProgrammer(sess)

	err := prog.Run("ignored.bit")
	require.ErrorIs(t, err, mpsse.ErrSync)
	assert.Equal(t, spartan6.PhaseClosed, prog.Phase())
	assert.True(t, tr.Closed(), "abort closes even an unsynced transport")
}

func TestReadIDCodeAndUserCode(t *testing.T) {
	sim := mpssetest.NewSimTransport()
	sim.IDCode = 0x24001093
	sim.UserCode = 0xDEADBEEF

	sess := jtag.NewSession(sim)
	require.NoError(t, sess.Init(0))
	require.NoError(t, sess.Sync())
	require.NoError(t, sess.PrepareTAP())

	prog := spartan6.NewProgrammer(sess)
	id, err := prog.ReadIDCode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x24001093), id)

	uc, err := prog.ReadUserCode()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), uc)
}

func TestIdentityErrorMessage(t *testing.T) {
	err := &spartan6.IdentityError{Got: 0x12345678}
	assert.Contains(t, err.Error(), "not a Spartan-6")
	assert.Contains(t, err.Error(), "0x12345678")
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "Unsynced", spartan6.PhaseUnsynced.String())
	assert.Equal(t, "Closed", spartan6.PhaseClosed.String())
	assert.Equal(t, "Phase(9)", spartan6.Phase(9).String())
}
