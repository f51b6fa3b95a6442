package mpsse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport is a minimal Transport for exercising the buffer and
// receive paths in isolation.
type fakeTransport struct {
	written    []byte
	writeLimit int // 0 = accept everything
	reads      [][]byte
	readCalls  int
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.written = append(f.written, p...)
	if f.writeLimit > 0 && len(p) > f.writeLimit {
		return f.writeLimit, nil
	}
	return len(p), nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.readCalls++
	if len(f.reads) == 0 {
		return 0, nil
	}
	n := copy(p, f.reads[0])
	if n == len(f.reads[0]) {
		f.reads = f.reads[1:]
	} else {
		f.reads[0] = f.reads[0][n:]
	}
	return n, nil
}

func (f *fakeTransport) PurgeBuffers() error { return nil }
func (f *fakeTransport) Reset() error        { return nil }
func (f *fakeTransport) Close() error        { return nil }

func TestCommandBufferFlush(t *testing.T) {
	tr := &fakeTransport{}
	buf := NewCommandBuffer(tr, 16)

	require.NoError(t, buf.Append(0x19, 0x02, 0x00))
	assert.Equal(t, 3, buf.Len())

	require.NoError(t, buf.Flush())
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, []byte{0x19, 0x02, 0x00}, tr.written)
}

func TestCommandBufferEmptyFlushIsNoop(t *testing.T) {
	tr := &fakeTransport{}
	buf := NewCommandBuffer(tr, 16)

	require.NoError(t, buf.Flush())
	assert.Empty(t, tr.written)
}

func TestCommandBufferShortWrite(t *testing.T) {
	tr := &fakeTransport{writeLimit: 2}
	buf := NewCommandBuffer(tr, 16)

	require.NoError(t, buf.Append(1, 2, 3, 4))
	err := buf.Flush()
	require.ErrorIs(t, err, ErrShortWrite)
	// Contents stay put so the caller can inspect what was pending.
	assert.Equal(t, 4, buf.Len())
}

func TestCommandBufferCapacity(t *testing.T) {
	buf := NewCommandBuffer(&fakeTransport{}, 4)

	require.NoError(t, buf.Append(1, 2, 3))
	assert.Equal(t, 1, buf.Avail())

	err := buf.Append(4, 5)
	require.ErrorIs(t, err, ErrBufferFull)
	// A failed append must not partially commit.
	assert.Equal(t, 3, buf.Len())

	buf.Drop()
	assert.Equal(t, 0, buf.Len())
}

func TestReceiveAccumulatesPartialReads(t *testing.T) {
	tr := &fakeTransport{reads: [][]byte{{0xAA}, {}, {0xBB, 0xCC}}}

	dst := make([]byte, 3)
	require.NoError(t, Receive(tr, dst, 5))
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, dst)
	assert.Equal(t, 3, tr.readCalls)
}

func TestReceiveAttemptBudget(t *testing.T) {
	tr := &fakeTransport{reads: [][]byte{{0xAA}}}

	dst := make([]byte, 4)
	err := Receive(tr, dst, 3)
	require.ErrorIs(t, err, ErrShortRead)
	assert.Equal(t, 3, tr.readCalls)
}
