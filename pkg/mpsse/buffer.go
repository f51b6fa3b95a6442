package mpsse

import (
	"errors"
	"fmt"
)

// DefaultBufferSize is the command buffer capacity. One maximum-size shift
// chunk plus its framing occupies well under 5% of this, so the buffer never
// limits how operations are batched.
const DefaultBufferSize = 1024 * 1024

// ErrBufferFull reports an append that would exceed the buffer capacity.
// Hitting it means an operation was encoded without an intervening flush,
// which is a protocol-sequencing bug rather than a runtime condition.
var ErrBufferFull = errors.New("mpsse: command buffer full")

// CommandBuffer accumulates outgoing engine commands and flushes them to a
// Transport on demand. It is exclusively owned by one session and is not
// safe for concurrent use.
type CommandBuffer struct {
	tr  Transport
	buf []byte
	n   int
}

// NewCommandBuffer creates a buffer of the given capacity that flushes to t.
// A size of zero or less selects DefaultBufferSize.
func NewCommandBuffer(t Transport, size int) *CommandBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &CommandBuffer{tr: t, buf: make([]byte, size)}
}

// Len reports the number of buffered, unflushed bytes.
func (b *CommandBuffer) Len() int { return b.n }

// Cap reports the buffer capacity.
func (b *CommandBuffer) Cap() int { return len(b.buf) }

// Avail reports how many more bytes can be appended before a flush is due.
func (b *CommandBuffer) Avail() int { return len(b.buf) - b.n }

// Bytes returns the buffered, unflushed bytes. The slice aliases the buffer
// and is only valid until the next Append or Flush.
func (b *CommandBuffer) Bytes() []byte { return b.buf[:b.n] }

// Append adds command bytes to the buffer.
func (b *CommandBuffer) Append(p ...byte) error {
	if len(p) > b.Avail() {
		return fmt.Errorf("%w: %d buffered, %d more requested, capacity %d",
			ErrBufferFull, b.n, len(p), len(b.buf))
	}
	b.n += copy(b.buf[b.n:], p)
	return nil
}

// Flush writes all buffered bytes to the transport and resets the cursor.
// Flushing an empty buffer is a no-op. A write that accepts fewer bytes than
// requested fails with ErrShortWrite and leaves the buffer contents intact.
func (b *CommandBuffer) Flush() error {
	if b.n == 0 {
		return nil
	}
	n, err := b.tr.Write(b.buf[:b.n])
	if err != nil {
		return fmt.Errorf("mpsse: flush: %w", err)
	}
	if n != b.n {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, b.n)
	}
	b.n = 0
	return nil
}

// Drop discards any buffered bytes without sending them. Used on the abort
// path where the session is being torn down and the commands are stale.
func (b *CommandBuffer) Drop() { b.n = 0 }
