package mpsse

import (
	"errors"
	"fmt"
)

// Transport moves raw command and response bytes between the host and a
// serial-engine adapter. Read is non-blocking in the sense that a call may
// return zero bytes when the adapter has nothing pending; callers that need
// an exact count should use Receive.
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	PurgeBuffers() error
	Reset() error
	Close() error
}

var (
	// ErrShortWrite reports that the transport accepted fewer bytes than were
	// handed to it. There is no partial-write recovery; the session is dead.
	ErrShortWrite = errors.New("mpsse: short write")

	// ErrShortRead reports that the receive attempt budget was exhausted
	// before the requested byte count arrived.
	ErrShortRead = errors.New("mpsse: short read")

	// ErrSync reports that the engine did not echo the bad-command probe.
	ErrSync = errors.New("mpsse: engine failed to sync")
)

// Receive fills dst from the transport, accumulating partial reads. Each
// Read call consumes one attempt; the budget bounds how long a stalled
// adapter can hold the session before a short read is reported.
func Receive(t Transport, dst []byte, attempts int) error {
	off := 0
	for off < len(dst) {
		if attempts <= 0 {
			return fmt.Errorf("%w: %d of %d bytes missing", ErrShortRead, len(dst)-off, len(dst))
		}
		attempts--

		n, err := t.Read(dst[off:])
		if err != nil {
			return fmt.Errorf("mpsse: receive: %w", err)
		}
		off += n
	}
	return nil
}
