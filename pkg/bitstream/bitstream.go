// Package bitstream loads FPGA configuration images and puts them in wire
// bit order. The file contents are opaque; the only transform applied is a
// per-byte bit reversal, because the configuration logic expects bits
// MSB-first while the data register shifts LSB-first.
package bitstream

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// MaxSize bounds how much of a file is accepted. A read that fills the
// whole allowance is treated as a truncation hazard, not a valid image.
const MaxSize = 16 * 1024 * 1024

// ErrLoad tags any failure to produce a usable bitstream from a file.
var ErrLoad = errors.New("bitstream: load failed")

// Load reads the file at path and returns its contents with every byte
// bit-reversed, ready to shift LSB-first.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoad, path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrLoad, path)
	}
	if len(data) >= MaxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes or more, limit %d", ErrLoad, path, len(data), MaxSize)
	}

	ReverseAll(data)
	return data, nil
}

// Reverse mirrors the bits of a byte: a nibble swap, a two-bit-group swap,
// then a single-bit swap. Applying it twice is the identity.
func Reverse(b byte) byte {
	b = b>>4 | b<<4
	b = (b&0xCC)>>2 | (b&0x33)<<2
	b = (b&0xAA)>>1 | (b&0x55)<<1
	return b
}

// ReverseAll applies Reverse to every byte in place.
func ReverseAll(p []byte) {
	for i := range p {
		p[i] = Reverse(p[i])
	}
}
