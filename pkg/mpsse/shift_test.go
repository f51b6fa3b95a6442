package mpsse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftBytesEncoding(t *testing.T) {
	tests := []struct {
		name string
		tdi  []byte
		n    int
		read bool
		want []byte
	}{
		{
			name: "write only",
			tdi:  []byte{0xDE, 0xAD, 0xBE},
			n:    3,
			want: []byte{LSBFirst | DoWrite | WriteNeg, 0x02, 0x00, 0xDE, 0xAD, 0xBE},
		},
		{
			name: "read only",
			n:    2,
			read: true,
			want: []byte{LSBFirst | DoRead, 0x01, 0x00},
		},
		{
			name: "write and read",
			tdi:  []byte{0x55},
			n:    1,
			read: true,
			want: []byte{LSBFirst | DoWrite | WriteNeg | DoRead, 0x00, 0x00, 0x55},
		},
		{
			name: "length field is little endian",
			n:    0x1234,
			read: true,
			want: []byte{LSBFirst | DoRead, 0x33, 0x12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewCommandBuffer(&fakeTransport{}, 0x20000)
			require.NoError(t, ShiftBytes(buf, tt.tdi, tt.n, tt.read))
			assert.Equal(t, tt.want, bufferBytes(buf))
		})
	}
}

func TestShiftBytesRejectsBadLengths(t *testing.T) {
	buf := NewCommandBuffer(&fakeTransport{}, 64)

	assert.Error(t, ShiftBytes(buf, nil, 0, true))
	assert.Error(t, ShiftBytes(buf, nil, MaxShiftBytes+1, true))
	assert.Error(t, ShiftBytes(buf, []byte{1}, 2, false))
	assert.Error(t, ShiftBytes(buf, nil, 1, false))
	assert.Equal(t, 0, buf.Len())
}

func TestShiftBitsEncoding(t *testing.T) {
	tmsCmd := byte(WriteTMS | BitMode | LSBFirst | WriteNeg)

	tests := []struct {
		name string
		tdi  []byte
		n    int
		read bool
		want []byte
	}{
		{
			name: "single zero bit is one tms command",
			tdi:  []byte{0x00},
			n:    1,
			want: []byte{tmsCmd, 0x00, 0x01},
		},
		{
			name: "single one bit rides the data msb",
			tdi:  []byte{0x01},
			n:    1,
			want: []byte{tmsCmd, 0x00, 0x81},
		},
		{
			name: "six bits split five plus tms",
			tdi:  []byte{0x29}, // 101001b
			n:    6,
			want: []byte{
				BitMode | LSBFirst | DoWrite | WriteNeg, 0x04, 0x09,
				tmsCmd, 0x00, 0x81,
			},
		},
		{
			name: "capture sets the read flag on both commands",
			tdi:  []byte{0xFF},
			n:    8,
			read: true,
			want: []byte{
				BitMode | LSBFirst | DoWrite | WriteNeg | DoRead, 0x06, 0x7F,
				tmsCmd | DoRead, 0x00, 0x81,
			},
		},
		{
			name: "read-only shift carries no data for the bit command",
			n:    4,
			read: true,
			want: []byte{
				BitMode | LSBFirst | DoRead, 0x02,
				tmsCmd | DoRead, 0x00, 0x01,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewCommandBuffer(&fakeTransport{}, 64)
			require.NoError(t, ShiftBits(buf, tt.tdi, tt.n, tt.read))
			assert.Equal(t, tt.want, bufferBytes(buf))
		})
	}
}

func TestShiftBitsRejectsBadLengths(t *testing.T) {
	buf := NewCommandBuffer(&fakeTransport{}, 64)
	assert.Error(t, ShiftBits(buf, []byte{0}, 0, false))
	assert.Error(t, ShiftBits(buf, []byte{0}, 9, false))
	assert.Error(t, ShiftBits(buf, []byte{}, 3, false))
}

func TestCombineBits(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		n    int
		want byte
	}{
		{"one bit set", []byte{0x80}, 1, 0x01},
		{"one bit clear", []byte{0x7F}, 1, 0x00},
		{"two bits", []byte{0x80, 0x80}, 2, 0x03},
		{"six bits", []byte{0x48, 0x80}, 6, 0x29},
		{"eight bits", []byte{0xFE, 0x80}, 8, 0xFF},
		{"final bit clear", []byte{0xFE, 0x00}, 8, 0x7F},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CombineBits(tt.raw, tt.n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombineBitsValidation(t *testing.T) {
	_, err := CombineBits([]byte{0}, 0)
	assert.Error(t, err)
	_, err = CombineBits([]byte{0}, 9)
	assert.Error(t, err)
	_, err = CombineBits([]byte{0}, 2) // two bytes required
	assert.Error(t, err)
}

func TestSync(t *testing.T) {
	t.Run("matching echo", func(t *testing.T) {
		tr := &fakeTransport{reads: [][]byte{{BadCommandEcho, BadCommand}}}
		buf := NewCommandBuffer(tr, 64)

		require.NoError(t, Sync(buf, tr, 5))
		assert.Equal(t, []byte{BadCommand}, tr.written)
	})

	t.Run("wrong echo", func(t *testing.T) {
		tr := &fakeTransport{reads: [][]byte{{0x00, 0x00}}}
		buf := NewCommandBuffer(tr, 64)

		err := Sync(buf, tr, 5)
		require.ErrorIs(t, err, ErrSync)
	})

	t.Run("no response", func(t *testing.T) {
		tr := &fakeTransport{}
		buf := NewCommandBuffer(tr, 64)

		err := Sync(buf, tr, 3)
		require.ErrorIs(t, err, ErrSync)
	})
}

// bufferBytes copies out the commands encoded so far.
func bufferBytes(buf *CommandBuffer) []byte {
	return append([]byte(nil), buf.Bytes()...)
}
