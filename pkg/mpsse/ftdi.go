package mpsse

import (
	"fmt"

	"github.com/google/gousb"
)

// FT232H USB identifiers and the control requests the FTDI serial converter
// understands. Requests travel over endpoint 0 with the vendor-out request
// type; wIndex selects the channel (1 = channel A).
const (
	VendorIDFTDI    = 0x0403
	ProductIDFT232H = 0x6014

	reqReset           = 0x00
	reqSetLatencyTimer = 0x09
	reqSetBitMode      = 0x0B

	resetSIO     = 0
	resetPurgeRX = 1
	resetPurgeTX = 2

	bitModeReset = 0x00
	bitModeMPSSE = 0x02

	// All low-port pins except TDO drive as outputs, idle TMS high.
	mpssePinDirections = 0x0B
	mpssePinIdle       = 0x08

	ftdiChannelA = 1
)

// FTDITransport drives an FT232H in MPSSE mode over raw USB bulk transfers.
type FTDITransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface
	done func()

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	maxPacket int
}

// OpenFTDI opens and configures the converter: USB reset, latency timer,
// buffer purge, then bit mode off followed by MPSSE mode. The returned
// transport is exclusively owned by one session.
func OpenFTDI(vid, pid uint16, latencyMs uint8) (*FTDITransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("mpsse: open device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("mpsse: device %04x:%04x not found", vid, pid)
	}

	// Needed on Linux where ftdi_sio usually has the port claimed.
	if err := dev.SetAutoDetach(true); err != nil {
		// Not supported everywhere; claiming below will tell us if it mattered.
		_ = err
	}

	t := &FTDITransport{ctx: ctx, dev: dev}
	if err := t.claim(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	if err := t.configure(latencyMs); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// claim takes channel A and locates its bulk endpoint pair.
func (t *FTDITransport) claim() error {
	intf, done, err := t.dev.DefaultInterface()
	if err != nil {
		return fmt.Errorf("mpsse: claim interface: %w", err)
	}
	t.intf = intf
	t.done = done

	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionIn:
			in, err := intf.InEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("mpsse: open IN endpoint: %w", err)
			}
			t.epIn = in
			t.maxPacket = ep.MaxPacketSize
		case gousb.EndpointDirectionOut:
			out, err := intf.OutEndpoint(ep.Number)
			if err != nil {
				return fmt.Errorf("mpsse: open OUT endpoint: %w", err)
			}
			t.epOut = out
		}
	}
	if t.epIn == nil || t.epOut == nil {
		return fmt.Errorf("mpsse: bulk endpoint pair not found")
	}
	return nil
}

func (t *FTDITransport) configure(latencyMs uint8) error {
	steps := []struct {
		name    string
		request uint8
		value   uint16
	}{
		{"reset", reqReset, resetSIO},
		{"latency timer", reqSetLatencyTimer, uint16(latencyMs)},
		{"purge rx", reqReset, resetPurgeRX},
		{"purge tx", reqReset, resetPurgeTX},
		{"bit mode off", reqSetBitMode, uint16(bitModeReset)<<8 | 0x00},
		{"mpsse mode", reqSetBitMode, uint16(bitModeMPSSE)<<8 | mpssePinDirections},
	}
	for _, s := range steps {
		if err := t.control(s.request, s.value); err != nil {
			return fmt.Errorf("mpsse: configure %s: %w", s.name, err)
		}
	}
	return nil
}

func (t *FTDITransport) control(request uint8, value uint16) error {
	_, err := t.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		request, value, ftdiChannelA, nil)
	return err
}

// Write sends command bytes to the engine.
func (t *FTDITransport) Write(p []byte) (int, error) {
	n, err := t.epOut.Write(p)
	if err != nil {
		return n, fmt.Errorf("mpsse: usb write: %w", err)
	}
	return n, nil
}

// Read drains response bytes. The converter prepends two modem-status bytes
// to every bulk IN packet, so the raw transfer is read in packet-sized
// strides and the status bytes are stripped from each.
func (t *FTDITransport) Read(p []byte) (int, error) {
	payload := t.maxPacket - 2
	packets := (len(p) + payload - 1) / payload
	raw := make([]byte, packets*t.maxPacket)

	n, err := t.epIn.Read(raw)
	if err != nil {
		return 0, fmt.Errorf("mpsse: usb read: %w", err)
	}

	out := 0
	for off := 0; off < n; off += t.maxPacket {
		end := off + t.maxPacket
		if end > n {
			end = n
		}
		if end-off <= 2 {
			continue
		}
		out += copy(p[out:], raw[off+2:end])
	}
	return out, nil
}

// PurgeBuffers discards pending data on both sides of the converter.
func (t *FTDITransport) PurgeBuffers() error {
	if err := t.control(reqReset, resetPurgeRX); err != nil {
		return fmt.Errorf("mpsse: purge rx: %w", err)
	}
	if err := t.control(reqReset, resetPurgeTX); err != nil {
		return fmt.Errorf("mpsse: purge tx: %w", err)
	}
	return nil
}

// Reset performs a USB-level reset of the converter.
func (t *FTDITransport) Reset() error {
	if err := t.control(reqReset, resetSIO); err != nil {
		return fmt.Errorf("mpsse: reset: %w", err)
	}
	return nil
}

// Close releases the interface and USB handles.
func (t *FTDITransport) Close() error {
	if t.done != nil {
		t.done()
		t.done = nil
		t.intf = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// InitCommands appends the MPSSE setup block: pin levels and directions,
// direct 60MHz clocking with the requested divisor, and single-phase
// non-adaptive data clocking, ending with a response-buffer flush.
func InitCommands(buf *CommandBuffer, tckDivisor uint16) error {
	return buf.Append(
		SetBitsLow, mpssePinIdle, mpssePinDirections,
		SetBitsHigh, 0x00, 0x00,
		DisableClkDiv5,
		SetTCKDivisor, byte(tckDivisor), byte(tckDivisor>>8),
		DisableClk3Phase,
		DisableAdaptiveClk,
		SendImmediate,
	)
}
