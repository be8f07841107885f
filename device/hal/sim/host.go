package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/pmausb/pkg"
)

// Host defaults.
const (
	DefaultMaxPacketSize0 = 64
	DefaultRetries        = 8

	// maxDispatch bounds interrupt handler calls per transaction so a
	// handler that never clears its flag cannot hang the session.
	maxDispatch = 16
)

// Setup encodes a SETUP packet.
func Setup(requestType, request uint8, value, index, length uint16) [8]byte {
	var pkt [8]byte
	pkt[0] = requestType
	pkt[1] = request
	binary.LittleEndian.PutUint16(pkt[2:], value)
	binary.LittleEndian.PutUint16(pkt[4:], index)
	binary.LittleEndian.PutUint16(pkt[6:], length)
	return pkt
}

// Host drives a Peripheral with token-level transactions and runs the
// device interrupt handler after each one.
type Host struct {
	p   *Peripheral
	irq func()

	// Address is the device address tokens are sent to.
	Address uint8

	// MaxPacketSize0 is the control endpoint packet size.
	MaxPacketSize0 int

	// Retries is the number of NAKed attempts before a transaction fails.
	Retries int
}

// NewHost creates a host attached to p. irq is the device interrupt
// handler.
func NewHost(p *Peripheral, irq func()) *Host {
	return &Host{
		p:              p,
		irq:            irq,
		MaxPacketSize0: DefaultMaxPacketSize0,
		Retries:        DefaultRetries,
	}
}

// Peripheral returns the attached peripheral.
func (h *Host) Peripheral() *Peripheral {
	return h.p
}

// Dispatch runs the interrupt handler while an enabled interrupt is
// pending.
func (h *Host) Dispatch() {
	for i := 0; i < maxDispatch && h.p.Pending(); i++ {
		h.irq()
	}
}

// Reset signals a bus reset and returns the host to address 0.
func (h *Host) Reset() {
	h.p.BusReset()
	h.Address = 0
	h.Dispatch()
}

// Suspend signals bus suspend.
func (h *Host) Suspend() {
	h.p.Suspend()
	h.Dispatch()
}

// Resume signals resume.
func (h *Host) Resume() {
	h.p.Wakeup()
	h.Dispatch()
}

func handshakeError(hs Handshake) error {
	switch hs {
	case HandshakeACK:
		return nil
	case HandshakeNAK:
		return pkg.ErrNAK
	case HandshakeStall:
		return pkg.ErrStall
	default:
		return pkg.ErrNoResponse
	}
}

// SendSetup issues a SETUP transaction to endpoint 0.
func (h *Host) SendSetup(pkt [8]byte) error {
	hs := h.p.Setup(h.Address, 0, pkt)
	if hs == HandshakeACK {
		h.Dispatch()
	}
	return handshakeError(hs)
}

// Out issues one OUT transaction, retrying while the endpoint NAKs.
func (h *Host) Out(ep uint8, data []byte) error {
	var hs Handshake
	for try := 0; try <= h.Retries; try++ {
		hs = h.p.Out(h.Address, ep, data)
		if hs != HandshakeNAK {
			break
		}
		h.Dispatch()
	}
	if hs == HandshakeACK {
		h.Dispatch()
	}
	if err := handshakeError(hs); err != nil {
		return fmt.Errorf("OUT ep%d: %w", ep, err)
	}
	return nil
}

// In issues one IN transaction, retrying while the endpoint NAKs.
func (h *Host) In(ep uint8) ([]byte, error) {
	var (
		data []byte
		hs   Handshake
	)
	for try := 0; try <= h.Retries; try++ {
		data, hs = h.p.In(h.Address, ep)
		if hs != HandshakeNAK {
			break
		}
		h.Dispatch()
	}
	if hs == HandshakeACK {
		h.Dispatch()
	}
	if err := handshakeError(hs); err != nil {
		return nil, fmt.Errorf("IN ep%d: %w", ep, err)
	}
	return data, nil
}

// ControlIn performs a control read: SETUP, IN data packets until a short
// packet or wLength bytes, then a zero-length OUT status.
func (h *Host) ControlIn(setup [8]byte) ([]byte, error) {
	if err := h.SendSetup(setup); err != nil {
		return nil, fmt.Errorf("setup stage: %w", err)
	}
	length := int(binary.LittleEndian.Uint16(setup[6:]))
	var data []byte
	for length > 0 {
		pkt, err := h.In(0)
		if err != nil {
			return data, fmt.Errorf("data stage: %w", err)
		}
		data = append(data, pkt...)
		if len(pkt) < h.MaxPacketSize0 || len(data) >= length {
			break
		}
	}
	if err := h.Out(0, nil); err != nil {
		return data, fmt.Errorf("status stage: %w", err)
	}
	return data, nil
}

// ControlOut performs a control write: SETUP, OUT data packets, then a
// zero-length IN status.
func (h *Host) ControlOut(setup [8]byte, data []byte) error {
	if err := h.SendSetup(setup); err != nil {
		return fmt.Errorf("setup stage: %w", err)
	}
	for off := 0; off < len(data); off += h.MaxPacketSize0 {
		end := min(off+h.MaxPacketSize0, len(data))
		if err := h.Out(0, data[off:end]); err != nil {
			return fmt.Errorf("data stage: %w", err)
		}
	}
	status, err := h.In(0)
	if err != nil {
		return fmt.Errorf("status stage: %w", err)
	}
	if len(status) != 0 {
		return fmt.Errorf("status stage: %d-byte packet: %w", len(status), pkg.ErrProtocol)
	}
	return nil
}

// SetAddress assigns a device address and switches the host to it once the
// status stage completes.
func (h *Host) SetAddress(addr uint8) error {
	if err := h.ControlOut(Setup(0x00, 0x05, uint16(addr), 0, 0), nil); err != nil {
		return err
	}
	h.Address = addr
	return nil
}

// BulkOut sends data to ep in packets of at most mps bytes.
func (h *Host) BulkOut(ep uint8, data []byte, mps int) error {
	for off := 0; off < len(data); off += mps {
		end := min(off+mps, len(data))
		if err := h.Out(ep, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

// BulkIn reads packets from ep until a short packet ends the transfer.
func (h *Host) BulkIn(ep uint8, mps int) ([]byte, error) {
	var data []byte
	for {
		pkt, err := h.In(ep)
		if err != nil {
			return data, err
		}
		data = append(data, pkt...)
		if len(pkt) < mps {
			return data, nil
		}
	}
}
