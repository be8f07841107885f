package device

import (
	"fmt"

	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/pkg"
)

// EndpointConfig describes a non-control endpoint. One endpoint register
// serves both directions of an endpoint number; a zero size leaves that
// direction disabled.
type EndpointConfig struct {
	Number uint8            // Endpoint number, 1 to EPCount-1
	Type   epr.EndpointType // TypeBulk or TypeInterrupt
	TxMax  uint16           // IN max packet size
	RxMax  uint16           // OUT max packet size
}

func (c *EndpointConfig) validate(epCount uint8) error {
	if c.Number == 0 || c.Number >= epCount {
		return fmt.Errorf("endpoint %d: %w", c.Number, pkg.ErrInvalidEndpoint)
	}
	switch c.Type {
	case epr.TypeBulk, epr.TypeInterrupt:
	default:
		return fmt.Errorf("endpoint %d type %s: %w", c.Number, c.Type, pkg.ErrNotSupported)
	}
	if c.TxMax == 0 && c.RxMax == 0 {
		return fmt.Errorf("endpoint %d has no direction: %w", c.Number, pkg.ErrInvalidParameter)
	}
	if c.TxMax > MaxPacketSize || c.RxMax > MaxPacketSize {
		return fmt.Errorf("endpoint %d packet size: %w", c.Number, pkg.ErrInvalidParameter)
	}
	return nil
}

// EndpointState is the runtime state of one endpoint register. The
// transmit fields change only between a completion and the next arm.
type EndpointState struct {
	Number uint8
	Type   epr.EndpointType
	TxMax  uint16
	RxMax  uint16

	txAddr uint16 // PMA transmit buffer
	rxAddr uint16 // PMA receive buffer

	tx     []byte // Transfer being sent, owned by the caller until done
	txOff  int    // Bytes already handed to the peripheral
	txZLP  bool   // A zero-length packet still ends the transfer
	txBusy bool

	rx    []byte // Last received packet
	rxBuf [MaxPacketSize]byte
}

// Busy reports whether an IN transfer is in flight.
func (e *EndpointState) Busy() bool {
	return e.txBusy
}

// Pending returns the number of bytes of the current IN transfer not yet
// handed to the peripheral.
func (e *EndpointState) Pending() int {
	return len(e.tx) - e.txOff
}

// Received returns the last OUT packet. The slice is valid until the
// endpoint is re-armed.
func (e *EndpointState) Received() []byte {
	return e.rx
}

func (e *EndpointState) clearTx() {
	e.tx = nil
	e.txOff = 0
	e.txZLP = false
	e.txBusy = false
}
