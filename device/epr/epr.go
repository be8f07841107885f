package epr

import "fmt"

// Endpoint register bits.
const (
	CtrRx  = 0x8000 // Correct transfer for reception (rc_w0)
	DtogRx = 0x4000 // Data toggle for reception (t)
	StatRx = 0x3000 // Status for reception (t)
	Setup  = 0x0800 // Last completed RX transaction was a SETUP (r)
	Type   = 0x0600 // Endpoint type (rw)
	Kind   = 0x0100 // Endpoint kind (rw)
	CtrTx  = 0x0080 // Correct transfer for transmission (rc_w0)
	DtogTx = 0x0040 // Data toggle for transmission (t)
	StatTx = 0x0030 // Status for transmission (t)
	EA     = 0x000F // Endpoint address (rw)
)

// Field positions.
const (
	statRxShift = 12
	statTxShift = 4
	typeShift   = 9
)

// Field groups by write behaviour.
const (
	// completeMask holds the rc_w0 fields.
	completeMask = CtrRx | CtrTx

	// toggleMask holds the toggle-on-write-1 fields.
	toggleMask = DtogRx | StatRx | DtogTx | StatTx

	// preserveMask holds the fields that are copied unchanged by every
	// write. SETUP is read-only, so writing its current value is harmless.
	preserveMask = Setup | Type | Kind | EA
)

// Direction selects the transmit or receive half of an endpoint register.
type Direction uint8

// Endpoint register directions.
const (
	Tx Direction = iota // Device to host (IN)
	Rx                  // Host to device (OUT and SETUP)
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Rx {
		return "RX"
	}
	return "TX"
}

func (d Direction) statMask() uint16 {
	if d == Rx {
		return StatRx
	}
	return StatTx
}

func (d Direction) statShift() uint {
	if d == Rx {
		return statRxShift
	}
	return statTxShift
}

func (d Direction) dtogMask() uint16 {
	if d == Rx {
		return DtogRx
	}
	return DtogTx
}

func (d Direction) ctrMask() uint16 {
	if d == Rx {
		return CtrRx
	}
	return CtrTx
}

// Status is the 2-bit handshake state of one endpoint direction.
type Status uint8

// Endpoint status values.
const (
	StatusDisabled Status = 0 // All requests ignored
	StatusStall    Status = 1 // Answer with STALL
	StatusNAK      Status = 2 // Answer with NAK
	StatusValid    Status = 3 // Buffer armed
)

// String returns the status name.
func (s Status) String() string {
	switch s & 3 {
	case StatusDisabled:
		return "Disabled"
	case StatusStall:
		return "Stall"
	case StatusNAK:
		return "NAK"
	default:
		return "Valid"
	}
}

// EndpointType is the transfer type encoded in the TYPE field.
type EndpointType uint8

// Endpoint types as encoded by the peripheral. Note the encoding differs
// from the bmAttributes transfer type of an endpoint descriptor.
const (
	TypeBulk        EndpointType = 0
	TypeControl     EndpointType = 1
	TypeIsochronous EndpointType = 2
	TypeInterrupt   EndpointType = 3
)

// String returns the endpoint type name.
func (t EndpointType) String() string {
	switch t & 3 {
	case TypeBulk:
		return "Bulk"
	case TypeControl:
		return "Control"
	case TypeIsochronous:
		return "Isochronous"
	default:
		return "Interrupt"
	}
}

// base returns the part of every write that means "no change": complete
// flags written as 1, toggle fields as 0, rw fields copied.
func base(cur uint16) uint16 {
	return cur&preserveMask | completeMask
}

// WithStatus returns the value to write so the status field of dir becomes
// s. Writing the XOR of the current and desired status flips exactly the
// bits that differ, so the result does not depend on the prior status.
func WithStatus(cur uint16, dir Direction, s Status) uint16 {
	mask := dir.statMask()
	want := uint16(s&3) << dir.statShift()
	return base(cur) | (cur&mask ^ want)
}

// WithStatusBoth returns the value to write so both status fields change
// in a single store.
func WithStatusBoth(cur uint16, tx, rx Status) uint16 {
	wantTx := uint16(tx&3) << statTxShift
	wantRx := uint16(rx&3) << statRxShift
	return base(cur) | (cur&StatTx ^ wantTx) | (cur&StatRx ^ wantRx)
}

// WithCompleteCleared returns the value to write to clear the complete
// flag of dir. The other complete flag is written as 1 and kept.
func WithCompleteCleared(cur uint16, dir Direction) uint16 {
	return base(cur) &^ dir.ctrMask()
}

// WithDataToggle returns the value to write so the data toggle of dir
// becomes bit.
func WithDataToggle(cur uint16, dir Direction, bit bool) uint16 {
	mask := dir.dtogMask()
	var want uint16
	if bit {
		want = mask
	}
	return base(cur) | (cur&mask ^ want)
}

// WithAddress returns the value to write to set the EA field.
func WithAddress(cur uint16, addr uint8) uint16 {
	return base(cur)&^EA | uint16(addr)&EA
}

// WithType returns the value to write to set the TYPE field.
func WithType(cur uint16, t EndpointType) uint16 {
	return base(cur)&^Type | uint16(t&3)<<typeShift
}

// WithKind returns the value to write to set the KIND bit. For bulk
// endpoints KIND selects double buffering; for control endpoints it
// requests STATUS_OUT handling.
func WithKind(cur uint16, kind bool) uint16 {
	v := base(cur) &^ Kind
	if kind {
		v |= Kind
	}
	return v
}

// StatusOf decodes the status field of dir.
func StatusOf(reg uint16, dir Direction) Status {
	return Status(reg & dir.statMask() >> dir.statShift())
}

// IsComplete reports whether the complete flag of dir is set.
func IsComplete(reg uint16, dir Direction) bool {
	return reg&dir.ctrMask() != 0
}

// IsSetup reports whether the last RX completion was a SETUP transaction.
func IsSetup(reg uint16) bool {
	return reg&Setup != 0
}

// DataToggle reports the data toggle of dir.
func DataToggle(reg uint16, dir Direction) bool {
	return reg&dir.dtogMask() != 0
}

// TypeOf decodes the TYPE field.
func TypeOf(reg uint16) EndpointType {
	return EndpointType(reg & Type >> typeShift)
}

// AddressOf decodes the EA field.
func AddressOf(reg uint16) uint8 {
	return uint8(reg & EA)
}

// IsKind reports whether the KIND bit is set.
func IsKind(reg uint16) bool {
	return reg&Kind != 0
}

// Describe formats a register value for logging.
func Describe(reg uint16) string {
	return fmt.Sprintf("EA=%d %s KIND=%t RX[%s ctr=%t dtog=%t setup=%t] TX[%s ctr=%t dtog=%t]",
		AddressOf(reg), TypeOf(reg), IsKind(reg),
		StatusOf(reg, Rx), IsComplete(reg, Rx), DataToggle(reg, Rx), IsSetup(reg),
		StatusOf(reg, Tx), IsComplete(reg, Tx), DataToggle(reg, Tx))
}
