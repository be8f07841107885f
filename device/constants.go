package device

import "fmt"

// Driver limits.
const (
	// MaxControlDataSize is the largest control data stage the driver
	// buffers. Longer IN responses are truncated; longer OUT data stages
	// are stalled.
	MaxControlDataSize = 256

	// MaxPacketSize is the largest full-speed bulk or interrupt packet.
	MaxPacketSize = 64

	// ConfigurationValue is the only configuration this driver exposes.
	ConfigurationValue = 1
)

// Device states (USB 2.0 section 9.1).
const (
	StateAttached   State = 0 // Attached, not powered
	StatePowered    State = 1 // Powered, not reset
	StateDefault    State = 2 // Reset, answering at address 0
	StateAddress    State = 3 // Unique address assigned
	StateConfigured State = 4 // Configuration selected
	StateSuspended  State = 5 // Bus idle
)

// State is the device state.
type State uint8

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateAttached:
		return "Attached"
	case StatePowered:
		return "Powered"
	case StateDefault:
		return "Default"
	case StateAddress:
		return "Address"
	case StateConfigured:
		return "Configured"
	case StateSuspended:
		return "Suspended"
	default:
		return fmt.Sprintf("Unknown State (%d)", s)
	}
}

// DeviceStatus holds the GET_STATUS bits of the device recipient.
type DeviceStatus uint16

// Device status bits.
const (
	DeviceStatusSelfPowered  DeviceStatus = 1 << 0
	DeviceStatusRemoteWakeup DeviceStatus = 1 << 1
)

// endpointStatusHalt is the GET_STATUS bit of the endpoint recipient.
const endpointStatusHalt = 1 << 0
