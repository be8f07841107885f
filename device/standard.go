package device

import (
	"encoding/binary"
	"fmt"

	"github.com/ardnew/pmausb/device/diag"
	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/pkg"
)

// handleStandard processes a standard request and returns the IN
// response, if any.
func (d *Driver) handleStandard(setup *SetupPacket, data []byte) ([]byte, error) {
	switch setup.Recipient() {
	case RequestRecipientDevice:
		return d.handleDeviceRequest(setup)
	case RequestRecipientInterface:
		return d.handleInterfaceRequest(setup, data)
	case RequestRecipientEndpoint:
		return d.handleEndpointRequest(setup)
	default:
		return nil, fmt.Errorf("recipient %d: %w", setup.Recipient(), pkg.ErrInvalidRequest)
	}
}

func (d *Driver) handleDeviceRequest(setup *SetupPacket) ([]byte, error) {
	switch setup.Request {
	case RequestGetStatus:
		binary.LittleEndian.PutUint16(d.statusBuf[:], uint16(d.GetStatus()))
		return d.statusBuf[:], nil

	case RequestClearFeature, RequestSetFeature:
		switch setup.Value {
		case FeatureDeviceRemoteWakeup:
			d.remoteWakeup = setup.Request == RequestSetFeature
			return nil, nil
		default:
			// TEST_MODE is a high-speed feature.
			return nil, fmt.Errorf("device feature %d: %w", setup.Value, pkg.ErrNotSupported)
		}

	case RequestSetAddress:
		return nil, d.setAddress(setup)

	case RequestGetDescriptor:
		return d.desc.Lookup(setup.DescriptorType(), setup.DescriptorIndex())

	case RequestSetDescriptor:
		return nil, fmt.Errorf("SET_DESCRIPTOR: %w", pkg.ErrNotSupported)

	case RequestGetConfiguration:
		d.statusBuf[0] = d.configuration
		return d.statusBuf[:1], nil

	case RequestSetConfiguration:
		return nil, d.setConfiguration(uint8(setup.Value))

	default:
		return nil, fmt.Errorf("device request 0x%02X: %w", setup.Request, pkg.ErrInvalidRequest)
	}
}

// setAddress records the new address. It is applied once the status stage
// completes.
func (d *Driver) setAddress(setup *SetupPacket) error {
	if setup.Value > 127 || setup.Index != 0 || setup.Length != 0 {
		return fmt.Errorf("SET_ADDRESS value %d: %w", setup.Value, pkg.ErrInvalidRequest)
	}
	if d.state == StateConfigured {
		return fmt.Errorf("SET_ADDRESS in state %s: %w", d.state, pkg.ErrInvalidState)
	}
	d.ctrl.action = actionSetAddress
	d.ctrl.address = uint8(setup.Value)
	return nil
}

// setConfiguration selects configuration value, or returns to the
// Address state when value is 0.
func (d *Driver) setConfiguration(value uint8) error {
	if d.state != StateAddress && d.state != StateConfigured {
		return fmt.Errorf("SET_CONFIGURATION in state %s: %w", d.state, pkg.ErrInvalidState)
	}
	if value != 0 && value != d.desc.ConfigurationValue() {
		return fmt.Errorf("configuration %d: %w", value, pkg.ErrInvalidRequest)
	}

	d.disableEndpoints()
	d.configuration = 0
	if value == 0 {
		d.setState(StateAddress)
		d.notifyClass(0)
		return nil
	}

	d.enableEndpoints()
	d.configuration = value
	d.setState(StateConfigured)
	d.diag.Append(0, diag.OpSetConfiguration, []byte{value})
	if err := d.notifyClass(value); err != nil {
		d.disableEndpoints()
		d.configuration = 0
		d.setState(StateAddress)
		return err
	}
	pkg.LogInfo(pkg.ComponentControl, "configured", "configuration", value)
	return nil
}

func (d *Driver) handleInterfaceRequest(setup *SetupPacket, data []byte) ([]byte, error) {
	if d.state != StateConfigured || setup.InterfaceNumber() >= d.desc.NumInterfaces() {
		return nil, fmt.Errorf("interface %d: %w", setup.InterfaceNumber(), pkg.ErrInvalidRequest)
	}
	switch setup.Request {
	case RequestGetStatus:
		d.statusBuf = [2]byte{}
		return d.statusBuf[:], nil

	case RequestGetInterface:
		d.statusBuf[0] = 0
		return d.statusBuf[:1], nil

	case RequestSetInterface:
		if setup.Value != 0 {
			return nil, fmt.Errorf("alternate setting %d: %w", setup.Value, pkg.ErrNotSupported)
		}
		return nil, nil

	default:
		// Interface-directed requests this driver does not know, such as
		// class descriptors, belong to the class driver.
		if d.class == nil {
			return nil, fmt.Errorf("interface request 0x%02X: %w", setup.Request, pkg.ErrInvalidRequest)
		}
		return d.class.HandleSetup(setup, data)
	}
}

func (d *Driver) handleEndpointRequest(setup *SetupPacket) ([]byte, error) {
	num, dir, err := d.endpointRecipient(setup.EndpointAddress())
	if err != nil {
		return nil, err
	}
	switch setup.Request {
	case RequestGetStatus:
		d.statusBuf = [2]byte{}
		if num != 0 && d.regs.Status(num, dir) == epr.StatusStall {
			d.statusBuf[0] = endpointStatusHalt
		}
		return d.statusBuf[:], nil

	case RequestClearFeature:
		if setup.Value != FeatureEndpointHalt {
			return nil, fmt.Errorf("endpoint feature %d: %w", setup.Value, pkg.ErrInvalidRequest)
		}
		if num != 0 {
			d.clearHalt(num, dir)
		}
		return nil, nil

	case RequestSetFeature:
		if setup.Value != FeatureEndpointHalt {
			return nil, fmt.Errorf("endpoint feature %d: %w", setup.Value, pkg.ErrInvalidRequest)
		}
		if num != 0 {
			d.halt(num, dir)
		}
		return nil, nil

	case RequestSynchFrame:
		// No isochronous endpoints.
		return nil, fmt.Errorf("SYNCH_FRAME: %w", pkg.ErrNotSupported)

	default:
		return nil, fmt.Errorf("endpoint request 0x%02X: %w", setup.Request, pkg.ErrInvalidRequest)
	}
}

// endpointRecipient resolves a wIndex endpoint address to a configured
// endpoint register and direction.
func (d *Driver) endpointRecipient(addr uint8) (uint8, epr.Direction, error) {
	num := addr & 0x0F
	dir := epr.Rx
	if addr&EndpointDirectionIn != 0 {
		dir = epr.Tx
	}
	if num == 0 {
		return 0, dir, nil
	}
	if d.state != StateConfigured || num >= d.layout.EPCount {
		return 0, dir, fmt.Errorf("endpoint 0x%02X: %w", addr, pkg.ErrInvalidEndpoint)
	}
	ep := &d.endpoints[num]
	if (dir == epr.Tx && ep.TxMax == 0) || (dir == epr.Rx && ep.RxMax == 0) {
		return 0, dir, fmt.Errorf("endpoint 0x%02X: %w", addr, pkg.ErrInvalidEndpoint)
	}
	return num, dir, nil
}
