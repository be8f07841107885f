package device

import (
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/pkg"
)

// State returns the device state.
func (d *Driver) State() State {
	return d.state
}

// setState changes the device state and triggers the callback.
func (d *Driver) setState(newState State) {
	oldState := d.state
	d.state = newState
	if oldState == newState {
		return
	}
	pkg.LogDebug(pkg.ComponentDriver, "device state changed",
		"from", oldState.String(),
		"to", newState.String())
	if d.onStateChange != nil {
		d.onStateChange(oldState, newState)
	}
}

// SetOnStateChange sets the state change callback. It runs inside Service.
func (d *Driver) SetOnStateChange(cb func(old, new State)) {
	s := d.crit.Disable()
	defer d.crit.Restore(s)
	d.onStateChange = cb
}

// Address returns the device address in effect.
func (d *Driver) Address() uint8 {
	return d.address
}

// Configuration returns the selected configuration value, 0 if none.
func (d *Driver) Configuration() uint8 {
	return d.configuration
}

// IsConfigured reports whether the device is configured.
func (d *Driver) IsConfigured() bool {
	return d.state == StateConfigured
}

// IsSuspended reports whether the bus is suspended.
func (d *Driver) IsSuspended() bool {
	return d.state == StateSuspended
}

// RemoteWakeupEnabled reports whether the host enabled remote wakeup.
func (d *Driver) RemoteWakeupEnabled() bool {
	return d.remoteWakeup
}

// GetStatus returns the device GET_STATUS bits.
func (d *Driver) GetStatus() DeviceStatus {
	var status DeviceStatus
	if d.desc.ConfigurationAttributes()&ConfigAttrSelfPowered != 0 {
		status |= DeviceStatusSelfPowered
	}
	if d.remoteWakeup {
		status |= DeviceStatusRemoteWakeup
	}
	return status
}

// suspend enters the Suspended state and forces the peripheral into
// suspend mode.
func (d *Driver) suspend() {
	if d.state == StateSuspended {
		return
	}
	d.prevState = d.state
	d.store(hal.OffsetCNTR, d.load(hal.OffsetCNTR)|hal.CntrFSUSP)
	d.setState(StateSuspended)
	pkg.LogDebug(pkg.ComponentDriver, "device suspended")
}

// resume leaves suspend mode and restores the state held before it.
func (d *Driver) resume() {
	d.store(hal.OffsetCNTR, d.load(hal.OffsetCNTR)&^(hal.CntrFSUSP|hal.CntrLPMODE))
	if d.state != StateSuspended {
		return
	}
	prev := d.prevState
	if prev == StateAttached || prev == StatePowered {
		prev = StateDefault
	}
	d.setState(prev)
	pkg.LogDebug(pkg.ComponentDriver, "device resumed")
}
