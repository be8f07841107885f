package device

import (
	"fmt"

	"github.com/ardnew/pmausb/device/diag"
	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/pkg"
)

// ControlStage is the position of the control endpoint in a transfer.
type ControlStage uint8

// Control transfer stages.
const (
	StageIdle      ControlStage = iota // Waiting for SETUP
	StageSetup                         // SETUP received, being decoded
	StageDataIn                        // Sending the IN data stage
	StageDataOut                       // Collecting the OUT data stage
	StageStatusIn                      // Zero-length IN status armed
	StageStatusOut                     // Waiting for the zero-length OUT status
)

// String returns the stage name.
func (s ControlStage) String() string {
	switch s {
	case StageIdle:
		return "Idle"
	case StageSetup:
		return "Setup"
	case StageDataIn:
		return "DataIn"
	case StageDataOut:
		return "DataOut"
	case StageStatusIn:
		return "StatusIn"
	case StageStatusOut:
		return "StatusOut"
	default:
		return fmt.Sprintf("Unknown Stage (%d)", s)
	}
}

// pendingAction is work deferred until the status stage completes.
type pendingAction uint8

const (
	actionNone pendingAction = iota
	actionSetAddress
)

// controlContext tracks the one control transfer in progress.
type controlContext struct {
	stage    ControlStage
	setup    SetupPacket
	length   int // OUT data stage length
	received int // OUT data bytes collected
	action   pendingAction
	address  uint8
}

// serviceControl handles a completion on endpoint 0.
func (d *Driver) serviceControl() {
	reg := d.regs.Read(0)
	if epr.IsComplete(reg, epr.Tx) {
		d.regs.ClearComplete(0, epr.Tx)
		d.controlIn()
	}
	if epr.IsComplete(reg, epr.Rx) {
		ep0 := &d.endpoints[0]
		n := min(d.table.RxCount(0).Received(), len(ep0.rxBuf))
		ep0.rx = ep0.rxBuf[:n]
		d.table.Read(ep0.rxAddr, ep0.rx)
		d.regs.ClearComplete(0, epr.Rx)
		if epr.IsSetup(reg) {
			d.controlSetup(ep0.rx)
		} else {
			d.controlOut(ep0.rx)
		}
	}
}

// controlSetup starts a new transfer. A SETUP always abandons whatever
// transfer was in progress.
func (d *Driver) controlSetup(raw []byte) {
	ep0 := &d.endpoints[0]
	ep0.clearTx()
	d.ctrl = controlContext{stage: StageSetup}

	setup := &d.ctrl.setup
	if err := ParseSetupPacket(raw, setup); err != nil {
		d.controlStall(err)
		return
	}
	d.logSetup(raw, setup)
	pkg.LogDebug(pkg.ComponentControl, "setup", "request", setup.String())

	if err := d.acceptsType(setup); err != nil {
		d.controlStall(err)
		return
	}

	if setup.HasData() && !setup.IsDeviceToHost() {
		if int(setup.Length) > MaxControlDataSize {
			d.controlStall(fmt.Errorf("OUT data stage of %d bytes: %w", setup.Length, pkg.ErrBufferTooSmall))
			return
		}
		d.ctrl.stage = StageDataOut
		d.ctrl.length = int(setup.Length)
		d.regs.SetStatusBoth(0, epr.StatusNAK, epr.StatusValid)
		return
	}

	resp, err := d.dispatch(setup, nil)
	if err != nil {
		d.controlStall(err)
		return
	}
	if !setup.HasData() {
		d.controlStatusIn()
		return
	}

	n := min(len(resp), int(setup.Length), MaxControlDataSize)
	resp = resp[:n]
	d.logResponse(setup, resp)
	d.ctrl.stage = StageDataIn
	d.startTx(ep0, resp, n < int(setup.Length) && n%d.mps0 == 0)
	// The host may end the data stage early with the status OUT.
	d.regs.SetStatus(0, epr.Rx, epr.StatusValid)
}

// controlOut handles an OUT packet that is not a SETUP.
func (d *Driver) controlOut(data []byte) {
	switch d.ctrl.stage {
	case StageDataOut:
		if d.ctrl.received+len(data) > d.ctrl.length {
			d.controlStall(fmt.Errorf("data stage overflow (%d+%d > %d): %w",
				d.ctrl.received, len(data), d.ctrl.length, pkg.ErrProtocol))
			return
		}
		copy(d.ctrlBuf[d.ctrl.received:], data)
		d.ctrl.received += len(data)
		if d.ctrl.received == d.ctrl.length {
			if _, err := d.dispatch(&d.ctrl.setup, d.ctrlBuf[:d.ctrl.length]); err != nil {
				d.controlStall(err)
				return
			}
			d.controlStatusIn()
			return
		}
		if len(data) < d.mps0 {
			d.controlStall(fmt.Errorf("short packet after %d of %d bytes: %w",
				d.ctrl.received, d.ctrl.length, pkg.ErrProtocol))
			return
		}
		d.regs.SetStatus(0, epr.Rx, epr.StatusValid)

	case StageDataIn, StageStatusOut:
		if len(data) != 0 {
			d.controlStall(fmt.Errorf("%d-byte status packet: %w", len(data), pkg.ErrProtocol))
			return
		}
		d.endpoints[0].clearTx()
		d.controlDone()

	default:
		d.controlStall(fmt.Errorf("OUT packet in stage %s: %w", d.ctrl.stage, pkg.ErrProtocol))
	}
}

// controlIn handles completion of an IN packet.
func (d *Driver) controlIn() {
	ep0 := &d.endpoints[0]
	switch d.ctrl.stage {
	case StageDataIn:
		if d.sendNext(ep0) {
			return
		}
		ep0.clearTx()
		d.ctrl.stage = StageStatusOut

	case StageStatusIn:
		ep0.clearTx()
		d.applyPending()
		d.controlDone()

	default:
		pkg.LogDebug(pkg.ComponentControl, "stray IN completion", "stage", d.ctrl.stage)
	}
}

// controlStatusIn arms the zero-length IN status packet.
func (d *Driver) controlStatusIn() {
	d.ctrl.stage = StageStatusIn
	d.startTx(&d.endpoints[0], nil, true)
	d.regs.SetStatus(0, epr.Rx, epr.StatusNAK)
}

// applyPending performs work that must wait for the status stage. The
// device address takes effect only after the host has seen the status
// packet sent from the old address.
func (d *Driver) applyPending() {
	switch d.ctrl.action {
	case actionSetAddress:
		addr := d.ctrl.address
		d.store(hal.OffsetDADDR, hal.DaddrEF|uint16(addr)&hal.DaddrADD)
		d.address = addr
		if addr == 0 {
			d.setState(StateDefault)
		} else {
			d.setState(StateAddress)
		}
		pkg.LogInfo(pkg.ComponentControl, "address assigned", "address", addr)
	}
	d.ctrl.action = actionNone
}

// controlDone returns to Idle ready for the next SETUP.
func (d *Driver) controlDone() {
	d.ctrl.stage = StageIdle
	d.ctrl.action = actionNone
	d.regs.SetStatusBoth(0, epr.StatusNAK, epr.StatusValid)
}

// controlStall rejects the current transfer. Both directions stall until
// the next SETUP, which the peripheral accepts regardless.
func (d *Driver) controlStall(err error) {
	pkg.LogWarn(pkg.ComponentControl, "control transfer stalled",
		"stage", d.ctrl.stage,
		"request", d.ctrl.setup.String(),
		"error", err)
	var raw [SetupPacketSize]byte
	d.ctrl.setup.MarshalTo(raw[:])
	d.diag.Append(0, diag.OpStall, raw[:])

	d.endpoints[0].clearTx()
	d.ctrl = controlContext{}
	d.regs.SetStatusBoth(0, epr.StatusStall, epr.StatusStall)
}

// acceptsType rejects requests no handler exists for, before any data
// stage is accepted.
func (d *Driver) acceptsType(setup *SetupPacket) error {
	switch setup.Type() {
	case RequestTypeStandard:
		return nil
	case RequestTypeClass:
		if d.class == nil {
			return fmt.Errorf("class request 0x%02X: %w", setup.Request, pkg.ErrNotSupported)
		}
		return nil
	default:
		return fmt.Errorf("request type 0x%02X: %w", setup.Type(), pkg.ErrNotSupported)
	}
}

// dispatch routes a request to the standard handler or the class driver.
func (d *Driver) dispatch(setup *SetupPacket, data []byte) ([]byte, error) {
	if err := d.acceptsType(setup); err != nil {
		return nil, err
	}
	if setup.Type() == RequestTypeClass {
		return d.class.HandleSetup(setup, data)
	}
	return d.handleStandard(setup, data)
}

func (d *Driver) logSetup(raw []byte, setup *SetupPacket) {
	op := diag.OpSetup
	switch {
	case setup.IsClass():
		op = diag.OpClassRequest
	case !setup.IsStandard():
	case setup.Request == RequestGetDescriptor:
		op = diag.OpGetDescRx
	case setup.Request == RequestSetAddress:
		op = diag.OpSetAddressRx
	}
	d.diag.Append(0, op, raw)
}

func (d *Driver) logResponse(setup *SetupPacket, resp []byte) {
	if !setup.IsStandard() {
		return
	}
	switch setup.Request {
	case RequestGetDescriptor:
		d.diag.Append(0, diag.OpGetDescTx, resp)
	case RequestGetStatus:
		d.diag.Append(0, diag.OpGetStatusTx, resp)
	}
}
