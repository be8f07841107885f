package device

import (
	"fmt"

	"github.com/ardnew/pmausb/device/diag"
	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/device/pma"
	"github.com/ardnew/pmausb/pkg"
)

// maxCompletionsPerService bounds the CTR loop in Service.
const maxCompletionsPerService = 16

// Config configures a Driver.
type Config struct {
	// Layout is the peripheral memory map. The zero value selects
	// hal.DefaultLayout.
	Layout hal.Layout

	// Descriptors are served by GET_DESCRIPTOR. bMaxPacketSize0 of the
	// device descriptor sizes the control endpoint.
	Descriptors Descriptors

	// Endpoints lists the non-control endpoints enabled by
	// SET_CONFIGURATION.
	Endpoints []EndpointConfig

	// Class receives class requests and data endpoint events. May be nil.
	Class ClassDriver

	// Log records protocol events. If nil, the driver allocates one.
	Log *diag.Log

	// Critical masks the USB interrupt. If nil, hal.NoCritical is used.
	Critical hal.Critical
}

// Driver is the device-side USB driver for one peripheral instance.
//
// Service is the interrupt handler. Every other exported method may be
// called from the application; methods that touch the peripheral do so
// inside the Critical section.
type Driver struct {
	bus    hal.Bus
	layout hal.Layout
	crit   hal.Critical
	regs   *epr.Controller
	table  *pma.Table
	desc   Descriptors
	class  ClassDriver
	diag   *diag.Log
	mps0   int

	endpoints [hal.MaxEndpointRegisters]EndpointState
	rxCounts  [hal.MaxEndpointRegisters]pma.RxCount
	enabled   [hal.MaxEndpointRegisters]bool // Listed in Config.Endpoints

	ctrl      controlContext
	ctrlBuf   [MaxControlDataSize]byte
	statusBuf [2]byte

	state         State
	prevState     State
	address       uint8
	configuration uint8
	remoteWakeup  bool
	onStateChange func(old, new State)
}

// New creates a driver for the peripheral reachable through bus. It
// validates the configuration and plans packet memory but does not touch
// the hardware until Init.
func New(bus hal.Bus, cfg Config) (*Driver, error) {
	layout := cfg.Layout
	if layout.EPCount == 0 {
		layout = hal.DefaultLayout
	}
	if layout.EPCount > hal.MaxEndpointRegisters {
		return nil, fmt.Errorf("%d endpoints: %w", layout.EPCount, pkg.ErrInvalidParameter)
	}
	if err := cfg.Descriptors.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		bus:    bus,
		layout: layout,
		crit:   cfg.Critical,
		regs:   epr.NewController(bus, layout),
		table:  pma.NewTable(bus, layout, 0),
		desc:   cfg.Descriptors,
		class:  cfg.Class,
		diag:   cfg.Log,
		mps0:   int(cfg.Descriptors.MaxPacketSize0()),
		state:  StatePowered,
	}
	if d.crit == nil {
		d.crit = hal.NoCritical{}
	}
	if d.diag == nil {
		d.diag = diag.New()
	}
	switch d.mps0 {
	case 8, 16, 32, 64:
	default:
		return nil, fmt.Errorf("bMaxPacketSize0 %d: %w", d.mps0, pkg.ErrInvalidParameter)
	}

	d.endpoints[0] = EndpointState{Type: epr.TypeControl, TxMax: uint16(d.mps0), RxMax: uint16(d.mps0)}
	for i := range cfg.Endpoints {
		c := &cfg.Endpoints[i]
		if err := c.validate(layout.EPCount); err != nil {
			return nil, err
		}
		if d.enabled[c.Number] {
			return nil, fmt.Errorf("endpoint %d listed twice: %w", c.Number, pkg.ErrInvalidEndpoint)
		}
		d.enabled[c.Number] = true
		d.endpoints[c.Number] = EndpointState{Number: c.Number, Type: c.Type, TxMax: c.TxMax, RxMax: c.RxMax}
	}
	if err := d.planMemory(); err != nil {
		return nil, err
	}
	return d, nil
}

// planMemory assigns packet memory buffers after the buffer table.
func (d *Driver) planMemory() error {
	var sizes [hal.MaxEndpointRegisters]struct{ tx, rx int }
	total := int(d.table.Size())
	for i := uint8(0); i < d.layout.EPCount; i++ {
		ep := &d.endpoints[i]
		if ep.TxMax > 0 {
			sizes[i].tx = (int(ep.TxMax) + 1) &^ 1
		}
		if ep.RxMax > 0 {
			rx, err := pma.RoundRxSize(int(ep.RxMax))
			if err != nil {
				return fmt.Errorf("endpoint %d: %w", i, err)
			}
			if d.rxCounts[i], err = pma.EncodeRxCount(rx); err != nil {
				return fmt.Errorf("endpoint %d: %w", i, err)
			}
			sizes[i].rx = rx
		}
		total += sizes[i].tx + sizes[i].rx
	}
	if total > int(d.layout.PMASize) {
		return fmt.Errorf("buffers need %d of %d bytes of packet memory: %w",
			total, d.layout.PMASize, pkg.ErrBufferTooSmall)
	}

	alloc := pma.NewAllocator(d.table.Size(), d.layout.PMASize)
	for i := uint8(0); i < d.layout.EPCount; i++ {
		ep := &d.endpoints[i]
		if sizes[i].tx > 0 {
			ep.txAddr = alloc.Alloc(sizes[i].tx)
		}
		if sizes[i].rx > 0 {
			ep.rxAddr = alloc.Alloc(sizes[i].rx)
		}
	}
	pkg.LogDebug(pkg.ComponentPMA, "packet memory planned",
		"used", total, "free", alloc.Free())
	return nil
}

// Init powers up the peripheral, enables its interrupts and performs the
// reset sequence.
func (d *Driver) Init() {
	s := d.crit.Disable()
	defer d.crit.Restore(s)

	d.store(hal.OffsetCNTR, hal.CntrFRES)
	d.store(hal.OffsetCNTR, 0)
	d.store(hal.OffsetISTR, 0)
	d.store(hal.OffsetCNTR, hal.CntrCTRM|hal.CntrRESETM|hal.CntrSUSPM|hal.CntrWKUPM)
	d.reset()
	pkg.LogInfo(pkg.ComponentDriver, "initialized",
		"endpoints", d.layout.EPCount, "maxPacketSize0", d.mps0)
}

// Reset returns the driver to the Default state as after a bus reset.
func (d *Driver) Reset() {
	s := d.crit.Disable()
	defer d.crit.Restore(s)
	d.reset()
}

func (d *Driver) reset() {
	// Buffer table entries are rewritten only while nothing is armed.
	d.regs.SetStatusBoth(0, epr.StatusNAK, epr.StatusNAK)
	d.disableEndpoints()
	d.store(hal.OffsetBTABLE, d.table.Base())

	for i := uint8(0); i < d.layout.EPCount; i++ {
		ep := &d.endpoints[i]
		ep.clearTx()
		ep.rx = nil
		d.table.Configure(i, ep.txAddr, 0, ep.rxAddr, d.rxCounts[i])
	}

	d.regs.SetType(0, epr.TypeControl)
	d.regs.SetKind(0, false)
	d.regs.SetAddress(0, 0)
	d.regs.ClearComplete(0, epr.Rx)
	d.regs.ClearComplete(0, epr.Tx)
	d.regs.SetStatusBoth(0, epr.StatusNAK, epr.StatusValid)

	d.store(hal.OffsetDADDR, hal.DaddrEF)
	d.ctrl = controlContext{}
	d.address = 0
	d.configuration = 0
	d.remoteWakeup = false
	d.setState(StateDefault)
	d.notifyClass(0)
	d.diag.Append(0, diag.OpReset, nil)
	pkg.LogInfo(pkg.ComponentDriver, "bus reset")
}

// enableEndpoints programs every configured endpoint register with both
// directions NAKing and data toggles at DATA0.
func (d *Driver) enableEndpoints() {
	for i := uint8(1); i < d.layout.EPCount; i++ {
		if !d.enabled[i] {
			continue
		}
		ep := &d.endpoints[i]
		ep.clearTx()
		d.regs.SetType(i, ep.Type)
		d.regs.SetKind(i, false)
		d.regs.SetAddress(i, i)
		d.regs.ResetDataToggle(i, epr.Tx)
		d.regs.ResetDataToggle(i, epr.Rx)
		d.regs.SetStatusBoth(i, directionStatus(ep.TxMax), directionStatus(ep.RxMax))
	}
}

func directionStatus(size uint16) epr.Status {
	if size == 0 {
		return epr.StatusDisabled
	}
	return epr.StatusNAK
}

// disableEndpoints disables every register other than endpoint 0 and
// discards pending completions.
func (d *Driver) disableEndpoints() {
	for i := uint8(1); i < d.layout.EPCount; i++ {
		d.endpoints[i].clearTx()
		d.regs.ClearComplete(i, epr.Rx)
		d.regs.ClearComplete(i, epr.Tx)
		d.regs.SetStatusBoth(i, epr.StatusDisabled, epr.StatusDisabled)
	}
}

// Service is the USB interrupt handler.
func (d *Driver) Service() {
	s := d.crit.Disable()
	defer d.crit.Restore(s)

	istr := d.load(hal.OffsetISTR)
	if istr&hal.IstrRESET != 0 {
		d.clearInterrupt(hal.IstrRESET)
		d.reset()
	}
	if istr&hal.IstrSUSP != 0 {
		d.clearInterrupt(hal.IstrSUSP)
		d.suspend()
	}
	if istr&hal.IstrWKUP != 0 {
		d.clearInterrupt(hal.IstrWKUP)
		d.resume()
	}

	for i := 0; i < maxCompletionsPerService; i++ {
		istr = d.load(hal.OffsetISTR)
		if istr&hal.IstrCTR == 0 {
			break
		}
		ep := uint8(istr & hal.IstrEPID)
		if ep == 0 {
			d.serviceControl()
		} else {
			d.serviceData(ep)
		}
	}

	if other := istr & (hal.IstrSOF | hal.IstrESOF | hal.IstrERR | hal.IstrPMAOVR); other != 0 {
		d.clearInterrupt(other)
	}
}

// serviceData handles a completion on a non-control endpoint.
func (d *Driver) serviceData(num uint8) {
	if num >= d.layout.EPCount {
		pkg.LogError(pkg.ComponentEndpoint, "completion on unknown endpoint", "endpoint", num)
		d.regs.ClearComplete(num, epr.Rx)
		d.regs.ClearComplete(num, epr.Tx)
		return
	}
	ep := &d.endpoints[num]
	reg := d.regs.Read(num)

	if epr.IsComplete(reg, epr.Rx) {
		n := min(d.table.RxCount(num).Received(), len(ep.rxBuf))
		ep.rx = ep.rxBuf[:n]
		d.table.Read(ep.rxAddr, ep.rx)
		d.regs.ClearComplete(num, epr.Rx)
		d.diag.Append(num, diag.OpDataRx, ep.rx)
		pkg.LogTrace(pkg.ComponentEndpoint, "OUT complete", "endpoint", num, "len", n)
		if d.class != nil {
			d.class.RxComplete(num, ep.rx)
		}
	}

	if epr.IsComplete(reg, epr.Tx) {
		d.regs.ClearComplete(num, epr.Tx)
		if !ep.txBusy || d.sendNext(ep) {
			return
		}
		ep.clearTx()
		pkg.LogTrace(pkg.ComponentEndpoint, "IN complete", "endpoint", num)
		if d.class != nil {
			d.class.TxComplete(num)
		}
	}
}

// dataEndpoint returns the state of a configured non-control endpoint.
func (d *Driver) dataEndpoint(num uint8) (*EndpointState, error) {
	if num == 0 || num >= d.layout.EPCount || !d.enabled[num] {
		return nil, fmt.Errorf("endpoint %d: %w", num, pkg.ErrInvalidEndpoint)
	}
	if d.state != StateConfigured {
		return nil, fmt.Errorf("endpoint %d: %w", num, pkg.ErrNotConfigured)
	}
	return &d.endpoints[num], nil
}

// Transmit starts an IN transfer of data on endpoint num. The data is sent
// in max-packet-size chunks and a full-sized final packet is followed by a
// zero-length packet; empty data sends a single zero-length packet. data
// must not be modified until the class driver's TxComplete.
func (d *Driver) Transmit(num uint8, data []byte) error {
	s := d.crit.Disable()
	defer d.crit.Restore(s)

	ep, err := d.dataEndpoint(num)
	if err != nil {
		return err
	}
	if ep.TxMax == 0 {
		return fmt.Errorf("endpoint %d has no IN direction: %w", num, pkg.ErrInvalidEndpoint)
	}
	if ep.txBusy {
		return fmt.Errorf("endpoint %d: %w", num, pkg.ErrBusy)
	}
	if d.regs.Status(num, epr.Tx) == epr.StatusStall {
		return fmt.Errorf("endpoint %d: %w", num, pkg.ErrStall)
	}
	d.diag.Append(num, diag.OpDataTx, data)
	d.startTx(ep, data, len(data)%int(ep.TxMax) == 0)
	return nil
}

// ArmReceive makes the OUT side of endpoint num ready for the next packet.
func (d *Driver) ArmReceive(num uint8) error {
	s := d.crit.Disable()
	defer d.crit.Restore(s)

	ep, err := d.dataEndpoint(num)
	if err != nil {
		return err
	}
	if ep.RxMax == 0 {
		return fmt.Errorf("endpoint %d has no OUT direction: %w", num, pkg.ErrInvalidEndpoint)
	}
	if d.regs.Status(num, epr.Rx) == epr.StatusStall {
		return fmt.Errorf("endpoint %d: %w", num, pkg.ErrStall)
	}
	d.regs.SetStatus(num, epr.Rx, epr.StatusValid)
	return nil
}

// Stall halts one direction of endpoint num. Stalling endpoint 0 rejects
// the control transfer in progress.
func (d *Driver) Stall(num uint8, dir epr.Direction) error {
	s := d.crit.Disable()
	defer d.crit.Restore(s)

	if num == 0 {
		d.controlStall(fmt.Errorf("stalled by application: %w", pkg.ErrStall))
		return nil
	}
	if _, err := d.dataEndpoint(num); err != nil {
		return err
	}
	d.halt(num, dir)
	return nil
}

// halt sets the endpoint halt feature. An IN transfer in flight is dropped
// and reported to the class driver if it implements TxAborter.
func (d *Driver) halt(num uint8, dir epr.Direction) {
	aborted := false
	if dir == epr.Tx {
		aborted = d.endpoints[num].txBusy
		d.endpoints[num].clearTx()
	}
	d.regs.SetStatus(num, dir, epr.StatusStall)
	pkg.LogDebug(pkg.ComponentEndpoint, "halted", "endpoint", num, "dir", dir)

	if !aborted {
		return
	}
	if a, ok := d.class.(TxAborter); ok {
		a.TxAborted(num)
	}
}

// clearHalt clears the endpoint halt feature and resets the data toggle.
// The OUT side is re-armed; the IN side NAKs until the next Transmit.
func (d *Driver) clearHalt(num uint8, dir epr.Direction) {
	d.regs.ResetDataToggle(num, dir)
	if d.regs.Status(num, dir) != epr.StatusStall {
		return
	}
	if dir == epr.Rx {
		d.regs.SetStatus(num, dir, epr.StatusValid)
	} else {
		d.regs.SetStatus(num, dir, epr.StatusNAK)
	}
	pkg.LogDebug(pkg.ComponentEndpoint, "halt cleared", "endpoint", num, "dir", dir)
}

// Busy reports whether an IN transfer is in flight on endpoint num.
func (d *Driver) Busy(num uint8) bool {
	s := d.crit.Disable()
	defer d.crit.Restore(s)
	return num < d.layout.EPCount && d.endpoints[num].txBusy
}

// ControlStage returns the control endpoint's transfer stage.
func (d *Driver) ControlStage() ControlStage {
	return d.ctrl.stage
}

// Diag returns the diagnostic log.
func (d *Driver) Diag() *diag.Log {
	return d.diag
}

// Layout returns the peripheral memory map in use.
func (d *Driver) Layout() hal.Layout {
	return d.layout
}

// FrameNumber returns the frame number of the last start of frame.
func (d *Driver) FrameNumber() uint16 {
	return d.load(hal.OffsetFNR) & 0x07FF
}

func (d *Driver) load(offset uintptr) uint16 {
	return d.bus.Load16(d.layout.Register(offset))
}

func (d *Driver) store(offset uintptr, v uint16) {
	d.bus.Store16(d.layout.Register(offset), v)
}

// clearInterrupt clears ISTR event flags. Writing 1 leaves the others
// untouched.
func (d *Driver) clearInterrupt(flags uint16) {
	d.store(hal.OffsetISTR, ^flags)
}
