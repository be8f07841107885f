package cdc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ardnew/pmausb/device"
	"github.com/ardnew/pmausb/pkg"
)

// MaxTxBufferSize is the largest single Write.
const MaxTxBufferSize = 1024

// ACM implements a CDC-ACM (Abstract Control Model) class driver: a virtual
// serial port on the data endpoint pair with serial state notifications on
// the interrupt endpoint.
//
// Callbacks run from the driver's Service and must not block. They may call
// Write and SendSerialState.
type ACM struct {
	drv *device.Driver

	// Configuration
	lineCoding   LineCoding
	controlState uint16
	serialState  uint16

	// Callbacks
	onReceive            func(data []byte)
	onLineCodingChange   func(LineCoding)
	onControlStateChange func(dtr, rts bool)
	onBreak              func(millis uint16)
	onTxComplete         func()

	// Buffers (zero-allocation)
	txBuf       [MaxTxBufferSize]byte
	notifyBuf   [SerialStateSize]byte
	responseBuf [LineCodingSize]byte

	// State
	mutex      sync.RWMutex
	configured bool
	txBusy     bool
	notifyBusy bool
	rxDropped  int
	breakCount int
}

// NewACM creates a CDC-ACM class driver with the default line coding.
func NewACM() *ACM {
	return &ACM{
		lineCoding: DefaultLineCoding,
	}
}

// DeviceConfig returns a driver configuration serving the ACM descriptors
// for id with a as the class driver.
func (a *ACM) DeviceConfig(id Identity) device.Config {
	return device.Config{
		Descriptors: Descriptors(id),
		Endpoints:   Endpoints(),
		Class:       a,
	}
}

// SetOnReceive sets the callback for data received on the bulk OUT
// endpoint. data is only valid during the call. The endpoint is re-armed
// when the callback returns.
func (a *ACM) SetOnReceive(cb func(data []byte)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onReceive = cb
}

// SetOnLineCodingChange sets the callback for line coding changes.
func (a *ACM) SetOnLineCodingChange(cb func(LineCoding)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onLineCodingChange = cb
}

// SetOnControlStateChange sets the callback for control line state changes.
func (a *ACM) SetOnControlStateChange(cb func(dtr, rts bool)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onControlStateChange = cb
}

// SetOnBreak sets the callback for break signaling.
func (a *ACM) SetOnBreak(cb func(millis uint16)) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onBreak = cb
}

// SetOnTxComplete sets the callback invoked when a Write has been sent.
func (a *ACM) SetOnTxComplete(cb func()) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.onTxComplete = cb
}

// LineCoding returns the current line coding configuration.
func (a *ACM) LineCoding() LineCoding {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.lineCoding
}

// DTR returns the current DTR (Data Terminal Ready) state.
func (a *ACM) DTR() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.controlState&ControlLineDTR != 0
}

// RTS returns the current RTS (Request To Send) state.
func (a *ACM) RTS() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.controlState&ControlLineRTS != 0
}

// SerialState returns the last state sent with SendSerialState.
func (a *ACM) SerialState() uint16 {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.serialState
}

// IsConfigured reports whether the host has selected the configuration.
func (a *ACM) IsConfigured() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.configured
}

// Busy reports whether a Write is still being sent.
func (a *ACM) Busy() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.txBusy
}

// HandleSetup implements device.ClassDriver.
func (a *ACM) HandleSetup(setup *device.SetupPacket, data []byte) ([]byte, error) {
	if !setup.IsClass() || setup.Recipient() != device.RequestRecipientInterface {
		return nil, fmt.Errorf("request 0x%02X: %w", setup.Request, pkg.ErrNotSupported)
	}
	if setup.InterfaceNumber() != ControlInterface {
		return nil, fmt.Errorf("class request to interface %d: %w",
			setup.InterfaceNumber(), pkg.ErrInvalidRequest)
	}

	switch setup.Request {
	case RequestSetLineCoding:
		return nil, a.handleSetLineCoding(data)

	case RequestGetLineCoding:
		return a.handleGetLineCoding(), nil

	case RequestSetControlLineState:
		a.handleSetControlLineState(setup.Value)
		return nil, nil

	case RequestSendBreak:
		a.handleSendBreak(setup.Value)
		return nil, nil

	default:
		return nil, fmt.Errorf("class request 0x%02X: %w", setup.Request, pkg.ErrNotSupported)
	}
}

func (a *ACM) handleSetLineCoding(data []byte) error {
	var lc LineCoding
	if err := ParseLineCoding(data, &lc); err != nil {
		return err
	}

	a.mutex.Lock()
	a.lineCoding = lc
	cb := a.onLineCodingChange
	a.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentCDC, "line coding set",
		"baud", lc.DTERate,
		"dataBits", lc.DataBits,
		"parity", lc.ParityType,
		"stopBits", lc.CharFormat)

	if cb != nil {
		cb(lc)
	}
	return nil
}

func (a *ACM) handleGetLineCoding() []byte {
	a.mutex.RLock()
	n := a.lineCoding.MarshalTo(a.responseBuf[:])
	a.mutex.RUnlock()
	return a.responseBuf[:n]
}

func (a *ACM) handleSetControlLineState(value uint16) {
	a.mutex.Lock()
	a.controlState = value
	cb := a.onControlStateChange
	dtr := value&ControlLineDTR != 0
	rts := value&ControlLineRTS != 0
	a.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentCDC, "control line state set",
		"dtr", dtr,
		"rts", rts)

	if cb != nil {
		cb(dtr, rts)
	}
}

func (a *ACM) handleSendBreak(millis uint16) {
	a.mutex.Lock()
	a.breakCount++
	cb := a.onBreak
	a.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentCDC, "break signaled",
		"duration_ms", millis)

	if cb != nil {
		cb(millis)
	}
}

// Configure implements device.ClassDriver. Selecting the configuration
// arms the data OUT endpoint; the IN endpoints NAK until there is data.
func (a *ACM) Configure(d *device.Driver, value uint8) error {
	a.mutex.Lock()
	a.drv = d
	a.configured = value != 0
	a.txBusy = false
	a.notifyBusy = false
	if value == 0 {
		a.controlState = 0
	}
	a.mutex.Unlock()

	if value == 0 {
		return nil
	}
	pkg.LogInfo(pkg.ComponentCDC, "configured", "value", value)
	return d.ArmReceive(DataEndpoint)
}

// RxComplete implements device.ClassDriver.
func (a *ACM) RxComplete(ep uint8, data []byte) {
	if ep != DataEndpoint {
		return
	}
	a.mutex.RLock()
	cb := a.onReceive
	drv := a.drv
	a.mutex.RUnlock()

	if cb != nil {
		cb(data)
	} else {
		a.mutex.Lock()
		a.rxDropped += len(data)
		a.mutex.Unlock()
	}
	if drv == nil {
		return
	}
	if err := drv.ArmReceive(DataEndpoint); err != nil {
		pkg.LogWarn(pkg.ComponentCDC, "re-arm failed", "error", err)
	}
}

// TxComplete implements device.ClassDriver.
func (a *ACM) TxComplete(ep uint8) {
	a.mutex.Lock()
	var cb func()
	switch ep {
	case DataEndpoint:
		a.txBusy = false
		cb = a.onTxComplete
	case NotifyEndpoint:
		a.notifyBusy = false
	}
	a.mutex.Unlock()

	if cb != nil {
		cb()
	}
}

// TxAborted implements device.TxAborter. A halted IN endpoint drops the
// pending Write or notification, so the next one may start.
func (a *ACM) TxAborted(ep uint8) {
	a.mutex.Lock()
	switch ep {
	case DataEndpoint:
		a.txBusy = false
	case NotifyEndpoint:
		a.notifyBusy = false
	}
	a.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentCDC, "transfer aborted", "endpoint", ep)
}

// Write queues data for the bulk IN endpoint and returns immediately. The
// transfer is split into packets by the driver. It returns pkg.ErrBusy while
// the previous Write is in flight and pkg.ErrBufferTooSmall when data is
// longer than MaxTxBufferSize.
func (a *ACM) Write(data []byte) (int, error) {
	if len(data) > MaxTxBufferSize {
		return 0, fmt.Errorf("write of %d bytes: %w", len(data), pkg.ErrBufferTooSmall)
	}

	a.mutex.Lock()
	if !a.configured || a.drv == nil {
		a.mutex.Unlock()
		return 0, pkg.ErrNotConfigured
	}
	if a.txBusy {
		a.mutex.Unlock()
		return 0, pkg.ErrBusy
	}
	n := copy(a.txBuf[:], data)
	a.txBusy = true
	drv := a.drv
	a.mutex.Unlock()

	if err := drv.Transmit(DataEndpoint, a.txBuf[:n]); err != nil {
		a.mutex.Lock()
		a.txBusy = false
		a.mutex.Unlock()
		return 0, err
	}
	return n, nil
}

// SendSerialState sends a SERIAL_STATE notification to the host.
func (a *ACM) SendSerialState(state uint16) error {
	a.mutex.Lock()
	if !a.configured || a.drv == nil {
		a.mutex.Unlock()
		return pkg.ErrNotConfigured
	}
	if a.notifyBusy {
		a.mutex.Unlock()
		return pkg.ErrBusy
	}
	a.serialState = state
	a.notifyBusy = true
	drv := a.drv

	// bmRequestType: device-to-host, class, interface
	buf := a.notifyBuf[:]
	buf[0] = device.RequestDirectionDeviceToHost | device.RequestTypeClass |
		device.RequestRecipientInterface
	buf[1] = NotificationSerialState
	binary.LittleEndian.PutUint16(buf[2:4], 0)
	binary.LittleEndian.PutUint16(buf[4:6], ControlInterface)
	binary.LittleEndian.PutUint16(buf[6:8], 2)
	binary.LittleEndian.PutUint16(buf[8:10], state)
	a.mutex.Unlock()

	if err := drv.Transmit(NotifyEndpoint, buf); err != nil {
		a.mutex.Lock()
		a.notifyBusy = false
		a.mutex.Unlock()
		return err
	}
	return nil
}

// Stats returns the number of received bytes discarded because no receive
// callback was set and the number of breaks signaled by the host.
func (a *ACM) Stats() (rxDropped, breaks int) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.rxDropped, a.breakCount
}

var (
	_ device.ClassDriver = (*ACM)(nil)
	_ device.TxAborter   = (*ACM)(nil)
)
