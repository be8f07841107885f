package sim

import (
	"fmt"
	"sync"

	"github.com/ardnew/pmausb/device/epr"
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/device/pma"
	"github.com/ardnew/pmausb/pkg"
)

// Handshake is the peripheral's answer to a token.
type Handshake uint8

// Handshakes. HandshakeNone means the peripheral ignored the token and the
// host would time out.
const (
	HandshakeNone Handshake = iota
	HandshakeACK
	HandshakeNAK
	HandshakeStall
)

// String returns the handshake name.
func (h Handshake) String() string {
	switch h {
	case HandshakeACK:
		return "ACK"
	case HandshakeNAK:
		return "NAK"
	case HandshakeStall:
		return "STALL"
	default:
		return "none"
	}
}

// eprToggle and eprComplete group the endpoint register fields by how a
// store changes them.
const (
	eprComplete = epr.CtrRx | epr.CtrTx
	eprToggle   = epr.DtogRx | epr.StatRx | epr.DtogTx | epr.StatTx
	eprWritable = epr.Type | epr.Kind | epr.EA
)

// Peripheral is the simulated register block and packet memory.
type Peripheral struct {
	layout hal.Layout

	mu     sync.Mutex
	epr    [hal.MaxEndpointRegisters]uint16
	cntr   uint16
	istr   uint16 // Event flags other than CTR
	fnr    uint16
	daddr  uint16
	btable uint16
	pma    []uint16 // One entry per 16-bit word

	depth int // Critical section nesting
}

// NewPeripheral creates a peripheral in its power-on state: powered down,
// held in reset, all endpoints disabled.
func NewPeripheral(layout hal.Layout) *Peripheral {
	return &Peripheral{
		layout: layout,
		cntr:   hal.CntrPDWN | hal.CntrFRES,
		pma:    make([]uint16, layout.PMASize/2),
	}
}

// Layout returns the memory map the peripheral decodes.
func (p *Peripheral) Layout() hal.Layout {
	return p.layout
}

// Load16 implements hal.Bus.
func (p *Peripheral) Load16(addr uintptr) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if off, ok := p.registerOffset(addr); ok {
		return p.loadRegister(off)
	}
	return p.pma[p.pmaIndex(addr)]
}

// Store16 implements hal.Bus.
func (p *Peripheral) Store16(addr uintptr, v uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if off, ok := p.registerOffset(addr); ok {
		p.storeRegister(off, v)
		return
	}
	p.pma[p.pmaIndex(addr)] = v
}

// Disable implements hal.Critical. The simulation has a single execution
// context, so sections only track nesting.
func (p *Peripheral) Disable() uintptr {
	p.depth++
	return uintptr(p.depth - 1)
}

// Restore implements hal.Critical.
func (p *Peripheral) Restore(state uintptr) {
	if p.depth == 0 || uintptr(p.depth-1) != state {
		panic(fmt.Sprintf("sim: unbalanced critical section restore (%d at depth %d)", state, p.depth))
	}
	p.depth--
}

func (p *Peripheral) registerOffset(addr uintptr) (uintptr, bool) {
	if addr < p.layout.RegisterBase || addr > p.layout.Register(hal.OffsetBTABLE) {
		return 0, false
	}
	off := addr - p.layout.RegisterBase
	if off&3 != 0 {
		panic(fmt.Sprintf("sim: misaligned register access at %#x", addr))
	}
	return off, true
}

func (p *Peripheral) pmaIndex(addr uintptr) int {
	end := p.layout.PMA(p.layout.PMASize)
	if addr < p.layout.PMABase || addr >= end || (addr-p.layout.PMABase)&3 != 0 {
		panic(fmt.Sprintf("sim: unmapped access at %#x", addr))
	}
	return int(addr-p.layout.PMABase) / 4
}

func (p *Peripheral) loadRegister(off uintptr) uint16 {
	switch {
	case off < hal.OffsetCNTR:
		return p.epr[off/hal.EPRStride]
	case off == hal.OffsetCNTR:
		return p.cntr
	case off == hal.OffsetISTR:
		return p.istrValue()
	case off == hal.OffsetFNR:
		return p.fnr
	case off == hal.OffsetDADDR:
		return p.daddr
	case off == hal.OffsetBTABLE:
		return p.btable
	}
	return 0
}

func (p *Peripheral) storeRegister(off uintptr, v uint16) {
	switch {
	case off < hal.OffsetCNTR:
		i := off / hal.EPRStride
		p.epr[i] = storeEPR(p.epr[i], v)
	case off == hal.OffsetCNTR:
		p.cntr = v
	case off == hal.OffsetISTR:
		p.istr &= v | ^uint16(hal.IstrFlags)
	case off == hal.OffsetDADDR:
		p.daddr = v & (hal.DaddrEF | hal.DaddrADD)
	case off == hal.OffsetBTABLE:
		p.btable = v &^ 7
	}
}

// storeEPR returns the register value after v is written over old.
func storeEPR(old, v uint16) uint16 {
	next := old & v & eprComplete
	next |= (old ^ v) & eprToggle
	next |= old & epr.Setup
	next |= v & eprWritable
	return next
}

// istrValue derives CTR, DIR and EP_ID from the lowest-numbered endpoint
// with a pending completion, receive completions first.
func (p *Peripheral) istrValue() uint16 {
	v := p.istr &^ (hal.IstrCTR | hal.IstrDIR | hal.IstrEPID)
	for i := 0; i < hal.MaxEndpointRegisters; i++ {
		reg := p.epr[i]
		if reg&eprComplete == 0 {
			continue
		}
		v |= hal.IstrCTR | uint16(i)
		if reg&epr.CtrRx != 0 {
			v |= hal.IstrDIR
		}
		break
	}
	return v
}

// Pending reports whether an enabled interrupt is waiting to be serviced.
func (p *Peripheral) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.istrValue()&p.cntr&0xFF00 != 0
}

// BusReset models a USB reset signalled by the host: the device address and
// all endpoint registers clear and ISTR.RESET is raised.
func (p *Peripheral) BusReset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.daddr = 0
	for i := range p.epr {
		p.epr[i] = 0
	}
	p.istr |= hal.IstrRESET
	pkg.LogDebug(pkg.ComponentSim, "bus reset")
}

// Suspend raises ISTR.SUSP as after 3 ms of bus idle.
func (p *Peripheral) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.istr |= hal.IstrSUSP
}

// Wakeup raises ISTR.WKUP as on resume signalling.
func (p *Peripheral) Wakeup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.istr |= hal.IstrWKUP
}

// StartOfFrame advances the frame number and raises ISTR.SOF.
func (p *Peripheral) StartOfFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fnr = (p.fnr + 1) & 0x07FF
	p.istr |= hal.IstrSOF
}

// Address returns the enabled device address, or false when the function
// is disabled.
func (p *Peripheral) Address() (uint8, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return uint8(p.daddr & hal.DaddrADD), p.daddr&hal.DaddrEF != 0
}

// Register returns endpoint register ep without side effects.
func (p *Peripheral) Register(ep uint8) uint16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epr[ep]
}

// Setup delivers an 8-byte SETUP transaction to endpoint ep of the device
// at addr. SETUP is accepted whatever the receive status, unless the
// endpoint is disabled.
func (p *Peripheral) Setup(addr, ep uint8, pkt [8]byte) Handshake {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.match(addr, ep, epr.Rx)
	if !ok {
		return HandshakeNone
	}
	if !p.receive(i, pkt[:]) {
		return HandshakeNone
	}
	reg := p.epr[i]
	reg |= epr.CtrRx | epr.Setup | epr.DtogRx | epr.DtogTx
	reg = reg&^(epr.StatRx|epr.StatTx) | uint16(epr.StatusNAK)<<12 | uint16(epr.StatusNAK)<<4
	p.epr[i] = reg
	pkg.LogTrace(pkg.ComponentSim, "SETUP", "addr", addr, "endpoint", ep, "data", pkt[:])
	return HandshakeACK
}

// Out delivers an OUT data transaction to endpoint ep of the device at
// addr.
func (p *Peripheral) Out(addr, ep uint8, data []byte) Handshake {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.match(addr, ep, epr.Rx)
	if !ok {
		return HandshakeNone
	}
	switch epr.StatusOf(p.epr[i], epr.Rx) {
	case epr.StatusStall:
		return HandshakeStall
	case epr.StatusNAK:
		return HandshakeNAK
	}
	if !p.receive(i, data) {
		return HandshakeNone
	}
	reg := p.epr[i]&^epr.Setup | epr.CtrRx
	reg ^= epr.DtogRx
	reg = reg&^epr.StatRx | uint16(epr.StatusNAK)<<12
	p.epr[i] = reg
	pkg.LogTrace(pkg.ComponentSim, "OUT", "addr", addr, "endpoint", ep, "len", len(data))
	return HandshakeACK
}

// In issues an IN token to endpoint ep of the device at addr and returns
// the data packet the device sent.
func (p *Peripheral) In(addr, ep uint8) ([]byte, Handshake) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i, ok := p.match(addr, ep, epr.Tx)
	if !ok {
		return nil, HandshakeNone
	}
	switch epr.StatusOf(p.epr[i], epr.Tx) {
	case epr.StatusStall:
		return nil, HandshakeStall
	case epr.StatusNAK:
		return nil, HandshakeNAK
	}
	entry := p.entry(uint8(i))
	n := int(p.pma[entry/2+1] & 0x03FF)
	data := p.readPMA(p.pma[entry/2], n)
	reg := p.epr[i] | epr.CtrTx
	reg ^= epr.DtogTx
	reg = reg&^epr.StatTx | uint16(epr.StatusNAK)<<4
	p.epr[i] = reg
	pkg.LogTrace(pkg.ComponentSim, "IN", "addr", addr, "endpoint", ep, "len", n)
	return data, HandshakeACK
}

// match finds the register serving endpoint number ep in direction dir for
// the device at addr.
func (p *Peripheral) match(addr, ep uint8, dir epr.Direction) (int, bool) {
	if p.daddr&hal.DaddrEF == 0 || uint8(p.daddr&hal.DaddrADD) != addr {
		return 0, false
	}
	for i := 0; i < int(p.layout.EPCount); i++ {
		reg := p.epr[i]
		if epr.AddressOf(reg) == ep && epr.StatusOf(reg, dir) != epr.StatusDisabled {
			return i, true
		}
	}
	return 0, false
}

// entry returns the PMA byte offset of the buffer table entry for
// register i.
func (p *Peripheral) entry(i uint8) uint16 {
	return p.btable + uint16(i)*pma.EntrySize
}

// receive stores data in the receive buffer of register i and records the
// byte count. It reports false if the data does not fit.
func (p *Peripheral) receive(i int, data []byte) bool {
	entry := p.entry(uint8(i))
	addr := p.pma[entry/2+2]
	count := pma.RxCount(p.pma[entry/2+3])
	if len(data) > count.Capacity() || int(addr)+len(data) > int(p.layout.PMASize) {
		pkg.LogWarn(pkg.ComponentSim, "receive buffer overrun",
			"endpoint", i, "len", len(data), "capacity", count.Capacity())
		return false
	}
	for j := 0; j < len(data); j += 2 {
		w := uint16(data[j])
		if j+1 < len(data) {
			w |= uint16(data[j+1]) << 8
		}
		p.pma[(int(addr)+j)/2] = w
	}
	p.pma[entry/2+3] = uint16(count.WithReceived(len(data)))
	return true
}

func (p *Peripheral) readPMA(addr uint16, n int) []byte {
	if int(addr)+n > int(p.layout.PMASize) {
		n = int(p.layout.PMASize) - int(addr)
	}
	data := make([]byte, n)
	for j := 0; j < n; j++ {
		w := p.pma[(int(addr)+j)/2]
		if j&1 == 0 {
			data[j] = byte(w)
		} else {
			data[j] = byte(w >> 8)
		}
	}
	return data
}
