package pma

import (
	"fmt"

	"github.com/ardnew/pmausb/device/hal"
)

// EntrySize is the size in bytes of one buffer table entry.
const EntrySize = 8

// Entry field offsets within a buffer table entry.
const (
	entryTxAddr  = 0
	entryTxCount = 2
	entryRxAddr  = 4
	entryRxCount = 6
)

// Entry is one endpoint's buffer descriptor.
type Entry struct {
	TxAddr  uint16  // Transmit buffer offset
	TxCount uint16  // Bytes to transmit
	RxAddr  uint16  // Receive buffer offset
	RxCount RxCount // Receive capacity and received count
}

// Table reads and writes the buffer descriptor table and endpoint buffers.
type Table struct {
	bus    hal.Bus
	layout hal.Layout
	base   uint16 // BTABLE offset
}

// NewTable creates a table accessor with the descriptor table at PMA
// offset btable. btable must be 8-byte aligned.
func NewTable(bus hal.Bus, layout hal.Layout, btable uint16) *Table {
	if btable&7 != 0 {
		panic(fmt.Sprintf("pma: buffer table offset %#x not 8-byte aligned", btable))
	}
	return &Table{bus: bus, layout: layout, base: btable}
}

// Base returns the PMA offset of the descriptor table.
func (t *Table) Base() uint16 {
	return t.base
}

// Size returns the number of bytes the table occupies.
func (t *Table) Size() uint16 {
	return uint16(t.layout.EPCount) * EntrySize
}

func (t *Table) entry(ep uint8, field uint16) uint16 {
	if ep >= t.layout.EPCount {
		panic(fmt.Sprintf("pma: endpoint %d out of range (%d endpoints)", ep, t.layout.EPCount))
	}
	return t.base + uint16(ep)*EntrySize + field
}

func (t *Table) checkBuffer(addr uint16, n int) {
	if addr&1 != 0 || int(addr)+n > int(t.layout.PMASize) {
		panic(fmt.Sprintf("pma: buffer %#x+%d outside packet memory (%d bytes)", addr, n, t.layout.PMASize))
	}
}

func (t *Table) load(off uint16) uint16 {
	return t.bus.Load16(t.layout.PMA(off))
}

func (t *Table) store(off uint16, v uint16) {
	t.bus.Store16(t.layout.PMA(off), v)
}

// Configure writes the complete entry for ep. Out-of-range endpoints and
// buffers outside packet memory are programming errors and panic.
func (t *Table) Configure(ep uint8, txAddr, txCount, rxAddr uint16, rxCount RxCount) {
	t.checkBuffer(txAddr, 0)
	t.checkBuffer(rxAddr, rxCount.Capacity())
	t.store(t.entry(ep, entryTxAddr), txAddr)
	t.store(t.entry(ep, entryTxCount), txCount)
	t.store(t.entry(ep, entryRxAddr), rxAddr)
	t.store(t.entry(ep, entryRxCount), uint16(rxCount.Allocation()))
}

// Entry reads back the entry for ep.
func (t *Table) Entry(ep uint8) Entry {
	return Entry{
		TxAddr:  t.load(t.entry(ep, entryTxAddr)),
		TxCount: t.load(t.entry(ep, entryTxCount)),
		RxAddr:  t.load(t.entry(ep, entryRxAddr)),
		RxCount: RxCount(t.load(t.entry(ep, entryRxCount))),
	}
}

// SetTxCount sets the number of bytes to send on the next IN token.
func (t *Table) SetTxCount(ep uint8, n uint16) {
	t.store(t.entry(ep, entryTxCount), n)
}

// SetRxCount rewrites the receive allocation of ep, clearing the received
// byte count.
func (t *Table) SetRxCount(ep uint8, c RxCount) {
	t.store(t.entry(ep, entryRxCount), uint16(c.Allocation()))
}

// RxCount returns the COUNT_RX word of ep.
func (t *Table) RxCount(ep uint8) RxCount {
	return RxCount(t.load(t.entry(ep, entryRxCount)))
}

// Write copies data into packet memory starting at the even offset addr.
func (t *Table) Write(addr uint16, data []byte) {
	t.checkBuffer(addr, len(data))
	for i := 0; i < len(data); i += 2 {
		w := uint16(data[i])
		if i+1 < len(data) {
			w |= uint16(data[i+1]) << 8
		}
		t.store(addr+uint16(i), w)
	}
}

// Read copies len(buf) bytes of packet memory starting at the even offset
// addr into buf and returns the number of bytes copied.
func (t *Table) Read(addr uint16, buf []byte) int {
	t.checkBuffer(addr, len(buf))
	for i := 0; i < len(buf); i += 2 {
		w := t.load(addr + uint16(i))
		buf[i] = byte(w)
		if i+1 < len(buf) {
			buf[i+1] = byte(w >> 8)
		}
	}
	return len(buf)
}
