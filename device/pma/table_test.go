package pma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/pmausb/device/hal"
)

// wordBus stores 16-bit values by address.
type wordBus map[uintptr]uint16

func (b wordBus) Load16(addr uintptr) uint16     { return b[addr] }
func (b wordBus) Store16(addr uintptr, v uint16) { b[addr] = v }

func TestTableConfigure(t *testing.T) {
	bus := wordBus{}
	tbl := NewTable(bus, hal.DefaultLayout, 0)

	rx := MustEncodeRxCount(64)
	tbl.Configure(1, 0x80, 0, 0xC0, rx)

	got := tbl.Entry(1)
	assert.Equal(t, Entry{TxAddr: 0x80, TxCount: 0, RxAddr: 0xC0, RxCount: rx}, got)

	// Entry 1 starts 8 bytes in; each PMA half-word sits in a 32-bit slot.
	base := hal.DefaultLayout.PMABase
	assert.Equal(t, uint16(0x80), bus[base+8*2])
	assert.Equal(t, uint16(0xC0), bus[base+12*2])
	assert.Equal(t, uint16(rx), bus[base+14*2])

	tbl.SetTxCount(1, 42)
	assert.Equal(t, uint16(42), tbl.Entry(1).TxCount)
}

func TestTableConfigurePanics(t *testing.T) {
	tbl := NewTable(wordBus{}, hal.DefaultLayout, 0)
	assert.Panics(t, func() { tbl.Configure(4, 0x40, 0, 0x80, MustEncodeRxCount(8)) })
	assert.Panics(t, func() { tbl.Configure(0, 0x40, 0, 0x1F0, MustEncodeRxCount(64)) })
	assert.Panics(t, func() { NewTable(wordBus{}, hal.DefaultLayout, 4) })
}

func TestTableReadWrite(t *testing.T) {
	tbl := NewTable(wordBus{}, hal.DefaultLayout, 0)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "one byte", data: []byte{0xAB}},
		{name: "even", data: []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}},
		{name: "odd", data: []byte("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl.Write(0x40, tt.data)
			buf := make([]byte, len(tt.data))
			n := tbl.Read(0x40, buf)
			require.Equal(t, len(tt.data), n)
			assert.Equal(t, tt.data, buf[:n])
		})
	}
}

func TestTableWordPacking(t *testing.T) {
	bus := wordBus{}
	tbl := NewTable(bus, hal.DefaultLayout, 0)
	tbl.Write(0x40, []byte{0x34, 0x12, 0x78, 0x56})
	assert.Equal(t, uint16(0x1234), bus[hal.DefaultLayout.PMA(0x40)])
	assert.Equal(t, uint16(0x5678), bus[hal.DefaultLayout.PMA(0x42)])
}

func TestTableRxCount(t *testing.T) {
	tbl := NewTable(wordBus{}, hal.DefaultLayout, 0)
	tbl.Configure(0, 0x40, 0, 0x80, MustEncodeRxCount(64))
	tbl.SetRxCount(0, MustEncodeRxCount(64).WithReceived(9))
	assert.Equal(t, 0, tbl.RxCount(0).Received(), "software writes clear the received count")
	assert.Equal(t, 64, tbl.RxCount(0).Capacity())
}

func TestAllocator(t *testing.T) {
	a := NewAllocator(32, 512)
	assert.Equal(t, uint16(32), a.Alloc(64))
	assert.Equal(t, uint16(96), a.Alloc(7))
	assert.Equal(t, uint16(104), a.Alloc(8))
	assert.Equal(t, 512-112, a.Free())
	assert.Panics(t, func() { a.Alloc(512) })

	assert.Equal(t, uint16(34), NewAllocator(33, 512).Alloc(2))
}
