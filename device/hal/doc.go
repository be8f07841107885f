// Package hal defines the hardware access layer for the USB full-speed
// device peripheral.
//
// The driver never dereferences hardware addresses itself. Every register
// and packet memory access goes through a [Bus], so the protocol engine can
// run unchanged against physical memory on a microcontroller or against the
// simulated register file in [github.com/ardnew/pmausb/device/hal/sim].
//
// # Memory Map
//
// The peripheral exposes two regions, described by [Layout]:
//
//   - The register block: eight endpoint registers (EPnR) followed by the
//     CNTR, ISTR, FNR, DADDR and BTABLE registers. Each register holds a
//     16-bit value in a 32-bit slot.
//   - The packet memory area (PMA): the dual-port buffer shared with the
//     packet engine. The peripheral addresses it in bytes, but the CPU sees
//     each 16-bit word in its own 32-bit slot, so a PMA byte offset o maps
//     to CPU address PMABase + 2*o.
//
// # Interrupt Masking
//
// Application code that touches packet memory or endpoint registers outside
// the interrupt handler must do so inside a [Critical] section.
//
// # Implementing a Bus
//
// On TinyGo the bus is a thin wrapper around runtime/volatile:
//
//	type mmio struct{}
//
//	func (mmio) Load16(addr uintptr) uint16 {
//	    return (*volatile.Register16)(unsafe.Pointer(addr)).Get()
//	}
//
//	func (mmio) Store16(addr uintptr, v uint16) {
//	    (*volatile.Register16)(unsafe.Pointer(addr)).Set(v)
//	}
package hal
