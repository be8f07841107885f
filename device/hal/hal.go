package hal

// Bus provides 16-bit memory-mapped I/O access to the USB peripheral.
//
// Implementations must perform exactly one hardware access per call:
// endpoint registers have toggle-on-write-1 and clear-on-write-0 fields, so
// a Store16 that is split, merged or replayed changes device state.
type Bus interface {
	// Load16 reads the 16-bit value at addr.
	Load16(addr uintptr) uint16

	// Store16 writes v to the 16-bit location at addr.
	Store16(addr uintptr, v uint16)
}

// Critical masks the peripheral interrupt around a sequence of accesses.
//
// Disable returns an opaque state that must be passed to the matching
// Restore, allowing nested sections.
type Critical interface {
	Disable() uintptr
	Restore(state uintptr)
}

// NoCritical is a Critical that masks nothing. It is suitable when the
// driver is only ever entered from a single context.
type NoCritical struct{}

// Disable implements Critical.
func (NoCritical) Disable() uintptr { return 0 }

// Restore implements Critical.
func (NoCritical) Restore(uintptr) {}

// Register offsets from Layout.RegisterBase.
const (
	OffsetEPR    = 0x00 // Endpoint registers, stride EPRStride
	OffsetCNTR   = 0x40 // Control register
	OffsetISTR   = 0x44 // Interrupt status register
	OffsetFNR    = 0x48 // Frame number register
	OffsetDADDR  = 0x4C // Device address register
	OffsetBTABLE = 0x50 // Buffer table address register
)

// EPRStride is the distance between consecutive endpoint registers.
const EPRStride = 4

// MaxEndpointRegisters is the number of endpoint registers in the block.
const MaxEndpointRegisters = 8

// CNTR bits.
const (
	CntrCTRM    = 0x8000 // Correct transfer interrupt mask
	CntrPMAOVRM = 0x4000 // Packet memory overrun interrupt mask
	CntrERRM    = 0x2000 // Error interrupt mask
	CntrWKUPM   = 0x1000 // Wakeup interrupt mask
	CntrSUSPM   = 0x0800 // Suspend interrupt mask
	CntrRESETM  = 0x0400 // Reset interrupt mask
	CntrSOFM    = 0x0200 // Start of frame interrupt mask
	CntrESOFM   = 0x0100 // Expected start of frame interrupt mask
	CntrRESUME  = 0x0010 // Resume request
	CntrFSUSP   = 0x0008 // Force suspend
	CntrLPMODE  = 0x0004 // Low-power mode
	CntrPDWN    = 0x0002 // Power down
	CntrFRES    = 0x0001 // Force USB reset
)

// ISTR bits. Event flags are cleared by writing 0; DIR and EP_ID are
// read-only.
const (
	IstrCTR    = 0x8000 // Correct transfer
	IstrPMAOVR = 0x4000 // Packet memory overrun
	IstrERR    = 0x2000 // Error
	IstrWKUP   = 0x1000 // Wakeup
	IstrSUSP   = 0x0800 // Suspend
	IstrRESET  = 0x0400 // Bus reset
	IstrSOF    = 0x0200 // Start of frame
	IstrESOF   = 0x0100 // Expected start of frame
	IstrDIR    = 0x0010 // Direction of the pending transaction (1 = OUT/SETUP)
	IstrEPID   = 0x000F // Endpoint identifier of the pending transaction
)

// IstrFlags is the set of ISTR bits that are cleared by writing 0.
const IstrFlags = IstrCTR | IstrPMAOVR | IstrERR | IstrWKUP |
	IstrSUSP | IstrRESET | IstrSOF | IstrESOF

// DADDR bits.
const (
	DaddrEF  = 0x80 // Enable function
	DaddrADD = 0x7F // Device address
)

// Layout describes where the peripheral lives in the CPU address space.
type Layout struct {
	RegisterBase uintptr // Base of the register block
	PMABase      uintptr // Base of the packet memory area
	PMASize      uint16  // Packet memory size in bytes (peripheral view)
	EPCount      uint8   // Number of endpoints with buffer table entries
}

// DefaultLayout is the memory map of the full-speed device peripheral with
// 512 bytes of packet memory and four endpoints.
var DefaultLayout = Layout{
	RegisterBase: 0x40005C00,
	PMABase:      0x40006000,
	PMASize:      512,
	EPCount:      4,
}

// Register returns the CPU address of the register at offset.
func (l Layout) Register(offset uintptr) uintptr {
	return l.RegisterBase + offset
}

// EPR returns the CPU address of endpoint register ep.
func (l Layout) EPR(ep uint8) uintptr {
	return l.RegisterBase + OffsetEPR + uintptr(ep)*EPRStride
}

// PMA returns the CPU address of the 16-bit word holding PMA byte offset
// off. off must be even.
func (l Layout) PMA(off uint16) uintptr {
	return l.PMABase + uintptr(off)*2
}
