package pma

import (
	"fmt"

	"github.com/ardnew/pmausb/pkg"
)

// COUNT_RX fields.
const (
	rxBlockSize  = 0x8000 // BL_SIZE
	rxNumBlock   = 0x7C00 // NUM_BLOCK
	rxCountMask  = 0x03FF // Received byte count
	rxBlockShift = 10
)

// Receive buffer capacity limits.
const (
	// MaxSmallRxSize is the largest capacity expressible in 2-byte blocks.
	MaxSmallRxSize = 62

	// LargeBlockSize is the block size used above MaxSmallRxSize.
	LargeBlockSize = 32

	// MaxRxSize is the largest receive buffer capacity supported.
	MaxRxSize = 512
)

// RxCount is the encoded COUNT_RX word of a buffer table entry.
type RxCount uint16

// EncodeRxCount encodes a receive buffer capacity. size must be even and
// at most MaxSmallRxSize, or a multiple of LargeBlockSize between
// LargeBlockSize and MaxRxSize. Other sizes return ErrInvalidParameter.
func EncodeRxCount(size int) (RxCount, error) {
	switch {
	case size > 0 && size <= MaxSmallRxSize && size%2 == 0:
		return RxCount(uint16(size/2) << rxBlockShift), nil
	case size >= LargeBlockSize && size <= MaxRxSize && size%LargeBlockSize == 0:
		return RxCount(rxBlockSize | uint16(size/LargeBlockSize-1)<<rxBlockShift), nil
	default:
		return 0, fmt.Errorf("rx buffer size %d: %w", size, pkg.ErrInvalidParameter)
	}
}

// MustEncodeRxCount is like EncodeRxCount but panics on an invalid size.
func MustEncodeRxCount(size int) RxCount {
	c, err := EncodeRxCount(size)
	if err != nil {
		panic(err)
	}
	return c
}

// RoundRxSize rounds size up to the nearest capacity EncodeRxCount
// accepts: the next even size up to MaxSmallRxSize, else the next multiple
// of LargeBlockSize. Sizes above MaxRxSize return ErrInvalidParameter.
func RoundRxSize(size int) (int, error) {
	switch {
	case size <= 0 || size > MaxRxSize:
		return 0, fmt.Errorf("rx buffer size %d: %w", size, pkg.ErrInvalidParameter)
	case size <= MaxSmallRxSize:
		return (size + 1) &^ 1, nil
	default:
		return (size + LargeBlockSize - 1) / LargeBlockSize * LargeBlockSize, nil
	}
}

// Capacity decodes the receive buffer capacity in bytes.
func (c RxCount) Capacity() int {
	blocks := int(uint16(c) & rxNumBlock >> rxBlockShift)
	if uint16(c)&rxBlockSize != 0 {
		return (blocks + 1) * LargeBlockSize
	}
	return blocks * 2
}

// Received returns the number of bytes the peripheral stored in the buffer.
func (c RxCount) Received() int {
	return int(uint16(c) & rxCountMask)
}

// WithReceived returns c with its received byte count replaced by n.
// Only the simulated peripheral writes this field.
func (c RxCount) WithReceived(n int) RxCount {
	return c&^rxCountMask | RxCount(n)&rxCountMask
}

// Allocation returns c with the received byte count cleared, i.e. the
// value software writes when it configures the buffer.
func (c RxCount) Allocation() RxCount {
	return c &^ rxCountMask
}
