// Package pma manages the packet memory area of the USB peripheral.
//
// The packet memory holds a buffer descriptor table followed by the
// endpoint buffers. The table has one four-word entry per endpoint:
//
//	offset  field
//	+0      ADDR_TX   buffer offset of the transmit buffer
//	+2      COUNT_TX  bytes to send on the next IN token
//	+4      ADDR_RX   buffer offset of the receive buffer
//	+6      COUNT_RX  encoded capacity and received byte count
//
// All offsets are byte offsets as seen by the peripheral. The packet engine
// reads an entry between the moment its direction is armed and the moment
// the completion flag is raised; an entry must not change while armed.
//
// # Receive Count Encoding
//
// COUNT_RX carries the receive buffer capacity in a compressed form:
//
//	bit 15     BL_SIZE    block size: 0 = 2 bytes, 1 = 32 bytes
//	bits 14:10 NUM_BLOCK  number of blocks (BL_SIZE=1 stores blocks-1)
//	bits 9:0   COUNT_RX   bytes received, written by the peripheral
//
// Use [EncodeRxCount] for exact sizes and [RoundRxSize] to round an
// arbitrary size up to the nearest encodable capacity.
package pma
