package pma

import "fmt"

// Allocator hands out endpoint buffers from packet memory, bottom up.
type Allocator struct {
	next  uint16
	limit uint16
}

// NewAllocator creates an allocator for [start, limit). start is rounded up
// to a word boundary.
func NewAllocator(start, limit uint16) *Allocator {
	return &Allocator{next: (start + 1) &^ 1, limit: limit}
}

// Alloc reserves size bytes and returns the buffer offset. Running out of
// packet memory is a configuration error and panics.
func (a *Allocator) Alloc(size int) uint16 {
	size = (size + 1) &^ 1
	if int(a.next)+size > int(a.limit) {
		panic(fmt.Sprintf("pma: out of packet memory allocating %d bytes at %#x (limit %#x)",
			size, a.next, a.limit))
	}
	addr := a.next
	a.next += uint16(size)
	return addr
}

// Free returns the number of unallocated bytes.
func (a *Allocator) Free() int {
	return int(a.limit) - int(a.next)
}
