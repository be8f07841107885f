package epr

import (
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/pkg"
)

// Controller is the sole writer of the endpoint register file.
//
// Every mutation is one Load16 of the register followed by one Store16 of a
// value computed by the With* functions. None of the operations can fail;
// a wrong sequence shows up as a protocol malfunction on the bus.
type Controller struct {
	bus    hal.Bus
	layout hal.Layout
}

// NewController creates a controller for the endpoint registers in layout.
func NewController(bus hal.Bus, layout hal.Layout) *Controller {
	return &Controller{bus: bus, layout: layout}
}

// Read returns the current value of endpoint register ep.
func (c *Controller) Read(ep uint8) uint16 {
	return c.bus.Load16(c.layout.EPR(ep))
}

func (c *Controller) update(ep uint8, next func(uint16) uint16) {
	addr := c.layout.EPR(ep)
	c.bus.Store16(addr, next(c.bus.Load16(addr)))
}

// SetStatus drives the status field of dir to s.
func (c *Controller) SetStatus(ep uint8, dir Direction, s Status) {
	c.update(ep, func(cur uint16) uint16 { return WithStatus(cur, dir, s) })
	pkg.LogDebug(pkg.ComponentEndpoint, "status set",
		"endpoint", ep, "dir", dir, "status", s)
}

// SetStatusBoth drives both status fields in one write.
func (c *Controller) SetStatusBoth(ep uint8, tx, rx Status) {
	c.update(ep, func(cur uint16) uint16 { return WithStatusBoth(cur, tx, rx) })
	pkg.LogDebug(pkg.ComponentEndpoint, "status set",
		"endpoint", ep, "tx", tx, "rx", rx)
}

// ClearComplete clears the complete flag of dir. It must be called before
// the direction is re-armed or the next completion is never signalled.
func (c *Controller) ClearComplete(ep uint8, dir Direction) {
	c.update(ep, func(cur uint16) uint16 { return WithCompleteCleared(cur, dir) })
}

// SetAddress sets the endpoint address field.
func (c *Controller) SetAddress(ep uint8, addr uint8) {
	c.update(ep, func(cur uint16) uint16 { return WithAddress(cur, addr) })
}

// SetType sets the endpoint type field.
func (c *Controller) SetType(ep uint8, t EndpointType) {
	c.update(ep, func(cur uint16) uint16 { return WithType(cur, t) })
}

// SetKind sets the endpoint kind bit.
func (c *Controller) SetKind(ep uint8, doubleBuffered bool) {
	c.update(ep, func(cur uint16) uint16 { return WithKind(cur, doubleBuffered) })
}

// ResetDataToggle returns the data toggle of dir to DATA0.
func (c *Controller) ResetDataToggle(ep uint8, dir Direction) {
	c.update(ep, func(cur uint16) uint16 { return WithDataToggle(cur, dir, false) })
}

// Status returns the current status of dir.
func (c *Controller) Status(ep uint8, dir Direction) Status {
	return StatusOf(c.Read(ep), dir)
}
