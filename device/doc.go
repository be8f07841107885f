// Package device implements a USB full-speed device driver for peripherals
// built around a shared packet memory area (PMA) and toggle-on-write
// endpoint registers.
//
// The driver reaches the hardware only through the [hal.Bus] interface
// defined in [github.com/ardnew/pmausb/device/hal], so the same code runs
// against memory-mapped registers on a microcontroller and against the
// simulated peripheral in [github.com/ardnew/pmausb/device/hal/sim].
//
// # Architecture
//
// The driver is organized into several layers:
//
//   - [pma.Table] owns the buffer descriptor table and packet memory
//   - [epr.Controller] updates endpoint registers without disturbing
//     toggle or completion bits it was not asked to change
//   - [Driver] runs the control transfer state machine on endpoint 0,
//     answers standard requests and moves data on the other endpoints
//   - [ClassDriver] implementations such as
//     [github.com/ardnew/pmausb/device/class/cdc] answer class requests
//
// # Control Transfers
//
// Every SETUP moves endpoint 0 through
//
//	Idle → Setup → DataIn|DataOut → StatusOut|StatusIn → Idle
//
// Errors stall both directions until the next SETUP. SET_ADDRESS is
// deferred: the new address is written only after the status stage has
// been acknowledged at the old address.
//
// # Device States
//
// The driver implements the USB 2.0 device state machine:
//
//	Powered → Default → Address → Configured ⇄ Suspended
//
// # Interrupt Model
//
// [Driver.Service] is the interrupt handler. Application calls that touch
// the peripheral, such as [Driver.Transmit], run inside a [hal.Critical]
// section. Critical sections nest, so class callbacks invoked from Service
// may call back into the driver.
//
// # Example
//
//	drv, err := device.New(bus, device.Config{
//	    Descriptors: descriptors,
//	    Endpoints:   endpoints,
//	    Class:       class,
//	    Critical:    irq,
//	})
//	if err != nil {
//	    return err
//	}
//	drv.Init()
//
//	// In the USB interrupt handler:
//	drv.Service()
package device
