// Package sim provides a software model of the USB full-speed device
// peripheral and a scripted host that drives it.
//
// Peripheral implements hal.Bus and hal.Critical over an in-memory register
// file and packet memory. Stores follow the hardware write rules: complete
// flags are cleared by writing 0 and kept by writing 1, status and data
// toggle fields flip where a 1 is written, SETUP is read-only, and the
// remaining fields take the written value. ISTR.CTR, DIR and EP_ID are
// derived from the endpoint registers on every read.
//
// Host issues SETUP, OUT and IN transactions against the peripheral the way
// the serial interface engine would, and runs the device's interrupt
// handler whenever an enabled interrupt is pending:
//
//	p := sim.NewPeripheral(hal.DefaultLayout)
//	drv := device.New(p, device.Config{Critical: p, ...})
//	host := sim.NewHost(p, drv.Service)
//	host.Reset()
//	desc, err := host.ControlIn(sim.Setup(0x80, 0x06, 0x0100, 0, 18))
//
// Everything runs on the goroutine that calls into the Host. Register and
// packet memory accesses are serialized, so other goroutines may inspect
// the peripheral while a session runs.
package sim
