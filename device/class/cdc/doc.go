// Package cdc implements the USB Communications Device Class Abstract
// Control Model (CDC-ACM), a virtual serial port, on top of the pmausb
// device driver.
//
// # Architecture
//
// The function has two interfaces:
//
//   - Control interface 0 (Communications Class) answers SET_LINE_CODING,
//     GET_LINE_CODING, SET_CONTROL_LINE_STATE and SEND_BREAK, and owns the
//     interrupt IN endpoint 0x82 used for SERIAL_STATE notifications.
//   - Data interface 1 (Data Class) owns bulk OUT 0x01 and bulk IN 0x81.
//
// The class driver only arms and drains endpoints. What the bytes mean is
// up to the application.
//
// # Usage
//
//	acm := cdc.NewACM()
//	acm.SetOnReceive(func(data []byte) {
//	    acm.Write(data) // echo
//	})
//
//	drv, err := device.New(bus, acm.DeviceConfig(cdc.DefaultIdentity))
//	if err != nil {
//	    return err
//	}
//	drv.Init()
//
//	// From the USB interrupt handler:
//	drv.Service()
//
// # Descriptors
//
// Descriptors builds the 18-byte device descriptor, the 67-byte
// configuration with the Header, Call Management, ACM and Union functional
// descriptors, and the string table for an Identity.
package cdc
