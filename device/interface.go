package device

// ClassDriver implements a USB class on top of the driver.
//
// All methods are called from Service, inside the critical section, and
// must not block. They may call Transmit, ArmReceive and Stall.
type ClassDriver interface {
	// HandleSetup processes a class request, or an interface request the
	// driver does not handle itself. data holds the OUT data stage. The
	// returned slice is the IN data stage and must stay valid until the
	// transfer completes. Returning an error stalls the request.
	HandleSetup(setup *SetupPacket, data []byte) ([]byte, error)

	// Configure is called when the configuration changes. value 0 means
	// unconfigured, which is also signalled on every bus reset. Endpoints
	// are configured and NAKing when Configure is called with a non-zero
	// value.
	Configure(d *Driver, value uint8) error

	// RxComplete delivers an OUT packet received on ep. The endpoint stays
	// NAKing until ArmReceive is called. data is valid until then.
	RxComplete(ep uint8, data []byte)

	// TxComplete reports that the transfer started by Transmit on ep has
	// been fully sent.
	TxComplete(ep uint8)
}

func (d *Driver) notifyClass(value uint8) error {
	if d.class == nil {
		return nil
	}
	return d.class.Configure(d, value)
}

// TxAborter is implemented by class drivers that need to know when an IN
// transfer is discarded before completing, as when the endpoint is halted
// by the host or by Stall. TxComplete is not called for such a transfer.
type TxAborter interface {
	TxAborted(ep uint8)
}
