package device

import "github.com/ardnew/pmausb/device/epr"

// startTx begins an IN transfer of data on ep. When zlp is set and the
// last packet is full-sized, a zero-length packet follows it; an empty
// data with zlp set sends one zero-length packet.
func (d *Driver) startTx(ep *EndpointState, data []byte, zlp bool) {
	ep.tx = data
	ep.txOff = 0
	ep.txZLP = zlp
	ep.txBusy = true
	d.sendNext(ep)
}

// sendNext copies the next packet of the current transfer into packet
// memory and arms the transmit side. It reports false when the transfer
// has nothing left to send.
func (d *Driver) sendNext(ep *EndpointState) bool {
	if !ep.txBusy {
		return false
	}
	mps := int(ep.TxMax)
	n := len(ep.tx) - ep.txOff
	switch {
	case n >= mps:
		n = mps
	case n > 0:
		ep.txZLP = false
	case ep.txZLP:
		ep.txZLP = false
	default:
		return false
	}
	d.table.Write(ep.txAddr, ep.tx[ep.txOff:ep.txOff+n])
	d.table.SetTxCount(ep.Number, uint16(n))
	ep.txOff += n
	d.regs.SetStatus(ep.Number, epr.Tx, epr.StatusValid)
	return true
}
