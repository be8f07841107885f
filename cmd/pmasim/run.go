package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/pkg"
)

// RunCmd enumerates the device, opens the serial port and echoes a message.
type RunCmd struct {
	Address  uint8  `help:"Device address assigned by SET_ADDRESS" default:"7"`
	Message  string `help:"Payload written to the data OUT endpoint" default:"hello, pmausb"`
	Repeat   int    `help:"Number of echo round trips" default:"1"`
	Baud     uint32 `help:"DTE rate sent with SET_LINE_CODING" default:"115200"`
	DataBits uint8  `help:"Data bits sent with SET_LINE_CODING (5, 6, 7, 8 or 16)" default:"8"`
	Parity   string `help:"Parity sent with SET_LINE_CODING" enum:"none,odd,even,mark,space" default:"none"`
	Notify   bool   `help:"Send a SERIAL_STATE notification after the echo"`
}

var parities = map[string]uint8{
	"none":  cdc.ParityNone,
	"odd":   cdc.ParityOdd,
	"even":  cdc.ParityEven,
	"mark":  cdc.ParityMark,
	"space": cdc.ParitySpace,
}

// Run is called by kong when the run command is executed.
func (r *RunCmd) Run(logger *slog.Logger, cli *CLI, env *Env) error {
	if r.Address == 0 || r.Address > 127 {
		return fmt.Errorf("address %d out of range 1..127: %w", r.Address, pkg.ErrInvalidParameter)
	}
	switch r.DataBits {
	case 5, 6, 7, 8, 16:
	default:
		return fmt.Errorf("data bits %d: %w", r.DataBits, pkg.ErrInvalidParameter)
	}
	id, err := cli.identity(env)
	if err != nil {
		return err
	}
	b, err := newBench(logger, id)
	if err != nil {
		return err
	}
	e, err := b.enumerate(r.Address)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "enumerated %s %q (%s) at address %d\n",
		e.Manufacturer, e.Product, e.SerialNumber, b.drv.Address())
	vid := binary.LittleEndian.Uint16(e.Device[8:])
	pid := binary.LittleEndian.Uint16(e.Device[10:])
	fmt.Fprintf(env.Stdout, "id %s\n", cli.describeID(env, vid, pid))

	lc := cdc.LineCoding{
		DTERate:    r.Baud,
		CharFormat: cdc.StopBits1,
		ParityType: parities[r.Parity],
		DataBits:   r.DataBits,
	}
	if err := b.openPort(lc); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "port open: %s dtr=%t rts=%t\n", b.acm.LineCoding(), b.acm.DTR(), b.acm.RTS())

	msg := []byte(r.Message)
	for i := 0; i < r.Repeat; i++ {
		got, err := b.echo(msg)
		if err != nil {
			return fmt.Errorf("echo %d: %w", i+1, err)
		}
		if !bytes.Equal(got, msg) {
			return fmt.Errorf("echo %d: got %q, want %q: %w", i+1, got, msg, pkg.ErrProtocol)
		}
		fmt.Fprintf(env.Stdout, "echo %d: %d bytes %q\n", i+1, len(got), got)
	}

	if r.Notify {
		state := uint16(cdc.SerialStateRxCarrier | cdc.SerialStateTxCarrier)
		pkt, err := b.serialState(state)
		if err != nil {
			return fmt.Errorf("serial state: %w", err)
		}
		fmt.Fprintf(env.Stdout, "serial state: % x\n", pkt)
	}

	logger.Info("session complete",
		"frame", b.drv.FrameNumber(),
		"state", b.drv.State().String(),
		"diag_entries", b.drv.Diag().Len())
	return nil
}
