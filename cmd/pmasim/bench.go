package main

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"unicode/utf16"

	"github.com/ardnew/pmausb/device"
	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/device/hal"
	"github.com/ardnew/pmausb/device/hal/sim"
)

// bench is a CDC-ACM device wired to a simulated host. The ACM echoes
// every packet it receives.
type bench struct {
	log  *slog.Logger
	p    *sim.Peripheral
	acm  *cdc.ACM
	drv  *device.Driver
	host *sim.Host
}

func newBench(logger *slog.Logger, id cdc.Identity) (*bench, error) {
	p := sim.NewPeripheral(hal.DefaultLayout)
	acm := cdc.NewACM()
	cfg := acm.DeviceConfig(id)
	cfg.Critical = p
	drv, err := device.New(p, cfg)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	b := &bench{
		log:  logger,
		p:    p,
		acm:  acm,
		drv:  drv,
		host: sim.NewHost(p, drv.Service),
	}
	acm.SetOnReceive(func(data []byte) {
		if _, err := acm.Write(data); err != nil {
			logger.Warn("echo dropped", "len", len(data), "error", err)
		}
	})
	acm.SetOnLineCodingChange(func(lc cdc.LineCoding) {
		logger.Info("line coding", "coding", lc.String())
	})
	acm.SetOnControlStateChange(func(dtr, rts bool) {
		logger.Info("control lines", "dtr", dtr, "rts", rts)
	})
	drv.SetOnStateChange(func(old, new device.State) {
		logger.Debug("device state", "from", old.String(), "to", new.String())
	})
	drv.Init()
	return b, nil
}

// enumeration is what the host learned while enumerating.
type enumeration struct {
	Device        []byte
	Configuration []byte
	Manufacturer  string
	Product       string
	SerialNumber  string
}

const stdIn = device.RequestDirectionDeviceToHost

func getDescriptor(h *sim.Host, typ, index uint8, lang, length uint16) ([]byte, error) {
	v := uint16(typ)<<8 | uint16(index)
	return h.ControlIn(sim.Setup(stdIn, device.RequestGetDescriptor, v, lang, length))
}

// enumerate runs the host side of enumeration and selects configuration 1.
func (b *bench) enumerate(addr uint8) (*enumeration, error) {
	h := b.host
	h.Reset()

	// The first request only needs bMaxPacketSize0.
	head, err := getDescriptor(h, device.DescriptorTypeDevice, 0, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	if len(head) < 8 {
		return nil, fmt.Errorf("device descriptor: %d bytes", len(head))
	}
	h.MaxPacketSize0 = int(head[7])
	h.Reset()

	if err := h.SetAddress(addr); err != nil {
		return nil, fmt.Errorf("set address %d: %w", addr, err)
	}
	e := &enumeration{}
	if e.Device, err = getDescriptor(h, device.DescriptorTypeDevice, 0, 0, device.DeviceDescriptorSize); err != nil {
		return nil, fmt.Errorf("device descriptor: %w", err)
	}
	short, err := getDescriptor(h, device.DescriptorTypeConfiguration, 0, 0, device.ConfigurationDescriptorSize)
	if err != nil {
		return nil, fmt.Errorf("configuration descriptor: %w", err)
	}
	if len(short) < 4 {
		return nil, fmt.Errorf("configuration descriptor: %d bytes", len(short))
	}
	total := binary.LittleEndian.Uint16(short[2:4])
	if e.Configuration, err = getDescriptor(h, device.DescriptorTypeConfiguration, 0, 0, total); err != nil {
		return nil, fmt.Errorf("configuration descriptor: %w", err)
	}

	langs, err := getDescriptor(h, device.DescriptorTypeString, 0, 0, 255)
	if err != nil {
		return nil, fmt.Errorf("language IDs: %w", err)
	}
	if len(langs) < 4 {
		return nil, fmt.Errorf("language IDs: %d bytes", len(langs))
	}
	lang := binary.LittleEndian.Uint16(langs[2:4])
	for _, s := range []struct {
		index uint8
		dst   *string
	}{
		{e.Device[14], &e.Manufacturer},
		{e.Device[15], &e.Product},
		{e.Device[16], &e.SerialNumber},
	} {
		if s.index == 0 {
			continue
		}
		raw, err := getDescriptor(h, device.DescriptorTypeString, s.index, lang, 255)
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", s.index, err)
		}
		*s.dst = decodeString(raw)
	}

	if err := h.ControlOut(sim.Setup(0x00, device.RequestSetConfiguration, 1, 0, 0), nil); err != nil {
		return nil, fmt.Errorf("set configuration: %w", err)
	}
	b.log.Info("enumerated",
		"address", addr,
		"vid", fmt.Sprintf("%04x", binary.LittleEndian.Uint16(e.Device[8:])),
		"pid", fmt.Sprintf("%04x", binary.LittleEndian.Uint16(e.Device[10:])),
		"product", e.Product)
	return e, nil
}

// decodeString converts a UTF-16LE string descriptor to a Go string.
func decodeString(raw []byte) string {
	if len(raw) < 2 {
		return ""
	}
	n := min(int(raw[0]), len(raw))
	units := make([]uint16, 0, (n-2)/2)
	for i := 2; i+1 < n; i += 2 {
		units = append(units, binary.LittleEndian.Uint16(raw[i:]))
	}
	return string(utf16.Decode(units))
}

// echo sends msg to the data OUT endpoint one packet at a time and collects
// what the device returns on the data IN endpoint.
func (b *bench) echo(msg []byte) ([]byte, error) {
	var out []byte
	for off := 0; off < len(msg); off += cdc.DataPacketSize {
		end := min(off+cdc.DataPacketSize, len(msg))
		if err := b.host.Out(cdc.DataEndpoint, msg[off:end]); err != nil {
			return out, fmt.Errorf("data out: %w", err)
		}
		got, err := b.host.BulkIn(cdc.DataEndpoint, cdc.DataPacketSize)
		out = append(out, got...)
		if err != nil {
			return out, fmt.Errorf("data in: %w", err)
		}
	}
	return out, nil
}

// openPort issues SET_LINE_CODING and SET_CONTROL_LINE_STATE the way a
// host serial driver does when a port is opened.
func (b *bench) openPort(lc cdc.LineCoding) error {
	const classOut = device.RequestTypeClass | device.RequestRecipientInterface
	var buf [cdc.LineCodingSize]byte
	lc.MarshalTo(buf[:])
	if err := b.host.ControlOut(sim.Setup(classOut, cdc.RequestSetLineCoding, 0, cdc.ControlInterface, cdc.LineCodingSize), buf[:]); err != nil {
		return fmt.Errorf("set line coding: %w", err)
	}
	lines := uint16(cdc.ControlLineDTR | cdc.ControlLineRTS)
	if err := b.host.ControlOut(sim.Setup(classOut, cdc.RequestSetControlLineState, lines, cdc.ControlInterface, 0), nil); err != nil {
		return fmt.Errorf("set control line state: %w", err)
	}
	return nil
}

// serialState sends a SERIAL_STATE notification and reads it back from the
// interrupt endpoint.
func (b *bench) serialState(state uint16) ([]byte, error) {
	if err := b.acm.SendSerialState(state); err != nil {
		return nil, err
	}
	return b.host.BulkIn(cdc.NotifyEndpoint, cdc.NotifyPacketSize)
}
