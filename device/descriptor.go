package device

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/ardnew/pmausb/pkg"
)

// Descriptor types (USB 2.0 Table 9-5).
const (
	DescriptorTypeDevice          = 0x01
	DescriptorTypeConfiguration   = 0x02
	DescriptorTypeString          = 0x03
	DescriptorTypeInterface       = 0x04
	DescriptorTypeEndpoint        = 0x05
	DescriptorTypeDeviceQualifier = 0x06
	DescriptorTypeCSInterface     = 0x24 // Class-specific interface
	DescriptorTypeCSEndpoint      = 0x25 // Class-specific endpoint
)

// Class codes used by this driver's descriptors.
const (
	ClassPerInterface = 0x00
	ClassCDC          = 0x02
	ClassCDCData      = 0x0A
	ClassMisc         = 0xEF
	ClassVendor       = 0xFF
)

// Endpoint descriptor transfer types (bmAttributes bits 1:0).
const (
	TransferTypeControl     = 0x00
	TransferTypeIsochronous = 0x01
	TransferTypeBulk        = 0x02
	TransferTypeInterrupt   = 0x03
)

// Endpoint address direction bit.
const (
	EndpointDirectionOut = 0x00
	EndpointDirectionIn  = 0x80
)

// DeviceDescriptor is the 18-byte device descriptor.
type DeviceDescriptor struct {
	USBVersion        uint16 // bcdUSB
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16 // bcdDevice
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// DeviceDescriptorSize is the size of a device descriptor in bytes.
const DeviceDescriptorSize = 18

// MarshalTo serializes the descriptor to buf and returns the number of
// bytes written, or 0 if buf is too small.
func (d *DeviceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < DeviceDescriptorSize {
		return 0
	}
	buf[0] = DeviceDescriptorSize
	buf[1] = DescriptorTypeDevice
	binary.LittleEndian.PutUint16(buf[2:4], d.USBVersion)
	buf[4] = d.DeviceClass
	buf[5] = d.DeviceSubClass
	buf[6] = d.DeviceProtocol
	buf[7] = d.MaxPacketSize0
	binary.LittleEndian.PutUint16(buf[8:10], d.VendorID)
	binary.LittleEndian.PutUint16(buf[10:12], d.ProductID)
	binary.LittleEndian.PutUint16(buf[12:14], d.DeviceVersion)
	buf[14] = d.ManufacturerIndex
	buf[15] = d.ProductIndex
	buf[16] = d.SerialNumberIndex
	buf[17] = d.NumConfigurations
	return DeviceDescriptorSize
}

// ConfigurationDescriptor is the 9-byte configuration descriptor header.
type ConfigurationDescriptor struct {
	TotalLength        uint16 // wTotalLength of the whole configuration
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8 // 2 mA units
}

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80 // Reserved, always set
	ConfigAttrSelfPowered  = 0x40
	ConfigAttrRemoteWakeup = 0x20
)

// ConfigurationDescriptorSize is the size of a configuration descriptor
// header in bytes.
const ConfigurationDescriptorSize = 9

// MarshalTo serializes the descriptor to buf.
func (c *ConfigurationDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < ConfigurationDescriptorSize {
		return 0
	}
	buf[0] = ConfigurationDescriptorSize
	buf[1] = DescriptorTypeConfiguration
	binary.LittleEndian.PutUint16(buf[2:4], c.TotalLength)
	buf[4] = c.NumInterfaces
	buf[5] = c.ConfigurationValue
	buf[6] = c.ConfigurationIndex
	buf[7] = c.Attributes
	buf[8] = c.MaxPower
	return ConfigurationDescriptorSize
}

// InterfaceDescriptor is the 9-byte interface descriptor.
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8
}

// InterfaceDescriptorSize is the size of an interface descriptor in bytes.
const InterfaceDescriptorSize = 9

// MarshalTo serializes the descriptor to buf.
func (i *InterfaceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < InterfaceDescriptorSize {
		return 0
	}
	buf[0] = InterfaceDescriptorSize
	buf[1] = DescriptorTypeInterface
	buf[2] = i.InterfaceNumber
	buf[3] = i.AlternateSetting
	buf[4] = i.NumEndpoints
	buf[5] = i.InterfaceClass
	buf[6] = i.InterfaceSubClass
	buf[7] = i.InterfaceProtocol
	buf[8] = i.InterfaceIndex
	return InterfaceDescriptorSize
}

// EndpointDescriptor is the 7-byte endpoint descriptor.
type EndpointDescriptor struct {
	EndpointAddress uint8 // Number plus direction bit
	Attributes      uint8 // Transfer type
	MaxPacketSize   uint16
	Interval        uint8 // Polling interval in frames
}

// EndpointDescriptorSize is the size of an endpoint descriptor in bytes.
const EndpointDescriptorSize = 7

// MarshalTo serializes the descriptor to buf.
func (e *EndpointDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < EndpointDescriptorSize {
		return 0
	}
	buf[0] = EndpointDescriptorSize
	buf[1] = DescriptorTypeEndpoint
	buf[2] = e.EndpointAddress
	buf[3] = e.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], e.MaxPacketSize)
	buf[6] = e.Interval
	return EndpointDescriptorSize
}

// MaxStringUnits is the number of UTF-16 code units that fit a string
// descriptor.
const MaxStringUnits = 126

// StringUnits returns the number of UTF-16 code units s encodes to.
// Characters outside the Basic Multilingual Plane take two.
func StringUnits(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// StringDescriptorTo writes s as a UTF-16LE string descriptor to buf and
// returns the number of bytes written, or 0 if buf is too small. Strings
// longer than MaxStringUnits code units are truncated at a character
// boundary, so a surrogate pair is never split.
func StringDescriptorTo(buf []byte, s string) int {
	units, end := 0, len(s)
	for i, r := range s {
		w := utf16.RuneLen(r)
		if units+w > MaxStringUnits {
			end = i
			break
		}
		units += w
	}
	length := 2 + units*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	off := 2
	for _, r := range s[:end] {
		if utf16.RuneLen(r) == 2 {
			hi, lo := utf16.EncodeRune(r)
			binary.LittleEndian.PutUint16(buf[off:], uint16(hi))
			binary.LittleEndian.PutUint16(buf[off+2:], uint16(lo))
			off += 4
			continue
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(r))
		off += 2
	}
	return length
}

// LanguageDescriptorTo writes string descriptor 0 listing langIDs to buf.
func LanguageDescriptorTo(buf []byte, langIDs ...uint16) int {
	length := 2 + len(langIDs)*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+i*2:], id)
	}
	return length
}

// LangIDUSEnglish is the language ID for US English.
const LangIDUSEnglish = 0x0409

// Descriptors holds the encoded descriptor content served by
// GET_DESCRIPTOR. The driver does not interpret it beyond the fields it
// needs to answer standard requests.
type Descriptors struct {
	Device        []byte   // Device descriptor
	Configuration []byte   // Complete configuration, wTotalLength bytes
	Strings       [][]byte // Index 0 is the language ID list
}

// Validate checks the structural fields the driver relies on.
func (d *Descriptors) Validate() error {
	if len(d.Device) != DeviceDescriptorSize || d.Device[1] != DescriptorTypeDevice {
		return fmt.Errorf("device descriptor: %w", pkg.ErrInvalidParameter)
	}
	if len(d.Configuration) < ConfigurationDescriptorSize ||
		d.Configuration[1] != DescriptorTypeConfiguration {
		return fmt.Errorf("configuration descriptor: %w", pkg.ErrInvalidParameter)
	}
	if total := int(binary.LittleEndian.Uint16(d.Configuration[2:4])); total != len(d.Configuration) {
		return fmt.Errorf("configuration wTotalLength %d != %d bytes: %w",
			total, len(d.Configuration), pkg.ErrInvalidParameter)
	}
	return nil
}

// MaxPacketSize0 returns bMaxPacketSize0 from the device descriptor.
func (d *Descriptors) MaxPacketSize0() uint8 {
	return d.Device[7]
}

// ConfigurationValue returns bConfigurationValue.
func (d *Descriptors) ConfigurationValue() uint8 {
	return d.Configuration[5]
}

// ConfigurationAttributes returns bmAttributes of the configuration.
func (d *Descriptors) ConfigurationAttributes() uint8 {
	return d.Configuration[7]
}

// NumInterfaces returns bNumInterfaces.
func (d *Descriptors) NumInterfaces() uint8 {
	return d.Configuration[4]
}

// Lookup returns the descriptor selected by a GET_DESCRIPTOR wValue.
func (d *Descriptors) Lookup(descType, index uint8) ([]byte, error) {
	switch descType {
	case DescriptorTypeDevice:
		return d.Device, nil
	case DescriptorTypeConfiguration:
		if index != 0 {
			return nil, fmt.Errorf("configuration %d: %w", index, pkg.ErrInvalidRequest)
		}
		return d.Configuration, nil
	case DescriptorTypeString:
		if int(index) >= len(d.Strings) || len(d.Strings[index]) == 0 {
			return nil, fmt.Errorf("string %d: %w", index, pkg.ErrInvalidRequest)
		}
		return d.Strings[index], nil
	default:
		return nil, fmt.Errorf("descriptor type 0x%02X: %w", descType, pkg.ErrNotSupported)
	}
}
