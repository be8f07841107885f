package cdc

import (
	"encoding/binary"

	"github.com/ardnew/pmausb/device"
	"github.com/ardnew/pmausb/device/epr"
)

// Interface numbers of the ACM function.
const (
	ControlInterface = 0
	DataInterface    = 1
)

// Endpoint numbers. The data OUT and IN endpoints share one endpoint
// register; the notification endpoint has its own.
const (
	DataEndpoint   = 1
	NotifyEndpoint = 2
)

// Endpoint addresses as they appear in the configuration descriptor.
const (
	DataOutAddress = DataEndpoint | device.EndpointDirectionOut  // 0x01
	DataInAddress  = DataEndpoint | device.EndpointDirectionIn   // 0x81
	NotifyAddress  = NotifyEndpoint | device.EndpointDirectionIn // 0x82
)

// Packet sizes.
const (
	DataPacketSize   = 64
	NotifyPacketSize = 8
	NotifyInterval   = 16 // Frames
)

// ConfigurationSize is wTotalLength of the ACM configuration.
const ConfigurationSize = device.ConfigurationDescriptorSize +
	device.InterfaceDescriptorSize + HeaderDescriptorSize +
	CallManagementDescriptorSize + ACMDescriptorSize + UnionDescriptorSize +
	device.EndpointDescriptorSize +
	device.InterfaceDescriptorSize + 2*device.EndpointDescriptorSize

// String descriptor indices.
const (
	StringManufacturer = 1
	StringProduct      = 2
	StringSerialNumber = 3
)

// Identity is the device identity written into the descriptors.
type Identity struct {
	VendorID      uint16 `yaml:"vendor_id" toml:"vendor_id"`
	ProductID     uint16 `yaml:"product_id" toml:"product_id"`
	DeviceVersion uint16 `yaml:"device_version" toml:"device_version"` // bcdDevice
	Manufacturer  string `yaml:"manufacturer" toml:"manufacturer"`
	Product       string `yaml:"product" toml:"product"`
	SerialNumber  string `yaml:"serial_number" toml:"serial_number"`
	MaxPower      uint8  `yaml:"max_power" toml:"max_power"` // 2 mA units
	SelfPowered   bool   `yaml:"self_powered" toml:"self_powered"`
}

// DefaultIdentity is the identity used when none is configured.
var DefaultIdentity = Identity{
	VendorID:      0x25AE,
	ProductID:     0x24AB,
	DeviceVersion: 0x0100,
	Manufacturer:  "pmausb",
	Product:       "Virtual COM Port",
	SerialNumber:  "00000001",
	MaxPower:      50,
}

// Descriptors authors the complete descriptor set of a CDC-ACM device.
func Descriptors(id Identity) device.Descriptors {
	dev := make([]byte, device.DeviceDescriptorSize)
	dd := device.DeviceDescriptor{
		USBVersion:        0x0200,
		DeviceClass:       device.ClassCDC,
		MaxPacketSize0:    device.MaxPacketSize,
		VendorID:          id.VendorID,
		ProductID:         id.ProductID,
		DeviceVersion:     id.DeviceVersion,
		ManufacturerIndex: StringManufacturer,
		ProductIndex:      StringProduct,
		SerialNumberIndex: StringSerialNumber,
		NumConfigurations: 1,
	}
	dd.MarshalTo(dev)

	attrs := uint8(device.ConfigAttrBusPowered)
	if id.SelfPowered {
		attrs |= device.ConfigAttrSelfPowered
	}
	cfg := make([]byte, ConfigurationSize)
	n := (&device.ConfigurationDescriptor{
		TotalLength:        ConfigurationSize,
		NumInterfaces:      2,
		ConfigurationValue: device.ConfigurationValue,
		Attributes:         attrs,
		MaxPower:           id.MaxPower,
	}).MarshalTo(cfg)
	n += (&device.InterfaceDescriptor{
		InterfaceNumber:   ControlInterface,
		NumEndpoints:      1,
		InterfaceClass:    device.ClassCDC,
		InterfaceSubClass: SubclassACM,
		InterfaceProtocol: ProtocolAT,
	}).MarshalTo(cfg[n:])
	n += HeaderDescriptor{CDCVersion: 0x0110}.MarshalTo(cfg[n:])
	n += CallManagementDescriptor{DataInterface: DataInterface}.MarshalTo(cfg[n:])
	n += ACMDescriptor{Capabilities: ACMCapLineCoding | ACMCapSendBreak}.MarshalTo(cfg[n:])
	n += UnionDescriptor{ControlInterface: ControlInterface, SubordinateInterface: DataInterface}.MarshalTo(cfg[n:])
	n += (&device.EndpointDescriptor{
		EndpointAddress: NotifyAddress,
		Attributes:      device.TransferTypeInterrupt,
		MaxPacketSize:   NotifyPacketSize,
		Interval:        NotifyInterval,
	}).MarshalTo(cfg[n:])
	n += (&device.InterfaceDescriptor{
		InterfaceNumber: DataInterface,
		NumEndpoints:    2,
		InterfaceClass:  device.ClassCDCData,
	}).MarshalTo(cfg[n:])
	n += (&device.EndpointDescriptor{
		EndpointAddress: DataOutAddress,
		Attributes:      device.TransferTypeBulk,
		MaxPacketSize:   DataPacketSize,
	}).MarshalTo(cfg[n:])
	(&device.EndpointDescriptor{
		EndpointAddress: DataInAddress,
		Attributes:      device.TransferTypeBulk,
		MaxPacketSize:   DataPacketSize,
	}).MarshalTo(cfg[n:])

	strs := make([][]byte, 4)
	strs[0] = make([]byte, 4)
	device.LanguageDescriptorTo(strs[0], device.LangIDUSEnglish)
	for i, s := range []string{id.Manufacturer, id.Product, id.SerialNumber} {
		if s == "" {
			continue
		}
		buf := make([]byte, 2+2*len([]rune(s)))
		buf = buf[:device.StringDescriptorTo(buf, s)]
		strs[i+1] = buf
	}

	return device.Descriptors{Device: dev, Configuration: cfg, Strings: strs}
}

// Endpoints returns the endpoint registers used by the ACM function.
func Endpoints() []device.EndpointConfig {
	return []device.EndpointConfig{
		{Number: DataEndpoint, Type: epr.TypeBulk, TxMax: DataPacketSize, RxMax: DataPacketSize},
		{Number: NotifyEndpoint, Type: epr.TypeInterrupt, TxMax: NotifyPacketSize},
	}
}

// HeaderDescriptor is the Header functional descriptor.
type HeaderDescriptor struct {
	CDCVersion uint16 // bcdCDC
}

// HeaderDescriptorSize is the size of the Header functional descriptor.
const HeaderDescriptorSize = 5

// MarshalTo writes the descriptor to buf.
func (d HeaderDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < HeaderDescriptorSize {
		return 0
	}
	buf[0] = HeaderDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeHeader
	binary.LittleEndian.PutUint16(buf[3:5], d.CDCVersion)
	return HeaderDescriptorSize
}

// CallManagementDescriptor is the Call Management functional descriptor.
type CallManagementDescriptor struct {
	Capabilities  uint8
	DataInterface uint8
}

// CallManagementDescriptorSize is the size of the Call Management
// functional descriptor.
const CallManagementDescriptorSize = 5

// Call management capability bits.
const (
	CallMgmtHandlesCallManagement = 1 << 0
	CallMgmtOverDataClass         = 1 << 1
)

// MarshalTo writes the descriptor to buf.
func (d CallManagementDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < CallManagementDescriptorSize {
		return 0
	}
	buf[0] = CallManagementDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeCallManagement
	buf[3] = d.Capabilities
	buf[4] = d.DataInterface
	return CallManagementDescriptorSize
}

// ACMDescriptor is the Abstract Control Management functional descriptor.
type ACMDescriptor struct {
	Capabilities uint8
}

// ACMDescriptorSize is the size of the ACM functional descriptor.
const ACMDescriptorSize = 4

// ACM capability bits.
const (
	ACMCapCommFeature = 1 << 0 // Set/Get/Clear Comm Feature
	ACMCapLineCoding  = 1 << 1 // Line coding and control line state
	ACMCapSendBreak   = 1 << 2
	ACMCapNetworkConn = 1 << 3
)

// MarshalTo writes the descriptor to buf.
func (d ACMDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < ACMDescriptorSize {
		return 0
	}
	buf[0] = ACMDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeACM
	buf[3] = d.Capabilities
	return ACMDescriptorSize
}

// UnionDescriptor is the Union functional descriptor with one
// subordinate interface.
type UnionDescriptor struct {
	ControlInterface     uint8
	SubordinateInterface uint8
}

// UnionDescriptorSize is the size of the Union functional descriptor.
const UnionDescriptorSize = 5

// MarshalTo writes the descriptor to buf.
func (d UnionDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < UnionDescriptorSize {
		return 0
	}
	buf[0] = UnionDescriptorSize
	buf[1] = device.DescriptorTypeCSInterface
	buf[2] = SubtypeUnion
	buf[3] = d.ControlInterface
	buf[4] = d.SubordinateInterface
	return UnionDescriptorSize
}
