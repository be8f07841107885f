package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/pmausb/pkg"
)

func TestDeviceDescriptorMarshalTo(t *testing.T) {
	desc := &DeviceDescriptor{
		USBVersion:        0x0200,
		DeviceClass:       ClassCDC,
		MaxPacketSize0:    64,
		VendorID:          0xCAFE,
		ProductID:         0xBABE,
		DeviceVersion:     0x0100,
		ManufacturerIndex: 1,
		ProductIndex:      2,
		SerialNumberIndex: 3,
		NumConfigurations: 1,
	}

	var buf [DeviceDescriptorSize]byte
	require.Equal(t, DeviceDescriptorSize, desc.MarshalTo(buf[:]))
	assert.Equal(t, []byte{
		18, DescriptorTypeDevice, 0x00, 0x02, ClassCDC, 0, 0, 64,
		0xFE, 0xCA, 0xBE, 0xBA, 0x00, 0x01, 1, 2, 3, 1,
	}, buf[:])
	assert.Zero(t, desc.MarshalTo(buf[:17]))
}

func TestConfigurationDescriptorMarshalTo(t *testing.T) {
	desc := &ConfigurationDescriptor{
		TotalLength:        0x0143,
		NumInterfaces:      2,
		ConfigurationValue: 1,
		Attributes:         ConfigAttrBusPowered | ConfigAttrRemoteWakeup,
		MaxPower:           50,
	}
	var buf [ConfigurationDescriptorSize]byte
	require.Equal(t, ConfigurationDescriptorSize, desc.MarshalTo(buf[:]))
	assert.Equal(t, []byte{9, DescriptorTypeConfiguration, 0x43, 0x01, 2, 1, 0, 0xA0, 50}, buf[:])
	assert.Zero(t, desc.MarshalTo(buf[:8]))
}

func TestInterfaceAndEndpointDescriptorMarshalTo(t *testing.T) {
	var buf [InterfaceDescriptorSize]byte
	iface := &InterfaceDescriptor{InterfaceNumber: 1, NumEndpoints: 2, InterfaceClass: ClassCDCData}
	require.Equal(t, InterfaceDescriptorSize, iface.MarshalTo(buf[:]))
	assert.Equal(t, []byte{9, DescriptorTypeInterface, 1, 0, 2, ClassCDCData, 0, 0, 0}, buf[:])

	ep := &EndpointDescriptor{
		EndpointAddress: 0x81,
		Attributes:      TransferTypeBulk,
		MaxPacketSize:   64,
	}
	require.Equal(t, EndpointDescriptorSize, ep.MarshalTo(buf[:]))
	assert.Equal(t, []byte{7, DescriptorTypeEndpoint, 0x81, TransferTypeBulk, 64, 0, 0}, buf[:7])
	assert.Zero(t, ep.MarshalTo(buf[:6]))
}

func TestStringDescriptorTo(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"empty", "", []byte{2, DescriptorTypeString}},
		{"ascii", "Hi", []byte{6, DescriptorTypeString, 'H', 0, 'i', 0}},
		{"utf16", "é€", []byte{6, DescriptorTypeString, 0xE9, 0x00, 0xAC, 0x20}},
		{"surrogate pair", "\U0001F50C!", []byte{8, DescriptorTypeString, 0x3D, 0xD8, 0x0C, 0xDD, '!', 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 64)
			n := StringDescriptorTo(buf, tt.in)
			assert.Equal(t, tt.want, buf[:n])
		})
	}

	assert.Zero(t, StringDescriptorTo(make([]byte, 5), "Hi"))
}

func TestStringDescriptorToTruncates(t *testing.T) {
	buf := make([]byte, 512)
	n := StringDescriptorTo(buf, strings.Repeat("x", 200))
	assert.Equal(t, 254, n)
	assert.Equal(t, byte(254), buf[0])
}

func TestStringDescriptorToKeepsPairs(t *testing.T) {
	// 125 single units leave room for one more, not a pair.
	s := strings.Repeat("x", MaxStringUnits-1) + "\U0001F50C"
	assert.Equal(t, MaxStringUnits+1, StringUnits(s))

	buf := make([]byte, 512)
	n := StringDescriptorTo(buf, s)
	assert.Equal(t, 2+(MaxStringUnits-1)*2, n)
	assert.Equal(t, []byte{'x', 0}, buf[n-2:n])
}

func TestLanguageDescriptorTo(t *testing.T) {
	var buf [6]byte
	n := LanguageDescriptorTo(buf[:], LangIDUSEnglish, 0x0407)
	assert.Equal(t, []byte{6, DescriptorTypeString, 0x09, 0x04, 0x07, 0x04}, buf[:n])
	assert.Zero(t, LanguageDescriptorTo(buf[:3], LangIDUSEnglish))
}

func TestDescriptorsValidate(t *testing.T) {
	good := testDescriptors(64)
	require.NoError(t, good.Validate())

	tests := []struct {
		name   string
		mutate func(d *Descriptors)
	}{
		{"short device", func(d *Descriptors) { d.Device = d.Device[:17] }},
		{"device type", func(d *Descriptors) { d.Device[1] = DescriptorTypeConfiguration }},
		{"short configuration", func(d *Descriptors) { d.Configuration = d.Configuration[:8] }},
		{"configuration type", func(d *Descriptors) { d.Configuration[1] = DescriptorTypeDevice }},
		{"total length", func(d *Descriptors) { d.Configuration[2]++ }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := testDescriptors(64)
			tt.mutate(&d)
			assert.ErrorIs(t, d.Validate(), pkg.ErrInvalidParameter)
		})
	}
}

func TestDescriptorsLookup(t *testing.T) {
	d := testDescriptors(64)

	got, err := d.Lookup(DescriptorTypeDevice, 0)
	require.NoError(t, err)
	assert.Equal(t, d.Device, got)

	got, err = d.Lookup(DescriptorTypeConfiguration, 0)
	require.NoError(t, err)
	assert.Equal(t, d.Configuration, got)

	got, err = d.Lookup(DescriptorTypeString, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, DescriptorTypeString, 0x09, 0x04}, got)

	_, err = d.Lookup(DescriptorTypeConfiguration, 1)
	assert.ErrorIs(t, err, pkg.ErrInvalidRequest)
	_, err = d.Lookup(DescriptorTypeString, 9)
	assert.ErrorIs(t, err, pkg.ErrInvalidRequest)
	_, err = d.Lookup(DescriptorTypeDeviceQualifier, 0)
	assert.ErrorIs(t, err, pkg.ErrNotSupported)

	assert.Equal(t, uint8(64), d.MaxPacketSize0())
	assert.Equal(t, uint8(ConfigurationValue), d.ConfigurationValue())
	assert.Equal(t, uint8(1), d.NumInterfaces())
}
