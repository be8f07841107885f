// Package profile loads and writes device identity profiles.
//
// A profile names the vendor and product IDs, the string descriptors and the
// power attributes the simulated CDC-ACM device enumerates with. Profiles are
// YAML or TOML documents selected by file extension:
//
//	device:
//	  vendor_id: 0x25AE
//	  product_id: 0x24AB
//	  product: "Virtual COM Port"
//
// Fields left out or set to their zero value take the value from
// cdc.DefaultIdentity, except self_powered.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ardnew/pmausb/device"
	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/pkg"

	toml "github.com/pelletier/go-toml"
	"github.com/spf13/afero"
	yaml "gopkg.in/yaml.v3"
)

// Format is a profile serialization format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Profile is the on-disk profile document.
type Profile struct {
	Device cdc.Identity `yaml:"device" toml:"device"`
}

// Default returns the profile matching cdc.DefaultIdentity.
func Default() Profile {
	return Profile{Device: cdc.DefaultIdentity}
}

// FormatOf selects the format from the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("profile %s: unsupported extension: %w", path, pkg.ErrInvalidParameter)
	}
}

// ParseFormat normalizes a format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown profile format %q: %w", s, pkg.ErrInvalidParameter)
	}
}

// Decode parses a profile document. Unknown keys are rejected.
func Decode(data []byte, format Format) (Profile, error) {
	var p Profile
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Profile{}, fmt.Errorf("decode yaml profile: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data)).Strict(true)
		if err := dec.Decode(&p); err != nil {
			return Profile{}, fmt.Errorf("decode toml profile: %w", err)
		}
	default:
		return Profile{}, fmt.Errorf("unknown profile format %q: %w", format, pkg.ErrInvalidParameter)
	}
	p.fillDefaults()
	return p, p.Validate()
}

// Encode serializes p.
func Encode(p Profile, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatTOML:
		return toml.Marshal(p)
	default:
		return nil, fmt.Errorf("unknown profile format %q: %w", format, pkg.ErrInvalidParameter)
	}
}

func (p *Profile) fillDefaults() {
	d := cdc.DefaultIdentity
	id := &p.Device
	if id.VendorID == 0 {
		id.VendorID = d.VendorID
	}
	if id.ProductID == 0 {
		id.ProductID = d.ProductID
	}
	if id.DeviceVersion == 0 {
		id.DeviceVersion = d.DeviceVersion
	}
	if id.Manufacturer == "" {
		id.Manufacturer = d.Manufacturer
	}
	if id.Product == "" {
		id.Product = d.Product
	}
	if id.SerialNumber == "" {
		id.SerialNumber = d.SerialNumber
	}
	if id.MaxPower == 0 {
		id.MaxPower = d.MaxPower
	}
}

// Validate checks that the identity fits the descriptors.
func (p Profile) Validate() error {
	fields := []struct{ name, value string }{
		{"manufacturer", p.Device.Manufacturer},
		{"product", p.Device.Product},
		{"serial_number", p.Device.SerialNumber},
	}
	for _, f := range fields {
		if n := device.StringUnits(f.value); n > device.MaxStringUnits {
			return fmt.Errorf("profile %s: %d UTF-16 units exceeds %d: %w",
				f.name, n, device.MaxStringUnits, pkg.ErrInvalidParameter)
		}
	}
	if p.Device.MaxPower > 250 {
		return fmt.Errorf("profile max_power: %d exceeds 250 (500 mA): %w",
			p.Device.MaxPower, pkg.ErrInvalidParameter)
	}
	return nil
}

// Load reads the profile at path from fs.
func Load(fs afero.Fs, path string) (Profile, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Profile{}, err
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	p, err := Decode(data, format)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: %w", path, err)
	}
	pkg.LogDebug(pkg.ComponentCDC, "profile loaded",
		"path", path,
		"vid", fmt.Sprintf("%04x", p.Device.VendorID),
		"pid", fmt.Sprintf("%04x", p.Device.ProductID))
	return p, nil
}

// Save writes p to path on fs in the format given by its extension.
// An existing file is only replaced when force is set.
func Save(fs afero.Fs, path string, p Profile, force bool) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if !force {
		if ok, _ := afero.Exists(fs, path); ok {
			return fmt.Errorf("profile %s exists; use --force to overwrite", path)
		}
	}
	data, err := Encode(p, format)
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}
