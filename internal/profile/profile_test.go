package profile

import (
	"strings"
	"testing"

	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/pkg"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlProfile = `device:
  vendor_id: 0x1209
  product_id: 0x0001
  manufacturer: "Acme"
  product: "Bench Serial"
  serial_number: "A1B2"
  max_power: 100
  self_powered: true
`

const tomlProfile = `[device]
vendor_id = 0x1209
product_id = 0x0001
manufacturer = "Acme"
product = "Bench Serial"
serial_number = "A1B2"
max_power = 100
self_powered = true
`

func wantBench() cdc.Identity {
	return cdc.Identity{
		VendorID:      0x1209,
		ProductID:     0x0001,
		DeviceVersion: cdc.DefaultIdentity.DeviceVersion,
		Manufacturer:  "Acme",
		Product:       "Bench Serial",
		SerialNumber:  "A1B2",
		MaxPower:      100,
		SelfPowered:   true,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"yaml", "/etc/pmasim/bench.yaml", yamlProfile},
		{"yml", "/etc/pmasim/bench.yml", yamlProfile},
		{"toml", "/etc/pmasim/bench.toml", tomlProfile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, tt.path, []byte(tt.body), 0o644))

			p, err := Load(fs, tt.path)
			require.NoError(t, err)
			assert.Equal(t, wantBench(), p.Device)
		})
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "p.yaml", []byte("device:\n  product: Probe\n"), 0o644))

	p, err := Load(fs, "p.yaml")
	require.NoError(t, err)

	want := cdc.DefaultIdentity
	want.Product = "Probe"
	assert.Equal(t, want, p.Device)
}

func TestLoadEmptyDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "empty.yaml", nil, 0o644))

	p, err := Load(fs, "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"unknown.yaml": "device:\n  colour: red\n",
		"unknown.toml": "[device]\ncolour = \"red\"\n",
		"bad.yaml":     "device: [\n",
		"range.toml":   "[device]\nvendor_id = 70000\n",
		"long.yaml":    "device:\n  product: " + strings.Repeat("x", 127) + "\n",
		"wide.yaml":    "device:\n  product: " + strings.Repeat("\U0001F50C", 64) + "\n",
		"power.yaml":   "device:\n  max_power: 251\n",
		"profile.json": "{}",
	}
	for name, body := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(body), 0o644))
	}

	for name := range files {
		t.Run(name, func(t *testing.T) {
			_, err := Load(fs, name)
			assert.Error(t, err)
		})
	}

	t.Run("missing", func(t *testing.T) {
		_, err := Load(fs, "missing.yaml")
		assert.Error(t, err)
	})
}

func TestValidationErrorsWrapInvalidParameter(t *testing.T) {
	_, err := Decode([]byte("device:\n  max_power: 255\n"), FormatYAML)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)

	_, err = FormatOf("profile.ini")
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, path := range []string{"out/profile.yaml", "out/profile.toml"} {
		t.Run(path, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			in := Profile{Device: wantBench()}

			require.NoError(t, Save(fs, path, in, false))
			out, err := Load(fs, path)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestSaveRefusesOverwrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, Save(fs, "p.toml", Default(), false))
	assert.Error(t, Save(fs, "p.toml", Default(), false))
	assert.NoError(t, Save(fs, "p.toml", Default(), true))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"yaml": FormatYAML, "YML": FormatYAML, "toml": FormatTOML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("json")
	assert.Error(t, err)
}
