package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/device/diag"
	"github.com/ardnew/pmausb/internal/profile"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute parses args and runs the selected command against fs.
func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	return executeEnv(t, &Env{Fs: fs}, args...)
}

func executeEnv(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := newParser(&cli, kong.Exit(func(int) { t.Fatal("kong exited") }))
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)

	var out bytes.Buffer
	env.Stdout = &out
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx.Bind(logger, &cli, env)
	err = ctx.Run()
	return out.String(), err
}

func TestRunDefaultIdentity(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "run", "--notify")
	require.NoError(t, err)

	assert.Contains(t, out, `enumerated pmausb "Virtual COM Port" (00000001) at address 7`)
	assert.Contains(t, out, "port open: 115200 8N1 dtr=true rts=true")
	assert.Contains(t, out, `echo 1: 13 bytes "hello, pmausb"`)
	assert.Contains(t, out, "serial state: a1 20 00 00 00 00 02 00 03 00")
}

func TestRunMultiPacketMessage(t *testing.T) {
	msg := string(bytes.Repeat([]byte("0123456789abcdef"), 9)) // 144 bytes
	out, err := execute(t, afero.NewMemMapFs(),
		"run", "--message", msg, "--repeat", "2", "--baud", "9600", "--parity", "even", "--data-bits", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "port open: 9600 7E1")
	assert.Contains(t, out, "echo 1: 144 bytes")
	assert.Contains(t, out, "echo 2: 144 bytes")
}

func TestRunExactPacketMessage(t *testing.T) {
	msg := string(bytes.Repeat([]byte("x"), cdc.DataPacketSize))
	out, err := execute(t, afero.NewMemMapFs(), "run", "--message", msg)
	require.NoError(t, err)
	assert.Contains(t, out, "echo 1: 64 bytes")
}

func TestRunRejectsParameters(t *testing.T) {
	_, err := execute(t, afero.NewMemMapFs(), "run", "--address", "0")
	assert.Error(t, err)

	_, err = execute(t, afero.NewMemMapFs(), "run", "--address", "128")
	assert.Error(t, err)

	_, err = execute(t, afero.NewMemMapFs(), "run", "--data-bits", "9")
	assert.Error(t, err)
}

func TestRunWithProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	body := "[device]\nvendor_id = 0x1209\nproduct_id = 0x5678\nproduct = \"Lab Port\"\nserial_number = \"L1\"\n"
	require.NoError(t, afero.WriteFile(fs, "/lab.toml", []byte(body), 0o644))

	out, err := execute(t, fs, "--profile", "/lab.toml", "run")
	require.NoError(t, err)
	assert.Contains(t, out, `enumerated pmausb "Lab Port" (L1) at address 7`)
}

func TestRunMissingProfile(t *testing.T) {
	_, err := execute(t, afero.NewMemMapFs(), "--profile", "/none.yaml", "run")
	assert.Error(t, err)
}

func TestDescriptors(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "descriptors", "--format", "hex")
	require.NoError(t, err)

	assert.Contains(t, out, "device 1201000202000040ae25ab24000101020301\n")
	assert.Contains(t, out, "configuration 090243000201008032")
	assert.Contains(t, out, "string[0] 04030904\n")
	assert.Contains(t, out, "string[2] ")

	out, err = execute(t, afero.NewMemMapFs(), "descriptors")
	require.NoError(t, err)
	assert.Contains(t, out, "device (18 bytes)")
	assert.Contains(t, out, "configuration (67 bytes)")
}

func TestDiagDumpText(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "diag", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset")
	assert.Contains(t, out, "SetConfiguration")
}

func TestDiagDumpCBORRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := execute(t, fs, "diag", "dump", "--format", "cbor", "-o", "/out/diag.cbor")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out/diag.cbor")
	require.NoError(t, err)
	entries, err := diag.Decode(data)
	require.NoError(t, err)
	assert.Len(t, entries, diag.Capacity)

	out, err := execute(t, fs, "diag", "show", "/out/diag.cbor")
	require.NoError(t, err)
	assert.Contains(t, out, "DataTx")

	_, err = execute(t, fs, "diag", "dump", "--format", "cbor", "-o", "/out/diag.cbor")
	assert.Error(t, err)
	_, err = execute(t, fs, "diag", "dump", "--format", "cbor", "-o", "/out/diag.cbor", "--force")
	assert.NoError(t, err)
}

func TestDiagDumpCBORStdout(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "diag", "dump", "--format", "cbor")
	require.NoError(t, err)
	entries, err := diag.Decode([]byte(out))
	require.NoError(t, err)
	assert.Len(t, entries, diag.Capacity)

	_, err = executeEnv(t, &Env{Fs: afero.NewMemMapFs(), Terminal: true}, "diag", "dump", "--format", "cbor")
	assert.Error(t, err)
}

func TestProfileInit(t *testing.T) {
	for _, format := range []string{"yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			out, err := execute(t, fs, "profile", "init", "--format", format)
			require.NoError(t, err)
			assert.Equal(t, "pmasim-profile."+format+"\n", out)

			p, err := profile.Load(fs, "pmasim-profile."+format)
			require.NoError(t, err)
			assert.Equal(t, profile.Default(), p)

			_, err = execute(t, fs, "profile", "init", "--format", format)
			assert.Error(t, err)
		})
	}
}

func TestProfileInitCopiesLoadedProfile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in.yaml", []byte("device:\n  product: Copied\n"), 0o644))

	_, err := execute(t, fs, "--profile", "/in.yaml", "profile", "init", "-o", "/copy.toml")
	require.NoError(t, err)

	p, err := profile.Load(fs, "/copy.toml")
	require.NoError(t, err)
	assert.Equal(t, "Copied", p.Device.Product)
}

func TestDescriptorsNamesIDs(t *testing.T) {
	fs := afero.NewMemMapFs()
	ids := "25ae  Example Vendor\n\t24ab  Example Serial\n"
	require.NoError(t, afero.WriteFile(fs, "/share/usb.ids", []byte(ids), 0o644))

	out, err := execute(t, fs, "--usb-ids", "/share/usb.ids", "descriptors", "--format", "hex")
	require.NoError(t, err)
	assert.Contains(t, out, "id 25ae:24ab Example Vendor Example Serial\n")

	out, err = execute(t, afero.NewMemMapFs(), "run")
	require.NoError(t, err)
	assert.Contains(t, out, "id 25ae:24ab\n")
}
