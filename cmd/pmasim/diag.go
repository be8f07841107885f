package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ardnew/pmausb/device/diag"

	"github.com/spf13/afero"
)

// DiagCmd groups diagnostic log subcommands.
type DiagCmd struct {
	Dump DiagDump `cmd:"" help:"Run an enumeration and echo, then print or save the diagnostic log"`
	Show DiagShow `cmd:"" help:"Print a diagnostic log saved in CBOR form"`
}

// DiagDump captures the diagnostic log of a simulated session.
type DiagDump struct {
	Address uint8  `help:"Device address assigned by SET_ADDRESS" default:"7"`
	Message string `help:"Payload echoed after enumeration; empty to skip" default:"diag"`
	Format  string `help:"Output format" enum:"text,cbor" default:"text"`
	Output  string `help:"Destination file; required for cbor on a terminal" short:"o"`
	Force   bool   `help:"Overwrite an existing output file"`
}

// Run is called by kong when the diag dump command is executed.
func (d *DiagDump) Run(logger *slog.Logger, cli *CLI, env *Env) error {
	if d.Format == "cbor" && d.Output == "" && env.Terminal {
		return errors.New("refusing to write cbor to a terminal; use --output")
	}
	id, err := cli.identity(env)
	if err != nil {
		return err
	}
	b, err := newBench(logger, id)
	if err != nil {
		return err
	}
	if _, err := b.enumerate(d.Address); err != nil {
		return err
	}
	if d.Message != "" {
		if _, err := b.echo([]byte(d.Message)); err != nil {
			return err
		}
	}

	log := b.drv.Diag()
	var data []byte
	switch d.Format {
	case "cbor":
		if data, err = log.MarshalCBOR(); err != nil {
			return err
		}
	default:
		var buf bytes.Buffer
		if err := log.WriteText(&buf); err != nil {
			return err
		}
		data = buf.Bytes()
	}

	if d.Output == "" {
		_, err := env.Stdout.Write(data)
		return err
	}
	if !d.Force {
		if ok, _ := afero.Exists(env.Fs, d.Output); ok {
			return fmt.Errorf("%s exists; use --force to overwrite", d.Output)
		}
	}
	if err := env.Fs.MkdirAll(filepath.Dir(d.Output), 0o755); err != nil {
		return err
	}
	if err := afero.WriteFile(env.Fs, d.Output, data, 0o644); err != nil {
		return err
	}
	logger.Info("diagnostic log saved", "file", d.Output, "format", d.Format, "entries", log.Len())
	return nil
}

// DiagShow decodes a CBOR diagnostic log.
type DiagShow struct {
	File string `arg:"" help:"CBOR file written by diag dump"`
}

// Run is called by kong when the diag show command is executed.
func (d *DiagShow) Run(env *Env) error {
	data, err := afero.ReadFile(env.Fs, d.File)
	if err != nil {
		return err
	}
	entries, err := diag.Decode(data)
	if err != nil {
		return err
	}
	for i, e := range entries {
		fmt.Fprintf(env.Stdout, "%2d %s\n", i, e)
	}
	return nil
}
