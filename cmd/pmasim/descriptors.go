package main

import (
	"encoding/hex"
	"fmt"

	"github.com/ardnew/pmausb/device/class/cdc"
)

// DescriptorsCmd prints the descriptor set authored for the profile.
type DescriptorsCmd struct {
	Format string `help:"Output format" enum:"dump,hex" default:"dump"`
}

// Run is called by kong when the descriptors command is executed.
func (d *DescriptorsCmd) Run(cli *CLI, env *Env) error {
	id, err := cli.identity(env)
	if err != nil {
		return err
	}
	desc := cdc.Descriptors(id)
	if err := desc.Validate(); err != nil {
		return err
	}

	fmt.Fprintf(env.Stdout, "id %s\n", cli.describeID(env, id.VendorID, id.ProductID))

	write := func(name string, b []byte) {
		if d.Format == "hex" {
			fmt.Fprintf(env.Stdout, "%s %s\n", name, hex.EncodeToString(b))
			return
		}
		fmt.Fprintf(env.Stdout, "%s (%d bytes)\n", name, len(b))
		dumper := hex.Dumper(env.Stdout)
		_, _ = dumper.Write(b)
		_ = dumper.Close()
	}
	write("device", desc.Device)
	write("configuration", desc.Configuration)
	for i, s := range desc.Strings {
		if s == nil {
			continue
		}
		write(fmt.Sprintf("string[%d]", i), s)
	}
	return nil
}
