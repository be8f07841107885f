package main

import (
	"fmt"
	"log/slog"

	"github.com/ardnew/pmausb/internal/profile"
)

// ProfileCmd groups profile subcommands.
type ProfileCmd struct {
	Init ProfileInit `cmd:"" help:"Write a device identity profile template"`
}

// ProfileInit writes the default profile, or the one named by --profile,
// to a new file.
type ProfileInit struct {
	Format string `help:"Output format" enum:"yaml,toml" default:"yaml"`
	Output string `help:"Destination file (defaults to pmasim-profile.<format>)" short:"o"`
	Force  bool   `help:"Overwrite if the file already exists"`
}

// Run is called by kong when the profile init command is executed.
func (p *ProfileInit) Run(logger *slog.Logger, cli *CLI, env *Env) error {
	format, err := profile.ParseFormat(p.Format)
	if err != nil {
		return err
	}
	dest := p.Output
	if dest == "" {
		dest = "pmasim-profile." + string(format)
	}
	id, err := cli.identity(env)
	if err != nil {
		return err
	}
	if err := profile.Save(env.Fs, dest, profile.Profile{Device: id}, p.Force); err != nil {
		return err
	}
	logger.Info("profile written", "file", dest)
	fmt.Fprintln(env.Stdout, dest)
	return nil
}
