// Command pmasim drives the pmausb CDC-ACM driver against a simulated
// peripheral and host. It enumerates the device, exchanges serial data and
// exposes the driver's descriptors and diagnostic log.
package main

import (
	"os"

	"github.com/ardnew/pmausb/internal/configpaths"
	"github.com/ardnew/pmausb/internal/logging"
	"github.com/ardnew/pmausb/pkg"
	"github.com/ardnew/pmausb/pkg/prof"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("pmasim"),
		kong.Description("Simulated USB full-speed CDC-ACM device"),
		kong.UsageOnError(),
	}
	return kong.New(cli, append(base, options...)...)
}

func main() {
	exit := 0
	defer func() { os.Exit(exit) }()

	userCfg := configpaths.FindUserConfig(os.Args[1:])
	jsonPaths, yamlPaths, tomlPaths := configpaths.CandidatePaths(userCfg)

	var cli CLI
	parser, err := newParser(&cli,
		// Flags and env override config values.
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger, closers, err := logging.Setup(logging.Options{
		Level:  cli.Log.Level,
		Format: cli.Log.Format,
		File:   cli.Log.File,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		exit = 2
		return
	}
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	pkg.SetLogger(logger)

	fs := afero.NewOsFs()
	session, err := prof.Start(fs, cli.Prof.options())
	if err != nil {
		logger.Error("failed to start profiling", "error", err)
		exit = 2
		return
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Error("failed to write profiles", "error", err)
		}
	}()

	ctx.Bind(logger, &cli, &Env{
		Fs:       fs,
		Stdout:   os.Stdout,
		Terminal: term.IsTerminal(int(os.Stdout.Fd())),
	})
	if err := ctx.Run(); err != nil {
		logger.Error("command failed", "command", ctx.Command(), "error", err)
		exit = 1
	}
}
