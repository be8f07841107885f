package main

import (
	"fmt"
	"io"

	"github.com/ardnew/pmausb/device/class/cdc"
	"github.com/ardnew/pmausb/internal/profile"
	"github.com/ardnew/pmausb/pkg"
	"github.com/ardnew/pmausb/pkg/prof"
	"github.com/ardnew/pmausb/pkg/usbid"

	"github.com/spf13/afero"
)

// CLI is the pmasim command line.
type CLI struct {
	Log     LogFlags  `embed:"" prefix:"log."`
	Config  string    `help:"Configuration file (JSON, YAML or TOML)" env:"PMASIM_CONFIG"`
	Profile string    `help:"Device identity profile (YAML or TOML)" env:"PMASIM_PROFILE" short:"p"`
	USBIDs  string    `name:"usb-ids" help:"usb.ids database used to name vendor and product IDs" env:"PMASIM_USB_IDS"`
	Prof    ProfFlags `embed:"" prefix:"prof."`

	Run         RunCmd         `cmd:"" default:"withargs" help:"Enumerate a simulated CDC-ACM device and echo data through it"`
	Descriptors DescriptorsCmd `cmd:"" help:"Print the descriptors the device serves"`
	Diag        DiagCmd        `cmd:"" help:"Inspect the driver's diagnostic log"`
	ProfileCmd  ProfileCmd     `cmd:"" name:"profile" help:"Manage device identity profiles"`
}

// LogFlags configures the process logger.
type LogFlags struct {
	Level  string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"PMASIM_LOG_LEVEL"`
	Format string `help:"Log format" enum:"text,json" default:"text" env:"PMASIM_LOG_FORMAT"`
	File   string `help:"Write logs to a rotated file instead of stdout" env:"PMASIM_LOG_FILE"`
}

// ProfFlags selects runtime profiles. They take effect only in binaries
// built with -tags profile.
type ProfFlags struct {
	CPU  string `help:"Write a CPU profile"`
	Heap string `help:"Write a heap profile on exit"`
	HTTP string `help:"Serve /debug/pprof/ on this address"`
}

func (f ProfFlags) options() prof.Options {
	opts := prof.Options{CPU: f.CPU, HTTP: f.HTTP}
	if f.Heap != "" {
		opts.Snapshots = map[prof.Profile]string{prof.ProfileHeap: f.Heap}
	}
	return opts
}

// Env carries the process resources commands write through.
type Env struct {
	Fs     afero.Fs
	Stdout io.Writer

	// Terminal is set when Stdout is an interactive terminal.
	Terminal bool
}

// identity resolves the device identity from the --profile flag.
func (c *CLI) identity(env *Env) (cdc.Identity, error) {
	if c.Profile == "" {
		return cdc.DefaultIdentity, nil
	}
	p, err := profile.Load(env.Fs, c.Profile)
	if err != nil {
		return cdc.Identity{}, fmt.Errorf("load profile: %w", err)
	}
	return p.Device, nil
}

// describeID names vid:pid from the usb.ids database. A missing database
// leaves the bare IDs.
func (c *CLI) describeID(env *Env, vid, pid uint16) string {
	db := usbid.New()
	var err error
	if c.USBIDs != "" {
		_, err = db.Load(env.Fs, c.USBIDs)
	} else {
		_, err = db.Load(env.Fs)
	}
	if err != nil {
		pkg.LogDebug(pkg.ComponentSim, "usb id lookup unavailable", "error", err)
	}
	return db.Describe(vid, pid)
}
