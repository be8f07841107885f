//go:build !profile

package prof

import (
	"github.com/ardnew/pmausb/pkg"

	"github.com/spf13/afero"
)

// Enabled reports whether profiling is compiled in.
const Enabled = false

// Session does nothing when built without the "profile" tag.
type Session struct{}

// Start returns an inert session. Requested output is reported once as a
// warning.
func Start(_ afero.Fs, opts Options) (*Session, error) {
	if opts.Requested() {
		pkg.LogWarn(pkg.ComponentSim, "profiling requested but not compiled in; rebuild with -tags profile")
	}
	return &Session{}, nil
}

// Addr always returns "".
func (*Session) Addr() string { return "" }

// Stop does nothing.
func (*Session) Stop() error { return nil }
