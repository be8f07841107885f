package prof

import "errors"

// Profiling errors.
var (
	// ErrCPUProfileActive indicates another session owns the CPU profile.
	ErrCPUProfileActive = errors.New("cpu profile already active")

	// ErrInvalidProfile indicates an unknown or non-snapshot profile.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Profile names a runtime/pprof profile.
type Profile string

// Profile names.
const (
	ProfileCPU          Profile = "cpu"
	ProfileHeap         Profile = "heap"
	ProfileAllocs       Profile = "allocs"
	ProfileGoroutine    Profile = "goroutine"
	ProfileThreadCreate Profile = "threadcreate"
	ProfileBlock        Profile = "block"
	ProfileMutex        Profile = "mutex"
)

func (p Profile) String() string {
	return string(p)
}

// Options selects what a Session records. Empty fields are skipped.
type Options struct {
	CPU       string             // CPU profile destination
	Snapshots map[Profile]string // Snapshot profiles written by Stop
	HTTP      string             // Listen address for /debug/pprof/

	BlockRate     int // runtime.SetBlockProfileRate while the session runs
	MutexFraction int // runtime.SetMutexProfileFraction while the session runs
}

// Requested reports whether any output was asked for.
func (o Options) Requested() bool {
	return o.CPU != "" || len(o.Snapshots) > 0 || o.HTTP != ""
}
