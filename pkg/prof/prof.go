//go:build profile

package prof

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"path/filepath"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"

	"github.com/ardnew/pmausb/pkg"

	"github.com/spf13/afero"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

var (
	cpuMutex  sync.Mutex
	cpuActive bool
)

// Session is an active profiling session.
type Session struct {
	fs   afero.Fs
	opts Options
	cpu  afero.File
	srv  *http.Server
	addr string

	prevMutex int
}

// Start begins the profiles named in opts, writing files through fs.
func Start(fs afero.Fs, opts Options) (*Session, error) {
	for p := range opts.Snapshots {
		if p == ProfileCPU || rpprof.Lookup(string(p)) == nil {
			return nil, fmt.Errorf("snapshot %q: %w", p, ErrInvalidProfile)
		}
	}
	s := &Session{fs: fs, opts: opts}

	if opts.CPU != "" {
		if err := s.startCPU(); err != nil {
			return nil, err
		}
	}
	if opts.HTTP != "" {
		if err := s.serve(); err != nil {
			s.stopCPU()
			return nil, err
		}
	}
	if opts.BlockRate != 0 {
		runtime.SetBlockProfileRate(opts.BlockRate)
	}
	if opts.MutexFraction != 0 {
		s.prevMutex = runtime.SetMutexProfileFraction(opts.MutexFraction)
	}
	return s, nil
}

func (s *Session) startCPU() error {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	if cpuActive {
		return ErrCPUProfileActive
	}
	f, err := s.create(s.opts.CPU)
	if err != nil {
		return err
	}
	if err := rpprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	s.cpu = f
	cpuActive = true
	return nil
}

func (s *Session) stopCPU() error {
	if s.cpu == nil {
		return nil
	}
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	rpprof.StopCPUProfile()
	cpuActive = false
	err := s.cpu.Close()
	s.cpu = nil
	return err
}

func (s *Session) serve() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", s.opts.HTTP)
	if err != nil {
		return fmt.Errorf("pprof listener: %w", err)
	}
	s.addr = ln.Addr().String()
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pkg.LogWarn(pkg.ComponentSim, "pprof server stopped", "error", err)
		}
	}()
	pkg.LogInfo(pkg.ComponentSim, "pprof listening", "addr", s.addr)
	return nil
}

// Addr returns the pprof HTTP address, or "" when not serving.
func (s *Session) Addr() string {
	return s.addr
}

// Stop ends the CPU profile, writes the snapshots and closes the HTTP
// server. The first error is returned; every step is attempted.
func (s *Session) Stop() error {
	errs := []error{s.stopCPU()}
	for p, path := range s.opts.Snapshots {
		errs = append(errs, s.writeSnapshot(p, path))
	}
	if s.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		errs = append(errs, s.srv.Shutdown(ctx))
		cancel()
		s.srv = nil
	}
	if s.opts.BlockRate != 0 {
		runtime.SetBlockProfileRate(0)
	}
	if s.opts.MutexFraction != 0 {
		runtime.SetMutexProfileFraction(s.prevMutex)
	}
	return errors.Join(errs...)
}

func (s *Session) create(path string) (afero.File, error) {
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return s.fs.Create(path)
}

func (s *Session) writeSnapshot(p Profile, path string) error {
	f, err := s.create(path)
	if err != nil {
		return err
	}
	if err := rpprof.Lookup(string(p)).WriteTo(f, 0); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s profile: %w", p, err)
	}
	return f.Close()
}
