// Package prof captures runtime profiles of a pmasim session.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/pmasim
//
// Without the tag, Start returns a Session whose Stop does nothing, so
// callers keep their profiling hooks in place at no cost.
//
// A Session streams the CPU profile while it runs and writes snapshot
// profiles when stopped:
//
//	s, err := prof.Start(afero.NewOsFs(), prof.Options{
//		CPU:       "cpu.prof",
//		Snapshots: map[prof.Profile]string{prof.ProfileHeap: "heap.prof"},
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
//
// Options.HTTP additionally serves /debug/pprof/ on the given address for
// the lifetime of the session.
package prof
