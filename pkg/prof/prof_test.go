//go:build profile

package prof

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionWritesProfiles(t *testing.T) {
	require.True(t, Enabled)
	fs := afero.NewMemMapFs()

	s, err := Start(fs, Options{
		CPU:       "/prof/cpu.prof",
		Snapshots: map[Profile]string{ProfileHeap: "/prof/heap.prof", ProfileGoroutine: "/prof/g.prof"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	for _, path := range []string{"/prof/cpu.prof", "/prof/heap.prof", "/prof/g.prof"} {
		info, err := fs.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestSessionCPUExclusive(t *testing.T) {
	fs := afero.NewMemMapFs()
	s, err := Start(fs, Options{CPU: "a.prof"})
	require.NoError(t, err)
	defer s.Stop()

	_, err = Start(fs, Options{CPU: "b.prof"})
	assert.ErrorIs(t, err, ErrCPUProfileActive)
}

func TestSessionRejectsSnapshot(t *testing.T) {
	for _, p := range []Profile{ProfileCPU, "bogus"} {
		_, err := Start(afero.NewMemMapFs(), Options{Snapshots: map[Profile]string{p: "x"}})
		assert.ErrorIs(t, err, ErrInvalidProfile, string(p))
	}
}

func TestSessionHTTP(t *testing.T) {
	s, err := Start(afero.NewMemMapFs(), Options{HTTP: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.NotEmpty(t, s.Addr())
	assert.NoError(t, s.Stop())
}
