//go:build !profile

package prof

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubSessionIsInert(t *testing.T) {
	require.False(t, Enabled)
	fs := afero.NewMemMapFs()

	s, err := Start(fs, Options{CPU: "cpu.prof", HTTP: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.Empty(t, s.Addr())
	assert.NoError(t, s.Stop())

	ok, err := afero.Exists(fs, "cpu.prof")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOptionsRequested(t *testing.T) {
	assert.False(t, Options{}.Requested())
	assert.False(t, Options{BlockRate: 1}.Requested())
	assert.True(t, Options{CPU: "x"}.Requested())
	assert.True(t, Options{Snapshots: map[Profile]string{ProfileHeap: "h"}}.Requested())
	assert.True(t, Options{HTTP: ":0"}.Requested())
}
