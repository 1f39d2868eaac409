package runner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/wasitest/environment"
)

func TestScratch(t *testing.T) {
	parent := t.TempDir()

	s, err := newScratch(parent, environment.NewDirs("/foo", "/", "/bar"))
	require.NoError(t, err)
	require.Equal(t, []string{"/", "/bar", "/foo"}, s.guestPaths)
	require.Equal(t, 3, len(s.hostPaths))
	for _, hostPath := range s.hostPaths {
		require.Equal(t, parent, filepath.Dir(hostPath))
		require.DirExists(t, hostPath)
	}

	// The program may leave files behind.
	require.NoError(t, os.WriteFile(filepath.Join(s.hostPaths[0], "junk"), []byte("x"), 0o600))

	require.NoError(t, s.release())
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestScratch_noDirs(t *testing.T) {
	s, err := newScratch(t.TempDir(), nil)
	require.NoError(t, err)
	require.Empty(t, s.hostPaths)
	require.NotNil(t, s.fsConfig())
	require.NoError(t, s.release())
}

func TestScratch_parentMissing(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "missing")
	_, err := newScratch(parent, environment.NewDirs("/"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
