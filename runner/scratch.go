package runner

import (
	"fmt"
	"os"

	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"

	"github.com/tetratelabs/wasitest/environment"
)

// scratch owns the host directories backing the pre-opened guest paths of one
// run. Mounts are in lexical order of the guest path, so the first one is
// file descriptor 3.
type scratch struct {
	guestPaths []string
	hostPaths  []string
}

// newScratch creates one fresh directory under parent for every guest path.
// An empty parent means os.TempDir.
func newScratch(parent string, dirs environment.Dirs) (*scratch, error) {
	s := &scratch{}
	for _, guestPath := range dirs.Sorted() {
		hostPath, err := os.MkdirTemp(parent, "wasitest-")
		if err != nil {
			err = fmt.Errorf("create directory for %q: %w", guestPath, err)
			return nil, multierr.Append(err, s.release())
		}
		s.guestPaths = append(s.guestPaths, guestPath)
		s.hostPaths = append(s.hostPaths, hostPath)
	}
	return s, nil
}

func (s *scratch) fsConfig() wazero.FSConfig {
	config := wazero.NewFSConfig()
	for i, guestPath := range s.guestPaths {
		config = config.WithDirMount(s.hostPaths[i], guestPath)
	}
	return config
}

// release removes every directory and anything the program left in them.
// It must not be called until the runtime is closed.
func (s *scratch) release() (err error) {
	for _, hostPath := range s.hostPaths {
		err = multierr.Append(err, os.RemoveAll(hostPath))
	}
	s.guestPaths, s.hostPaths = nil, nil
	return
}
