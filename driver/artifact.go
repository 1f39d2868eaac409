package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultEnvPrefix is the variable prefix cargo uses for the paths of
// artifact dependencies built from the wasi-tests-bins package.
const DefaultEnvPrefix = "CARGO_BIN_FILE_WASI_TESTS_BINS_"

// Artifact is a test program on disk.
type Artifact struct {
	// Name identifies the test in reports.
	Name string
	Path string
}

// FromEnviron returns an Artifact for each "<prefix><name>=<path>" entry of
// environ, such as os.Environ, sorted by name. Entries with an empty name or
// path are skipped.
func FromEnviron(prefix string, environ []string) []Artifact {
	var artifacts []Artifact
	for _, kv := range environ {
		k, path, ok := strings.Cut(kv, "=")
		if !ok || path == "" {
			continue
		}
		name, ok := strings.CutPrefix(k, prefix)
		if !ok || name == "" {
			continue
		}
		artifacts = append(artifacts, Artifact{Name: name, Path: path})
	}
	sortArtifacts(artifacts)
	return artifacts
}

// FromDir returns an Artifact for each "*.wasm" file directly in dir, named
// after the file without its extension.
func FromDir(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var artifacts []Artifact
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wasm" {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Name: strings.TrimSuffix(e.Name(), ".wasm"),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sortArtifacts(artifacts)
	return artifacts, nil
}

// FromPaths returns an Artifact for each path, in the order given.
func FromPaths(paths ...string) []Artifact {
	artifacts := make([]Artifact, 0, len(paths))
	for _, path := range paths {
		artifacts = append(artifacts, Artifact{
			Name: strings.TrimSuffix(filepath.Base(path), ".wasm"),
			Path: path,
		})
	}
	return artifacts
}

func sortArtifacts(artifacts []Artifact) {
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Name < artifacts[j].Name
	})
}
