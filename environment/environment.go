// Package environment describes what a test program expects of its execution
// environment and what it must produce.
//
// The description travels inside the program's own binary, as a TOML document
// in the custom section named SectionName:
//
//	exit = 2
//	args = ["--verbose"]
//	dirs = ["/", "/tmp"]
//	stdout = "ok\n"
//
//	[vars]
//	HOME = "/"
//
// Every key is optional.
package environment

import (
	"sort"
)

// SectionName is the custom section holding the TOML document.
const SectionName = ".test.data"

// Environment is the decoded form of one test's expectations. The zero value
// is a valid description: no input and a clean exit with empty output.
type Environment struct {
	// Exit is the exit code the program must terminate with.
	Exit int32

	// Vars are the environment variables to set. Order is not significant.
	Vars map[string]string

	// Args are the arguments to pass, in order. The program name is not
	// prepended.
	Args []string

	// Dirs are the guest paths which must be pre-opened as directories.
	Dirs Dirs

	// Stdin is fed to the program as standard input.
	Stdin string

	// Stdout and Stderr are the exact output the program must produce.
	Stdout, Stderr string
}

// VarNames returns the keys of Vars in lexical order.
func (e *Environment) VarNames() []string {
	keys := make([]string, 0, len(e.Vars))
	for k := range e.Vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ returns Vars as "key=value" pairs sorted by key.
func (e *Environment) Environ() []string {
	keys := e.VarNames()
	environ := make([]string, 0, len(keys))
	for _, k := range keys {
		environ = append(environ, k+"="+e.Vars[k])
	}
	return environ
}

// Equal returns true if both describe the same expectations. A nil collection
// equals an empty one.
func (e *Environment) Equal(o *Environment) bool {
	if e.Exit != o.Exit || e.Stdin != o.Stdin || e.Stdout != o.Stdout || e.Stderr != o.Stderr {
		return false
	}

	if len(e.Vars) != len(o.Vars) {
		return false
	}
	for k, v := range e.Vars {
		if ov, ok := o.Vars[k]; !ok || ov != v {
			return false
		}
	}

	if len(e.Args) != len(o.Args) {
		return false
	}
	for i := range e.Args {
		if e.Args[i] != o.Args[i] {
			return false
		}
	}

	if len(e.Dirs) != len(o.Dirs) {
		return false
	}
	for d := range e.Dirs {
		if !o.Dirs.Contains(d) {
			return false
		}
	}
	return true
}

// Dirs is a set of guest paths.
type Dirs map[string]struct{}

// NewDirs returns a set of the given paths, or nil if there are none.
// Duplicates collapse.
func NewDirs(paths ...string) Dirs {
	if len(paths) == 0 {
		return nil
	}
	d := make(Dirs, len(paths))
	for _, p := range paths {
		d[p] = struct{}{}
	}
	return d
}

// Contains returns true if path is in the set.
func (d Dirs) Contains(path string) bool {
	_, ok := d[path]
	return ok
}

// Sorted returns the paths in lexical order.
func (d Dirs) Sorted() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
