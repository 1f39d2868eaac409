// Package version reports module versions recorded in the running binary.
package version

import "runtime/debug"

const devel = "dev"

// Main returns the version of the main module, or "dev" when it was not
// built from a tagged module.
func Main() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return devel
	}
	return orDevel(info.Main.Version)
}

// Dependency returns the version of the dependency with the given module
// path, or "dev" when the binary does not record one.
func Dependency(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return devel
	}
	return dependency(info, path)
}

func dependency(info *debug.BuildInfo, path string) string {
	for _, dep := range info.Deps {
		if dep.Path != path {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		return orDevel(dep.Version)
	}
	return devel
}

func orDevel(v string) string {
	if v == "" || v == "(devel)" {
		return devel
	}
	return v
}
