// Package sysquery provides the OS-facing collaborators predicates are
// built from: local user and group lookups, and package install-state
// queries per install source. All functions are synchronous queries
// with no shared state; the scoring engine never calls them itself.
package sysquery

import "fmt"

// InstallSource identifies where a package is expected to come from.
type InstallSource int

const (
	// SourceDefault probes every source available on the platform.
	SourceDefault InstallSource = iota
	// SourcePackageManager is the system package manager (dpkg).
	SourcePackageManager
	// SourceFlatpak is a Flatpak installation.
	SourceFlatpak
	// SourceSnap is a Snap installation.
	SourceSnap
	// SourceWinGet is a Windows winget installation.
	SourceWinGet
	// SourceManual is a manual install; there is no reliable registry
	// to probe, so queries fall back to SourceDefault behavior.
	SourceManual
)

var sourceNames = map[InstallSource]string{
	SourceDefault:        "default",
	SourcePackageManager: "package_manager",
	SourceFlatpak:        "flatpak",
	SourceSnap:           "snap",
	SourceWinGet:         "winget",
	SourceManual:         "manual",
}

// String returns the canonical lowercase name of the source.
func (s InstallSource) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return fmt.Sprintf("install_source(%d)", int(s))
}

// ParseSource converts a canonical source name to an InstallSource.
func ParseSource(name string) (InstallSource, error) {
	for src, n := range sourceNames {
		if n == name {
			return src, nil
		}
	}
	return SourceDefault, fmt.Errorf("sysquery: unknown install source %q", name)
}
