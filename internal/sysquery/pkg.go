package sysquery

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its stdout.
// Implemented by ExecRunner (production) and test stubs.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec with stderr discarded.
type ExecRunner struct{}

// Output implements Runner.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("sysquery: %s: %w", name, err)
	}
	return out, nil
}

// PackageQuery answers install-state questions by shelling out to the
// package managers for each install source.
type PackageQuery struct {
	runner Runner
}

// NewPackageQuery creates a PackageQuery. A nil runner uses ExecRunner.
func NewPackageQuery(r Runner) *PackageQuery {
	if r == nil {
		r = ExecRunner{}
	}
	return &PackageQuery{runner: r}
}

// probe maps each concrete source to the listing command whose output
// is searched for the package name.
var probes = map[InstallSource][]string{
	SourcePackageManager: {"dpkg", "-l"},
	SourceFlatpak:        {"flatpak", "list"},
	SourceSnap:           {"snap", "list"},
	SourceWinGet:         {"winget", "list"},
}

// Installed reports whether a package named name is installed via the
// given source. SourceDefault and SourceManual probe every source and
// report true if any of them lists the package; a probe whose tool is
// missing is skipped rather than treated as an error.
func (q *PackageQuery) Installed(ctx context.Context, name string, src InstallSource) (bool, error) {
	if src == SourceDefault || src == SourceManual {
		for probeSrc := range probes {
			// A failing probe never vetoes the others.
			if ok, err := q.Installed(ctx, name, probeSrc); err == nil && ok {
				return true, nil
			}
		}
		return false, nil
	}

	argv, ok := probes[src]
	if !ok {
		return false, fmt.Errorf("sysquery: no probe for install source %s", src)
	}

	out, err := q.runner.Output(ctx, argv[0], argv[1:]...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			// Tool absent means nothing is installed through it.
			return false, nil
		}
		return false, err
	}
	return strings.Contains(string(out), name), nil
}
