package suite

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/roach88/scorebox/internal/engine"
	"github.com/roach88/scorebox/internal/sysquery"
)

// DefaultProbeTimeout bounds each external package probe.
const DefaultProbeTimeout = 10 * time.Second

// PackageProber answers package install-state queries.
// Implemented by sysquery.PackageQuery; tests use stubs.
type PackageProber interface {
	Installed(ctx context.Context, name string, src sysquery.InstallSource) (bool, error)
}

// UserProber answers user-existence queries.
type UserProber interface {
	Exists(name string) (bool, error)
}

// osUsers is the production UserProber backed by sysquery.
type osUsers struct{}

func (osUsers) Exists(name string) (bool, error) {
	return sysquery.UserExists(name)
}

// BindOptions configures collaborator access for bound predicates.
// Zero values select the production collaborators.
type BindOptions struct {
	Packages     PackageProber
	Users        UserProber
	ProbeTimeout time.Duration
}

func (o BindOptions) withDefaults() BindOptions {
	if o.Packages == nil {
		o.Packages = sysquery.NewPackageQuery(nil)
	}
	if o.Users == nil {
		o.Users = osUsers{}
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	return o
}

// Bind registers every check of the suite on the engine, in suite
// order, and returns the check ids in the same order.
//
// Bound predicates follow one scoring convention: when the condition
// is satisfied they upsert (points, reason) under the spec's score id,
// and when it regresses they remove the entry again, so the report
// always reflects the current machine state. A collaborator error
// counts as not-satisfied for that tick.
func Bind(e *engine.Engine, s *Suite, opts BindOptions) []string {
	opts = opts.withDefaults()

	ids := make([]string, 0, len(s.Checks))
	for _, spec := range s.Checks {
		spec := spec
		switch spec.Kind {
		case KindFile:
			ids = append(ids, e.AddFileCheck(spec.Path, filePredicate(spec)))
		case KindApp:
			ids = append(ids, e.AddAppCheck(
				engine.AppInfo{Name: spec.Name, Source: spec.Source},
				appPredicate(spec, opts)))
		case KindUser:
			ids = append(ids, e.AddUserCheck(spec.Name, userPredicate(spec, opts)))
		}
	}
	return ids
}

// post applies the scoring convention for one evaluation result.
func post(e *engine.Engine, spec Spec, satisfied bool) bool {
	if satisfied {
		e.UpsertScore(spec.ScoreID, spec.Points, spec.Reason)
	} else if e.HasScore(spec.ScoreID) {
		// Regression: the points come back off the board.
		_ = e.RemoveScore(spec.ScoreID)
	}
	return satisfied
}

func filePredicate(spec Spec) engine.FilePredicate {
	return func(e *engine.Engine, f *os.File) bool {
		if f == nil {
			return post(e, spec, spec.Forbidden)
		}
		if spec.Forbidden {
			return post(e, spec, false)
		}
		if spec.Owner != "" {
			owned, err := sysquery.FileOwnedByUser(spec.Path, spec.Owner)
			if err != nil || !owned {
				return post(e, spec, false)
			}
		}
		if spec.Contains == "" {
			return post(e, spec, true)
		}
		// Declarative content checks always read the whole file; the
		// cursor is a tool for custom tail-style predicates.
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return post(e, spec, false)
		}
		data, err := io.ReadAll(f)
		if err != nil {
			return post(e, spec, false)
		}
		return post(e, spec, strings.Contains(string(data), spec.Contains))
	}
}

func appPredicate(spec Spec, opts BindOptions) engine.AppPredicate {
	return func(e *engine.Engine, app engine.AppInfo) bool {
		ctx, cancel := context.WithTimeout(context.Background(), opts.ProbeTimeout)
		defer cancel()

		installed, err := opts.Packages.Installed(ctx, app.Name, app.Source)
		if err != nil {
			return post(e, spec, false)
		}
		if spec.Forbidden {
			return post(e, spec, !installed)
		}
		return post(e, spec, installed)
	}
}

func userPredicate(spec Spec, opts BindOptions) engine.UserPredicate {
	return func(e *engine.Engine, username string) bool {
		exists, err := opts.Users.Exists(username)
		if err != nil {
			return post(e, spec, false)
		}
		if spec.Forbidden {
			return post(e, spec, !exists)
		}
		return post(e, spec, exists)
	}
}
