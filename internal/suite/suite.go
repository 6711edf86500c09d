// Package suite loads declarative check-suite definitions written in
// CUE and binds them to a scoring engine.
//
// A suite file declares data-driven checks (file content, package
// install state, user accounts) without writing Go predicates:
//
//	suite: {
//	    name: "ubuntu-practice"
//	    checks: [
//	        {
//	            kind:     "file"
//	            id:       1
//	            points:   50
//	            reason:   "Flag restored"
//	            path:     "/home/user/flag.txt"
//	            contains: "ok"
//	        },
//	        {
//	            kind:      "app"
//	            id:        2
//	            points:    25
//	            reason:    "Removed nmap"
//	            name:      "nmap"
//	            source:    "package_manager"
//	            forbidden: true
//	        },
//	    ]
//	}
//
// Checks that need arbitrary logic are registered in Go directly via
// the engine's Add*Check methods; suites cover the common shapes.
package suite

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scorebox/internal/sysquery"
)

// Kind identifies a declarative check shape.
type Kind string

const (
	// KindFile checks for a file's presence and optional content.
	KindFile Kind = "file"
	// KindApp checks a package's install state.
	KindApp Kind = "app"
	// KindUser checks a local user account's existence.
	KindUser Kind = "user"
)

// Spec is one compiled check definition.
type Spec struct {
	Kind    Kind
	ScoreID uint64
	Points  int
	Reason  string

	// Path and Contains apply to file checks. Empty Contains means
	// presence alone satisfies the check. Owner, when set, additionally
	// requires the file to be owned by that user account.
	Path     string
	Contains string
	Owner    string

	// Name applies to app and user checks.
	Name string

	// Source applies to app checks.
	Source sysquery.InstallSource

	// Forbidden inverts the check: the condition is satisfied when the
	// file/package/user is absent rather than present.
	Forbidden bool
}

// Suite is a compiled set of checks.
type Suite struct {
	Name   string
	Checks []Spec
}

// CompileError is a suite definition error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile parses a CUE value holding a `suite` struct into a Suite.
func Compile(v cue.Value) (*Suite, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("suite: invalid CUE: %w", err)
	}

	root := v.LookupPath(cue.ParsePath("suite"))
	if !root.Exists() {
		return nil, &CompileError{Field: "suite", Message: "top-level suite struct is required", Pos: v.Pos()}
	}

	s := &Suite{}

	nameVal := root.LookupPath(cue.ParsePath("name"))
	if nameVal.Exists() {
		name, err := nameVal.String()
		if err != nil {
			return nil, &CompileError{Field: "name", Message: "must be a string", Pos: nameVal.Pos()}
		}
		s.Name = name
	}

	checksVal := root.LookupPath(cue.ParsePath("checks"))
	if !checksVal.Exists() {
		return nil, &CompileError{Field: "checks", Message: "at least one check is required", Pos: root.Pos()}
	}
	iter, err := checksVal.List()
	if err != nil {
		return nil, &CompileError{Field: "checks", Message: "must be a list", Pos: checksVal.Pos()}
	}

	seen := make(map[uint64]bool)
	for iter.Next() {
		spec, err := compileCheck(iter.Value())
		if err != nil {
			return nil, err
		}
		if seen[spec.ScoreID] {
			return nil, &CompileError{
				Field:   "id",
				Message: fmt.Sprintf("duplicate score id %d", spec.ScoreID),
				Pos:     iter.Value().Pos(),
			}
		}
		seen[spec.ScoreID] = true
		s.Checks = append(s.Checks, spec)
	}

	if len(s.Checks) == 0 {
		return nil, &CompileError{Field: "checks", Message: "at least one check is required", Pos: checksVal.Pos()}
	}
	return s, nil
}

func compileCheck(v cue.Value) (Spec, error) {
	var spec Spec

	kind, err := requireString(v, "kind")
	if err != nil {
		return spec, err
	}
	switch Kind(kind) {
	case KindFile, KindApp, KindUser:
		spec.Kind = Kind(kind)
	default:
		return spec, &CompileError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown check kind %q (want file, app, or user)", kind),
			Pos:     v.Pos(),
		}
	}

	id, err := requireInt(v, "id")
	if err != nil {
		return spec, err
	}
	if id < 0 {
		return spec, &CompileError{Field: "id", Message: "must be non-negative", Pos: v.Pos()}
	}
	spec.ScoreID = uint64(id)

	points, err := requireInt(v, "points")
	if err != nil {
		return spec, err
	}
	spec.Points = int(points)

	spec.Reason, err = requireString(v, "reason")
	if err != nil {
		return spec, err
	}

	if forbidden := v.LookupPath(cue.ParsePath("forbidden")); forbidden.Exists() {
		b, err := forbidden.Bool()
		if err != nil {
			return spec, &CompileError{Field: "forbidden", Message: "must be a bool", Pos: forbidden.Pos()}
		}
		spec.Forbidden = b
	}

	switch spec.Kind {
	case KindFile:
		spec.Path, err = requireString(v, "path")
		if err != nil {
			return spec, err
		}
		if contains := v.LookupPath(cue.ParsePath("contains")); contains.Exists() {
			c, err := contains.String()
			if err != nil {
				return spec, &CompileError{Field: "contains", Message: "must be a string", Pos: contains.Pos()}
			}
			spec.Contains = c
		}
		if owner := v.LookupPath(cue.ParsePath("owner")); owner.Exists() {
			o, err := owner.String()
			if err != nil {
				return spec, &CompileError{Field: "owner", Message: "must be a string", Pos: owner.Pos()}
			}
			spec.Owner = o
		}
	case KindApp:
		spec.Name, err = requireString(v, "name")
		if err != nil {
			return spec, err
		}
		spec.Source = sysquery.SourceDefault
		if source := v.LookupPath(cue.ParsePath("source")); source.Exists() {
			name, err := source.String()
			if err != nil {
				return spec, &CompileError{Field: "source", Message: "must be a string", Pos: source.Pos()}
			}
			src, err := sysquery.ParseSource(name)
			if err != nil {
				return spec, &CompileError{Field: "source", Message: err.Error(), Pos: source.Pos()}
			}
			spec.Source = src
		}
	case KindUser:
		spec.Name, err = requireString(v, "name")
		if err != nil {
			return spec, err
		}
	}

	return spec, nil
}

func requireString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: "is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fv.Pos()}
	}
	return s, nil
}

func requireInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: "is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an integer", Pos: fv.Pos()}
	}
	return n, nil
}
