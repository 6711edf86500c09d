package engine

import (
	"io"
	"os"

	"github.com/roach88/scorebox/internal/sysquery"
)

// CheckKind identifies the kind of a registered condition.
type CheckKind string

const (
	// KindFile checks a file on the target machine.
	KindFile CheckKind = "file"
	// KindApp checks an installed application or package.
	KindApp CheckKind = "app"
	// KindUser checks a local user account.
	KindUser CheckKind = "user"
	// KindCustom runs an arbitrary predicate with no context argument.
	KindCustom CheckKind = "custom"
)

// AppInfo describes an application or package under check.
// Predicates receive a copy; mutating it has no effect on the registry.
type AppInfo struct {
	Name   string
	Source sysquery.InstallSource
}

// FilePredicate evaluates a file condition.
//
// f is nil when the file could not be opened. Absence is a signal, not
// an error: a removed file may mean the vulnerability was fixed. When
// the file exists, f is positioned at the byte offset the previous
// evaluation left off at; the handle's position after the call is
// persisted as the next evaluation's starting cursor. Predicates that
// want the whole file each time should Seek to the start themselves.
//
// Returning true marks the condition completed for this tick.
type FilePredicate func(e *Engine, f *os.File) bool

// AppPredicate evaluates an application condition. The predicate is
// expected to consult the install-source collaborator itself (see
// sysquery.PackageQuery).
type AppPredicate func(e *Engine, app AppInfo) bool

// UserPredicate evaluates a user-account condition.
type UserPredicate func(e *Engine, username string) bool

// CustomPredicate evaluates a condition with no context argument.
type CustomPredicate func(e *Engine) bool

// conditionBody is the dispatch target for one registered condition.
// Each implementation owns the mutable state its predicate needs
// between evaluations (e.g. the file cursor).
type conditionBody interface {
	kind() CheckKind
	dispatch(e *Engine) bool
}

type fileCondition struct {
	path   string
	cursor int64
	fn     FilePredicate
}

func (c *fileCondition) kind() CheckKind { return KindFile }

func (c *fileCondition) dispatch(e *Engine) bool {
	f, err := os.Open(c.path)
	if err != nil {
		// Missing or unreadable file is surfaced as absence.
		return c.fn(e, nil)
	}
	defer f.Close()

	if c.cursor > 0 {
		if _, err := f.Seek(c.cursor, io.SeekStart); err != nil {
			c.cursor = 0
		}
	}
	completed := c.fn(e, f)
	if pos, err := f.Seek(0, io.SeekCurrent); err == nil {
		c.cursor = pos
	}
	return completed
}

type appCondition struct {
	app AppInfo
	fn  AppPredicate
}

func (c *appCondition) kind() CheckKind { return KindApp }

func (c *appCondition) dispatch(e *Engine) bool {
	return c.fn(e, c.app)
}

type userCondition struct {
	username string
	fn       UserPredicate
}

func (c *userCondition) kind() CheckKind { return KindUser }

func (c *userCondition) dispatch(e *Engine) bool {
	return c.fn(e, c.username)
}

type customCondition struct {
	fn CustomPredicate
}

func (c *customCondition) kind() CheckKind { return KindCustom }

func (c *customCondition) dispatch(e *Engine) bool {
	return c.fn(e)
}

// entry pairs a condition with its completion flag.
//
// completed is written only by the scheduler goroutine (single-writer).
// It is overwritten by every dispatch: each evaluation is authoritative
// for its tick, a true result is not sticky.
type entry struct {
	id        string
	body      conditionBody
	completed bool
}
