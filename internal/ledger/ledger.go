// Package ledger implements the ordered score ledger for a scoring run.
//
// The ledger is an insertion-ordered collection of score entries keyed
// by a caller-chosen uint64 id. Each operation is atomic with respect
// to other ledger operations (one mutex, short critical sections).
//
// No compound atomic operation is provided. In particular,
// "insert only if absent" composed from Exists+Upsert is NOT atomic
// against a concurrent writer; callers that need last-write-wins
// semantics should just call Upsert.
package ledger

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Remove when no entry has the given id.
var ErrNotFound = errors.New("ledger: score entry not found")

// Entry is a single score line: an id, a point value, and the
// human-readable reason the points were awarded (or deducted).
type Entry struct {
	ID     uint64
	Value  int
	Reason string
}

// ReportLine is one row of a score report, in ledger order.
type ReportLine struct {
	Reason string `json:"reason"`
	Value  int    `json:"value"`
}

// Ledger is an ordered, mutex-guarded collection of score entries.
//
// INVARIANT: at most one entry per id. Upsert replaces value and reason
// in place, preserving the entry's original insertion position.
type Ledger struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Upsert writes (value, reason) for id. If an entry with the same id
// exists it is overwritten in place; otherwise a new entry is appended.
func (l *Ledger) Upsert(id uint64, value int, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries[i].Value = value
			l.entries[i].Reason = reason
			return
		}
	}
	l.entries = append(l.entries, Entry{ID: id, Value: value, Reason: reason})
}

// Remove deletes the entry with the given id.
// Returns ErrNotFound if no such entry exists; the ledger is unchanged.
// Removal preserves the relative order of the remaining entries.
func (l *Ledger) Remove(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID == id {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Total returns the sum of all current entry values.
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for i := range l.entries {
		total += l.entries[i].Value
	}
	return total
}

// Report returns (reason, value) pairs in ledger order.
// Ledger order is insertion order, not id order: updating an existing
// entry via Upsert does not move it.
func (l *Ledger) Report() []ReportLine {
	l.mu.Lock()
	defer l.mu.Unlock()

	report := make([]ReportLine, 0, len(l.entries))
	for i := range l.entries {
		report = append(report, ReportLine{Reason: l.entries[i].Reason, Value: l.entries[i].Value})
	}
	return report
}

// Exists reports whether an entry with the given id is present.
func (l *Ledger) Exists(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID == id {
			return true
		}
	}
	return false
}

// Get returns the entry with the given id, if present.
func (l *Ledger) Get(id uint64) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.entries {
		if l.entries[i].ID == id {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
