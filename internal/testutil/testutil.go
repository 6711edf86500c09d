// Package testutil provides deterministic helpers for engine tests and
// the scenario harness: a sleeper that records instead of waiting and a
// sequential check-id generator for stable golden files.
package testutil

import (
	"fmt"
	"sync"
	"time"
)

// RecordingSleeper satisfies the engine's sleep hook without waiting.
// It records every requested duration so tests can assert cadence.
//
// Thread-safety: all methods are safe for concurrent use.
type RecordingSleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

// NewRecordingSleeper creates a sleeper with no recorded calls.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d and returns immediately.
func (s *RecordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

// Calls returns a copy of the recorded durations.
func (s *RecordingSleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.calls))
	copy(out, s.calls)
	return out
}

// SeqIDGenerator produces "prefix-1", "prefix-2", ... check ids.
// Deterministic ids keep golden report snapshots stable across runs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SeqIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqIDGenerator creates a generator with the given prefix.
// An empty prefix defaults to "check".
func NewSeqIDGenerator(prefix string) *SeqIDGenerator {
	if prefix == "" {
		prefix = "check"
	}
	return &SeqIDGenerator{prefix: prefix}
}

// Generate returns the next sequential id.
func (g *SeqIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
