// Package engine implements the condition-registry-and-dispatch core of
// the scorebox scoring engine.
//
// Callers register vulnerability checks (conditions) before or during a
// run; the scheduler loop repeatedly dispatches each eligible condition
// to its predicate and records the boolean result as the condition's
// completion state. Predicates post score changes to the engine's
// ledger themselves; the dispatcher computes no deltas.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - registration, tuning, Stop(), and all score operations: safe from
//     any goroutine
//   - conditions registered while a tick is in flight become visible at
//     the next tick, not the current one
//
// Two independent mutexes guard the registry and the ledger; there is
// no global lock. The registry mutex is held for the full duration of a
// dispatch pass, so registration from other goroutines serializes
// against an in-flight tick. That is a documented throughput
// bottleneck, not a correctness defect.
//
// Predicates must not register new conditions and must not call
// Stop(true); both would deadlock against the pass holding the
// registry mutex. Hooks requesting termination should use Stop(false).
package engine

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/scorebox/internal/ledger"
)

// Default tuning values, overridable via SetPollInterval and
// SetReviewInterval at any time.
const (
	DefaultPollInterval   = 200 * time.Millisecond
	DefaultReviewInterval = 10
)

// PanicPolicy controls what the dispatcher does when a predicate panics.
type PanicPolicy int

const (
	// PanicIsolate recovers the panic, logs it, records it to the audit
	// trace, skips the entry (its completion flag is left unchanged),
	// and continues the pass. This is the default.
	PanicIsolate PanicPolicy = iota

	// PanicPropagate re-raises the panic after the dispatcher unwinds.
	// The registry and ledger mutexes are released on the way out, so a
	// crashing predicate cannot leave shared state locked, but the tick
	// aborts and the panic reaches the caller of Run. For callers that
	// want crash-on-first-bug during suite development.
	PanicPropagate
)

// Recorder receives engine events for per-run diagnostics.
// Implemented by audit.Log. A nil Recorder disables recording.
type Recorder interface {
	TickStarted(tick uint64)
	CheckEvaluated(tick uint64, checkID, kind string, completed bool, errCode string)
	ScoreUpserted(tick uint64, id uint64, value int, reason string)
	ScoreRemoved(tick uint64, id uint64)
}

// Engine owns the condition registry, the score ledger, and the
// scheduler state for one scoring run. Engines are independent values:
// construct one per run (or per test) with New.
type Engine struct {
	mu      sync.Mutex // guards entries; held for the whole dispatch pass
	entries []*entry

	ledger *ledger.Ledger

	pollNanos   atomic.Int64  // poll interval in nanoseconds
	reviewEvery atomic.Uint64 // completed-review interval in ticks

	running  atomic.Bool
	inTick   atomic.Bool
	tick     atomic.Uint64 // written only by the scheduler goroutine
	failures atomic.Uint64

	panicPolicy PanicPolicy
	idGen       IDGenerator
	log         *slog.Logger
	recorder    Recorder
	sleep       func(time.Duration)
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithPanicPolicy sets the dispatcher's panic handling.
// Defaults to PanicIsolate.
func WithPanicPolicy(p PanicPolicy) Option {
	return func(e *Engine) { e.panicPolicy = p }
}

// WithIDGenerator overrides the check-id generator.
// Defaults to UUIDv7Generator. Tests use testutil.SeqIDGenerator for
// deterministic ids in golden files.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.idGen = g }
}

// WithRecorder attaches a diagnostics recorder (see audit.Log).
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithSleeper overrides the scheduler's sleep function.
// Tests use testutil.RecordingSleeper to run ticks without waiting.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// New creates an engine with an empty registry and ledger.
func New(opts ...Option) *Engine {
	e := &Engine{
		ledger:      ledger.New(),
		panicPolicy: PanicIsolate,
		idGen:       UUIDv7Generator{},
		log:         slog.Default(),
		sleep:       time.Sleep,
	}
	e.pollNanos.Store(int64(DefaultPollInterval))
	e.reviewEvery.Store(DefaultReviewInterval)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// add appends a condition to the registry and returns its check id.
func (e *Engine) add(body conditionBody) string {
	en := &entry{id: e.idGen.Generate(), body: body}

	e.mu.Lock()
	e.entries = append(e.entries, en)
	e.mu.Unlock()

	e.log.Debug("check registered", "check", en.id, "kind", string(body.kind()))
	return en.id
}

// AddFileCheck registers a file condition for the given path.
// Returns the condition's check id.
func (e *Engine) AddFileCheck(path string, fn FilePredicate) string {
	return e.add(&fileCondition{path: path, fn: fn})
}

// AddAppCheck registers an application condition.
// Returns the condition's check id.
func (e *Engine) AddAppCheck(app AppInfo, fn AppPredicate) string {
	return e.add(&appCondition{app: app, fn: fn})
}

// AddUserCheck registers a user-account condition.
// Returns the condition's check id.
func (e *Engine) AddUserCheck(username string, fn UserPredicate) string {
	return e.add(&userCondition{username: username, fn: fn})
}

// AddCustomCheck registers a condition whose predicate takes no
// context argument. Returns the condition's check id.
func (e *Engine) AddCustomCheck(fn CustomPredicate) string {
	return e.add(&customCondition{fn: fn})
}

// AddHook registers a side-effect hook as a custom condition whose
// result is discarded: the condition always reports not-completed, so
// the hook runs on every tick. Hooks typically inspect the ledger and
// request a stop via Stop(false).
func (e *Engine) AddHook(fn func(e *Engine)) string {
	return e.AddCustomCheck(func(e *Engine) bool {
		fn(e)
		return false
	})
}

// Checks returns the number of registered conditions.
func (e *Engine) Checks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// FailureCount returns the number of predicate failures isolated so far
// in this run.
func (e *Engine) FailureCount() uint64 {
	return e.failures.Load()
}

// Ledger returns the engine's score ledger.
func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// UpsertScore posts (value, reason) for the given score id, replacing
// any existing entry with that id in place.
func (e *Engine) UpsertScore(id uint64, value int, reason string) {
	e.ledger.Upsert(id, value, reason)
	if e.recorder != nil {
		e.recorder.ScoreUpserted(e.tick.Load(), id, value, reason)
	}
}

// RemoveScore deletes the score entry with the given id.
// Returns ledger.ErrNotFound if absent.
func (e *Engine) RemoveScore(id uint64) error {
	if err := e.ledger.Remove(id); err != nil {
		return err
	}
	if e.recorder != nil {
		e.recorder.ScoreRemoved(e.tick.Load(), id)
	}
	return nil
}

// TotalScore returns the sum of all current score values.
func (e *Engine) TotalScore() int {
	return e.ledger.Total()
}

// ScoreReport returns (reason, value) pairs in ledger order.
func (e *Engine) ScoreReport() []ledger.ReportLine {
	return e.ledger.Report()
}

// HasScore reports whether a score entry with the given id exists.
func (e *Engine) HasScore(id uint64) bool {
	return e.ledger.Exists(id)
}

// Score returns the score entry with the given id, if present.
func (e *Engine) Score(id uint64) (ledger.Entry, bool) {
	return e.ledger.Get(id)
}
