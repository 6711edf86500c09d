package engine

import "time"

// SetPollInterval sets the sleep between dispatch passes.
// Non-positive durations fall back to DefaultPollInterval.
// Safe to call from any goroutine; takes effect at the next sleep.
func (e *Engine) SetPollInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	e.pollNanos.Store(int64(d))
}

// PollInterval returns the current poll interval.
func (e *Engine) PollInterval() time.Duration {
	return time.Duration(e.pollNanos.Load())
}

// SetReviewInterval sets how often completed conditions are
// re-evaluated, in ticks. A completed condition is dispatched only on
// ticks where tick % interval == 0; incomplete conditions are
// dispatched every tick. Zero is treated as 1 (review every tick).
//
// Unresolved vulnerabilities are polled densely to detect prompt
// fixes; resolved ones are checked at this coarser cadence to reduce
// cost while still catching regressions.
func (e *Engine) SetReviewInterval(ticks uint64) {
	if ticks == 0 {
		ticks = 1
	}
	e.reviewEvery.Store(ticks)
}

// ReviewInterval returns the completed-review interval in ticks.
func (e *Engine) ReviewInterval() uint64 {
	return e.reviewEvery.Load()
}

// Running reports whether the scheduler loop is active.
// Lock-free; pollable from any goroutine.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// InTick reports whether a dispatch pass is currently in flight.
func (e *Engine) InTick() bool {
	return e.inTick.Load()
}

// Tick returns the current tick counter.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// Run starts the scheduler loop on the calling goroutine and blocks
// until Stop is observed. Each iteration runs one dispatch pass, then
// sleeps for the poll interval. Returns immediately if the engine is
// already running.
func (e *Engine) Run() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	e.log.Info("engine started",
		"poll", e.PollInterval(),
		"review_every", e.ReviewInterval(),
		"checks", e.Checks())

	for e.running.Load() {
		e.RunTick()
		e.sleep(e.PollInterval())
	}

	e.log.Info("engine stopped",
		"ticks", e.Tick(),
		"failures", e.FailureCount(),
		"total", e.TotalScore())
}

// Stop tells the engine to exit at the next tick boundary.
//
// If blocking is true, Stop waits until any in-flight dispatch pass
// has completed before returning (a cooperative join; the running
// predicate is never cancelled). A pass that has already observed the
// running flag but not yet taken the registry mutex can still run once
// after Stop returns. Must not be called with blocking=true from
// inside a predicate.
func (e *Engine) Stop(blocking bool) {
	e.running.Store(false)

	if blocking {
		// The pass holds the registry mutex for its full duration, so
		// acquiring it here is exactly the join we need.
		e.mu.Lock()
		e.mu.Unlock() //nolint:staticcheck // empty critical section is the join
	}
}

// RunTick executes one dispatch pass and advances the tick counter.
// Exported so tests and the scenario harness can step the engine
// deterministically without the sleep loop.
//
// Eligibility: an entry whose completed flag is true is dispatched only
// when tick % reviewInterval == 0; every other entry is dispatched
// unconditionally.
func (e *Engine) RunTick() {
	e.inTick.Store(true)
	defer e.inTick.Store(false)

	tick := e.tick.Load()
	review := e.reviewEvery.Load()
	if review == 0 {
		review = 1
	}

	if e.recorder != nil {
		e.recorder.TickStarted(tick)
	}

	e.mu.Lock()
	defer e.mu.Unlock() // releases even if a predicate panic propagates

	for _, en := range e.entries {
		if en.completed && tick%review != 0 {
			continue
		}
		e.dispatch(tick, en)
	}

	e.tick.Add(1)
}

// dispatch runs one entry's predicate and records the result.
// The predicate's return unconditionally overwrites the completion
// flag; a recovered panic leaves it unchanged.
func (e *Engine) dispatch(tick uint64, en *entry) {
	completed, err := e.eval(en)
	if err != nil {
		e.failures.Add(1)
		e.log.Error("check failed", "tick", tick, "check", en.id,
			"kind", string(en.body.kind()), "error", err)
		if e.recorder != nil {
			e.recorder.CheckEvaluated(tick, en.id, string(en.body.kind()), en.completed, string(ErrCodePredicatePanic))
		}
		return
	}

	en.completed = completed
	e.log.Debug("check evaluated", "tick", tick, "check", en.id,
		"kind", string(en.body.kind()), "completed", completed)
	if e.recorder != nil {
		e.recorder.CheckEvaluated(tick, en.id, string(en.body.kind()), completed, "")
	}
}

// eval invokes the predicate under the configured panic policy.
func (e *Engine) eval(en *entry) (completed bool, err error) {
	if e.panicPolicy == PanicPropagate {
		return en.body.dispatch(e), nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(en.id, en.body.kind(), r)
		}
	}()
	return en.body.dispatch(e), nil
}
