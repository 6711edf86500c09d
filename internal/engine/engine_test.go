package engine

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scorebox/internal/ledger"
	"github.com/roach88/scorebox/internal/sysquery"
	"github.com/roach88/scorebox/internal/testutil"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{
		WithIDGenerator(testutil.NewSeqIDGenerator("check")),
		WithSleeper(testutil.NewRecordingSleeper().Sleep),
	}, opts...)
	return New(opts...)
}

// step runs n ticks back to back.
func step(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.RunTick()
	}
}

func TestEngine_RegistrationOrderAndIDs(t *testing.T) {
	e := newTestEngine(t)

	id1 := e.AddUserCheck("alice", func(*Engine, string) bool { return false })
	id2 := e.AddCustomCheck(func(*Engine) bool { return false })

	assert.Equal(t, "check-1", id1)
	assert.Equal(t, "check-2", id2)
	assert.Equal(t, 2, e.Checks())
}

func TestEngine_IncompleteConditionRunsEveryTick(t *testing.T) {
	e := newTestEngine(t)

	calls := 0
	e.AddCustomCheck(func(*Engine) bool {
		calls++
		return false
	})

	step(e, 7)
	assert.Equal(t, 7, calls, "a never-completed condition runs on every tick")
}

func TestEngine_CompletedConditionReviewCadence(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(3)

	var ticks []uint64
	e.AddCustomCheck(func(e *Engine) bool {
		ticks = append(ticks, e.Tick())
		return true
	})

	step(e, 7)
	// Completed on tick 0; after that only review ticks (multiples of 3).
	assert.Equal(t, []uint64{0, 3, 6}, ticks)
}

func TestEngine_CompletionIsNotSticky(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(2)

	results := []bool{true, false, false, false}
	var ticks []uint64
	e.AddCustomCheck(func(e *Engine) bool {
		ticks = append(ticks, e.Tick())
		r := results[0]
		if len(results) > 1 {
			results = results[1:]
		}
		return r
	})

	step(e, 5)
	// Tick 0 completes the check, tick 1 is skipped, tick 2 is a review
	// tick and un-completes it, after which every tick dispatches again.
	assert.Equal(t, []uint64{0, 2, 3, 4}, ticks)
}

func TestEngine_ReviewIntervalZeroMeansEveryTick(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(0)

	calls := 0
	e.AddCustomCheck(func(*Engine) bool {
		calls++
		return true
	})

	step(e, 4)
	assert.Equal(t, 4, calls)
}

func TestEngine_FileCheckAbsentThenPresent(t *testing.T) {
	e := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "flag.txt")

	var observed []string
	e.AddFileCheck(path, func(_ *Engine, f *os.File) bool {
		if f == nil {
			observed = append(observed, "<absent>")
			return false
		}
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		observed = append(observed, string(data))
		return true
	})

	e.RunTick() // before the file exists
	require.NoError(t, os.WriteFile(path, []byte("ok"), 0o644))
	e.RunTick()

	assert.Equal(t, []string{"<absent>", "ok"}, observed)
}

func TestEngine_FileCursorPersistsAcrossTicks(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(1)
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(path, []byte("one\n"), 0o644))

	var reads []string
	e.AddFileCheck(path, func(_ *Engine, f *os.File) bool {
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		reads = append(reads, string(data))
		return false
	})

	e.RunTick()

	// Append; the next evaluation starts at the persisted cursor and
	// sees only the new bytes.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("two\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e.RunTick()
	e.RunTick() // nothing new appended

	assert.Equal(t, []string{"one\n", "two\n", ""}, reads)
}

func TestEngine_AppCheckReceivesSnapshot(t *testing.T) {
	e := newTestEngine(t)

	var got AppInfo
	e.AddAppCheck(AppInfo{Name: "nmap", Source: sysquery.SourcePackageManager}, func(_ *Engine, app AppInfo) bool {
		got = app
		app.Name = "mutated" // copy; must not leak back into the registry
		return false
	})

	step(e, 2)
	assert.Equal(t, AppInfo{Name: "nmap", Source: sysquery.SourcePackageManager}, got)
}

func TestEngine_HookRunsEveryTickAndDiscardsResult(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(100)

	calls := 0
	e.AddHook(func(*Engine) {
		calls++
	})

	step(e, 5)
	// A hook is never considered completed, so the review interval
	// cannot throttle it.
	assert.Equal(t, 5, calls)
}

func TestEngine_PredicatePanicIsIsolated(t *testing.T) {
	e := newTestEngine(t)

	afterCalls := 0
	e.AddCustomCheck(func(*Engine) bool { panic("bad check") })
	e.AddCustomCheck(func(*Engine) bool {
		afterCalls++
		return false
	})

	step(e, 3)

	assert.Equal(t, 3, afterCalls, "entries after the panicking one must still run")
	assert.Equal(t, uint64(3), e.FailureCount())
}

func TestEngine_PanicLeavesCompletionUnchanged(t *testing.T) {
	e := newTestEngine(t)
	e.SetReviewInterval(1)

	calls := 0
	e.AddCustomCheck(func(*Engine) bool {
		calls++
		if calls == 1 {
			return true
		}
		panic("regression probe blew up")
	})

	step(e, 3)

	// The check completed on tick 0; the panics on later review ticks
	// must not clear that state.
	e.mu.Lock()
	completed := e.entries[0].completed
	e.mu.Unlock()
	assert.True(t, completed)
}

func TestEngine_PanicPropagatePolicy(t *testing.T) {
	e := newTestEngine(t, WithPanicPolicy(PanicPropagate))

	e.AddCustomCheck(func(*Engine) bool { panic("fatal by request") })

	assert.Panics(t, func() { e.RunTick() })

	// The registry mutex must be released on the way out.
	id := e.AddUserCheck("bob", func(*Engine, string) bool { return false })
	assert.NotEmpty(t, id)
}

func TestEngine_IsPredicatePanic(t *testing.T) {
	err := newPanicError("check-9", KindCustom, "boom")
	assert.True(t, IsPredicatePanic(err))
	assert.Contains(t, err.Error(), "PREDICATE_PANIC")
	assert.Contains(t, err.Error(), "check-9")

	assert.False(t, IsPredicatePanic(ledger.ErrNotFound))
}

func TestEngine_ScorePassthrough(t *testing.T) {
	e := newTestEngine(t)

	e.AddCustomCheck(func(e *Engine) bool {
		if !e.HasScore(1) {
			e.UpsertScore(1, 50, "firewall enabled")
		}
		return true
	})

	e.RunTick()

	assert.Equal(t, 50, e.TotalScore())
	entry, ok := e.Score(1)
	require.True(t, ok)
	assert.Equal(t, "firewall enabled", entry.Reason)

	require.NoError(t, e.RemoveScore(1))
	assert.ErrorIs(t, e.RemoveScore(1), ledger.ErrNotFound)
	assert.Empty(t, e.ScoreReport())
}

func TestEngine_RegistrationVisibleNextTick(t *testing.T) {
	e := newTestEngine(t)

	lateCalls := 0
	e.AddCustomCheck(func(e *Engine) bool { return true })
	e.RunTick()

	e.AddCustomCheck(func(*Engine) bool {
		lateCalls++
		return false
	})
	e.RunTick()
	assert.Equal(t, 1, lateCalls)
}

func TestEngine_StopNonBlockingExitsAtTickBoundary(t *testing.T) {
	e := newTestEngine(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	e.AddCustomCheck(func(*Engine) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return false
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	<-entered // a tick is in flight
	e.Stop(false)

	select {
	case <-done:
		t.Fatal("loop exited mid-tick")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit at the tick boundary")
	}
	assert.False(t, e.Running())
}

func TestEngine_StopBlockingJoinsInFlightTick(t *testing.T) {
	e := newTestEngine(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	e.AddCustomCheck(func(*Engine) bool {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return false
	})

	runDone := make(chan struct{})
	go func() {
		e.Run()
		close(runDone)
	}()
	<-entered

	stopDone := make(chan struct{})
	go func() {
		e.Stop(true)
		close(stopDone)
	}()

	select {
	case <-stopDone:
		t.Fatal("blocking stop returned while a dispatch pass was in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blocking stop never returned")
	}
	<-runDone
}

func TestEngine_StopHookTerminatesRun(t *testing.T) {
	e := newTestEngine(t)

	e.AddCustomCheck(func(e *Engine) bool {
		e.UpsertScore(0, 50, "flag restored")
		return true
	})
	e.AddHook(func(e *Engine) {
		if e.HasScore(0) {
			e.Stop(false)
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hook-driven stop never fired")
	}
	assert.Equal(t, 50, e.TotalScore())
}

func TestEngine_RunRestartsAfterStop(t *testing.T) {
	e := newTestEngine(t)
	e.AddHook(func(e *Engine) { e.Stop(false) })

	e.Run()
	first := e.Tick()
	e.Run() // stopped engines may be started again
	assert.False(t, e.Running())
	assert.Greater(t, e.Tick(), first)
}

func TestEngine_PollIntervalTuning(t *testing.T) {
	sleeper := testutil.NewRecordingSleeper()
	e := New(WithSleeper(sleeper.Sleep), WithIDGenerator(testutil.NewSeqIDGenerator("")))
	e.SetPollInterval(50 * time.Millisecond)

	ticks := 0
	e.AddHook(func(e *Engine) {
		ticks++
		if ticks == 3 {
			e.Stop(false)
		}
	})

	e.Run()

	calls := sleeper.Calls()
	require.NotEmpty(t, calls)
	for _, d := range calls {
		assert.Equal(t, 50*time.Millisecond, d)
	}

	e.SetPollInterval(0)
	assert.Equal(t, DefaultPollInterval, e.PollInterval(), "non-positive interval falls back to default")
}
