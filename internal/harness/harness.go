// Package harness runs declarative scoring scenarios end to end.
//
// A scenario declares a simulated machine (files under a temp root,
// installed packages, user accounts), a set of checks, and a tick
// count. The harness steps a real engine through the ticks with a
// sequential id generator and an in-memory audit trace, so every run
// is deterministic and fit for golden-file comparison.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/scorebox/internal/audit"
	"github.com/roach88/scorebox/internal/engine"
	"github.com/roach88/scorebox/internal/ledger"
	"github.com/roach88/scorebox/internal/suite"
	"github.com/roach88/scorebox/internal/sysquery"
	"github.com/roach88/scorebox/internal/testutil"
)

// Result is the outcome of one scenario run.
type Result struct {
	ScenarioName string

	// Total and Report are the final scoreboard.
	Total  int
	Report []ledger.ReportLine

	// Events is the full audit trace, in seq order.
	Events []audit.Event

	// Failures holds assertion failure messages. Empty means passed.
	Failures []string
}

// Passed reports whether every assertion held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// machineState backs the app and user probers with the scenario's
// declared package and user sets.
type machineState struct {
	packages map[string]bool
	users    map[string]bool
}

func newMachineState(m Machine) *machineState {
	st := &machineState{
		packages: make(map[string]bool, len(m.Packages)),
		users:    make(map[string]bool, len(m.Users)),
	}
	for _, p := range m.Packages {
		st.packages[p] = true
	}
	for _, u := range m.Users {
		st.users[u] = true
	}
	return st
}

func (m *machineState) Installed(_ context.Context, name string, _ sysquery.InstallSource) (bool, error) {
	return m.packages[name], nil
}

func (m *machineState) Exists(name string) (bool, error) {
	return m.users[name], nil
}

// Run executes a scenario and returns its result.
//
// Each run gets a fresh temp root for file fixtures and a fresh
// in-memory audit trace. The engine is stepped tick by tick, never
// started as a background loop, so runs take no wall-clock time.
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "scorebox-harness-*")
	if err != nil {
		return nil, fmt.Errorf("harness: temp root: %w", err)
	}
	defer os.RemoveAll(root)

	trace, err := audit.Open(audit.InMemory)
	if err != nil {
		return nil, fmt.Errorf("harness: open trace: %w", err)
	}
	defer trace.Close()

	e := engine.New(
		engine.WithIDGenerator(testutil.NewSeqIDGenerator("check")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithRecorder(trace),
	)
	if scenario.ReviewInterval > 0 {
		e.SetReviewInterval(scenario.ReviewInterval)
	}

	s := &suite.Suite{Name: scenario.Name}
	for i, c := range scenario.Checks {
		spec, err := compileCheck(c, root)
		if err != nil {
			return nil, fmt.Errorf("harness: check %d: %w", i, err)
		}
		s.Checks = append(s.Checks, spec)
	}

	machine := newMachineState(scenario.Machine)
	suite.Bind(e, s, suite.BindOptions{Packages: machine, Users: machine})

	for tick := 0; tick < scenario.Ticks; tick++ {
		if err := applyFixtures(root, scenario.Files, tick); err != nil {
			return nil, err
		}
		e.RunTick()
	}

	events, err := trace.Events(context.Background())
	if err != nil {
		return nil, fmt.Errorf("harness: read trace: %w", err)
	}

	result := &Result{
		ScenarioName: scenario.Name,
		Total:        e.TotalScore(),
		Report:       e.ScoreReport(),
		Events:       events,
	}
	result.Failures = EvaluateAssertions(e, result, scenario.Assertions)
	return result, nil
}

// applyFixtures materializes every fixture scheduled for the tick.
func applyFixtures(root string, files []FileFixture, tick int) error {
	for _, f := range files {
		if f.AtTick != tick {
			continue
		}
		path := joinRoot(root, f.Path)
		if f.Remove {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("harness: remove fixture %s: %w", f.Path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("harness: fixture dir for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("harness: write fixture %s: %w", f.Path, err)
		}
	}
	return nil
}

func joinRoot(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
