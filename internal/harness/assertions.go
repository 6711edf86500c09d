package harness

import (
	"fmt"

	"github.com/roach88/scorebox/internal/audit"
	"github.com/roach88/scorebox/internal/engine"
)

// EvaluateAssertions checks every assertion against the finished run
// and returns one failure message per assertion that did not hold.
func EvaluateAssertions(e *engine.Engine, result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(e, result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(e *engine.Engine, result *Result, a Assertion) error {
	switch a.Type {
	case AssertTotal:
		if result.Total != a.Value {
			return fmt.Errorf("total: want %d, got %d", a.Value, result.Total)
		}
	case AssertScorePresent:
		if !e.HasScore(a.ID) {
			return fmt.Errorf("score_present: no score under id %d", a.ID)
		}
	case AssertScoreAbsent:
		if e.HasScore(a.ID) {
			return fmt.Errorf("score_absent: score %d is on the board", a.ID)
		}
	case AssertTraceCount:
		got := countEvents(result.Events, audit.EventType(a.Event), a.Check)
		if got != a.Count {
			return fmt.Errorf("trace_count: want %d %s events, got %d", a.Count, a.Event, got)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// countEvents counts trace events of one type, optionally narrowed to
// a single check id.
func countEvents(events []audit.Event, typ audit.EventType, checkID string) int {
	n := 0
	for _, ev := range events {
		if ev.Type != typ {
			continue
		}
		if checkID != "" && ev.CheckID != checkID {
			continue
		}
		n++
	}
	return n
}
