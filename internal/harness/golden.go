package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scorebox/internal/confval"
)

// snapshot renders the final scoreboard of a run as canonical JSON.
// Canonical form (sorted keys, fixed number formatting) keeps golden
// files byte-stable across runs and platforms.
func snapshot(result *Result) ([]byte, error) {
	report := make(confval.Array, len(result.Report))
	for i, line := range result.Report {
		report[i] = confval.Object{
			"reason": confval.String(line.Reason),
			"value":  confval.Int(int64(line.Value)),
		}
	}
	return confval.MarshalCanonical(confval.Object{
		"scenario": confval.String(result.ScenarioName),
		"total":    confval.Int(int64(result.Total)),
		"report":   report,
	})
}

// RunWithGolden executes a scenario, fails the test on any assertion
// failure, and compares the final scoreboard against the golden file
// testdata/golden/{scenario.Name}.golden.
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, f := range result.Failures {
		t.Errorf("scenario %s: %s", scenario.Name, f)
	}

	data, err := snapshot(result)
	if err != nil {
		return nil, fmt.Errorf("harness: snapshot: %w", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}
