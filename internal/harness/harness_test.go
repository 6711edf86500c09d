package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		path := path
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Passed(), "failures: %v", result.Failures)
		})
	}
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_RejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
ticks: 1
checks:
  - kind: user
    id: 1
    points: 5
    reason: r
    name: alice
assertion:
  - type: total
`)
	_, err := LoadScenario(path)
	assert.ErrorContains(t, err, "assertion")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "ticks: 1\nchecks:\n  - {kind: user, id: 1, points: 5, reason: r, name: x}\n",
			wantErr: "name is required",
		},
		{
			name:    "zero ticks",
			content: "name: s\nchecks:\n  - {kind: user, id: 1, points: 5, reason: r, name: x}\n",
			wantErr: "ticks must be positive",
		},
		{
			name:    "no checks",
			content: "name: s\nticks: 1\n",
			wantErr: "at least one check",
		},
		{
			name:    "bad kind",
			content: "name: s\nticks: 1\nchecks:\n  - {kind: registry, id: 1, points: 5, reason: r}\n",
			wantErr: "unknown check kind",
		},
		{
			name:    "file without path",
			content: "name: s\nticks: 1\nchecks:\n  - {kind: file, id: 1, points: 5, reason: r}\n",
			wantErr: "needs a path",
		},
		{
			name:    "bad assertion type",
			content: "name: s\nticks: 1\nchecks:\n  - {kind: user, id: 1, points: 5, reason: r, name: x}\nassertions:\n  - {type: score_eventually}\n",
			wantErr: "unknown type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRun_AssertionFailuresReported(t *testing.T) {
	scenario := &Scenario{
		Name:           "wrong-expectations",
		Ticks:          1,
		ReviewInterval: 1,
		Machine:        Machine{Users: []string{"alice"}},
		Checks: []CheckDef{
			{Kind: "user", ID: 1, Points: 5, Reason: "Created audit user", Name: "alice"},
		},
		Assertions: []Assertion{
			{Type: AssertTotal, Value: 99},
			{Type: AssertScoreAbsent, ID: 1},
			{Type: AssertScorePresent, ID: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0], "total")
	assert.Contains(t, result.Failures[1], "score_absent")
}

func TestRun_TraceIsRecorded(t *testing.T) {
	scenario := &Scenario{
		Name:           "traced",
		Ticks:          3,
		ReviewInterval: 1,
		Checks: []CheckDef{
			{Kind: "user", ID: 1, Points: 5, Reason: "r", Name: "ghost"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	// Three ticks, each with one tick_started and one evaluation.
	assert.Equal(t, 3, countEvents(result.Events, "tick_started", ""))
	assert.Equal(t, 3, countEvents(result.Events, "check_evaluated", "check-1"))
}

func TestSnapshot_Canonical(t *testing.T) {
	result := &Result{
		ScenarioName: "snap",
		Total:        15,
		Report:       nil,
	}
	data, err := snapshot(result)
	require.NoError(t, err)
	assert.Equal(t, `{"report":[],"scenario":"snap","total":15}`, string(data))
}
