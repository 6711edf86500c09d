package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with the given args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSuiteDir(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suite.cue"), []byte(content), 0o644))
	return dir
}

const flagSuite = `
suite: {
	name: "cli-test"
	checks: [
		{
			kind:     "file"
			id:       1
			points:   50
			reason:   "Flag restored"
			path:     "%s"
			contains: "ok"
		},
	]
}
`

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	_, err := execute(t, "--format", "xml", "validate", t.TempDir())
	assert.ErrorContains(t, err, "invalid format")
}

func TestValidate_ValidSuite(t *testing.T) {
	dir := writeSuiteDir(t, `suite: { checks: [{ kind: "user", id: 1, points: 5, reason: "r", name: "x" }] }`)

	out, err := execute(t, "validate", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Suite is valid (1 checks)")
}

func TestValidate_InvalidSuite(t *testing.T) {
	dir := writeSuiteDir(t, `suite: { checks: [{ kind: "file", id: 1, points: 5, reason: "r" }] }`)

	out, err := execute(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "path")
}

func TestValidate_MissingDir(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_FiniteTicks(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "flag.txt")
	require.NoError(t, os.WriteFile(flag, []byte("ok\n"), 0o644))
	dir := writeSuiteDir(t, "suite: { name: \"cli-test\", checks: [{ kind: \"file\", id: 1, points: 50, reason: \"Flag restored\", path: \""+flag+"\", contains: \"ok\" }] }")

	out, err := execute(t, "run", dir, "--ticks", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Flag restored")
	assert.Contains(t, out, "Total: 50")
}

func TestRun_JSONReport(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "flag.txt")
	require.NoError(t, os.WriteFile(flag, []byte("ok\n"), 0o644))
	dir := writeSuiteDir(t, "suite: { checks: [{ kind: \"file\", id: 1, points: 50, reason: \"Flag restored\", path: \""+flag+"\", contains: \"ok\" }] }")

	out, err := execute(t, "--format", "json", "run", dir, "--ticks", "1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRun_TraceDB(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "flag.txt")
	require.NoError(t, os.WriteFile(flag, []byte("ok\n"), 0o644))
	dir := writeSuiteDir(t, "suite: { checks: [{ kind: \"file\", id: 1, points: 50, reason: \"Flag restored\", path: \""+flag+"\", contains: \"ok\" }] }")
	traceDB := filepath.Join(t.TempDir(), "trace.db")

	_, err := execute(t, "run", dir, "--ticks", "2", "--trace-db", traceDB)
	require.NoError(t, err)

	// The recorded trace is readable afterwards.
	out, err := execute(t, "trace", "--db", traceDB)
	require.NoError(t, err)
	assert.Contains(t, out, "tick 0 started")
	assert.Contains(t, out, "Flag restored")
}

func TestTrace_FilterByCheck(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "flag.txt")
	require.NoError(t, os.WriteFile(flag, []byte("ok\n"), 0o644))
	dir := writeSuiteDir(t, "suite: { checks: [{ kind: \"file\", id: 1, points: 50, reason: \"Flag restored\", path: \""+flag+"\", contains: \"ok\" }] }")
	traceDB := filepath.Join(t.TempDir(), "trace.db")

	_, err := execute(t, "run", dir, "--ticks", "1", "--trace-db", traceDB)
	require.NoError(t, err)

	events, err := execute(t, "trace", "--db", traceDB, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(events), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTrace_MissingDB(t *testing.T) {
	_, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "nope.db"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_PassingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: cli-pass
ticks: 1
review_interval: 1
machine:
  users:
    - alice
checks:
  - kind: user
    id: 1
    points: 5
    reason: Created audit user
    name: alice
assertions:
  - type: total
    value: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pass.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS  cli-pass")
	assert.Contains(t, out, "1 passed, 0 failed")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: cli-fail
ticks: 1
checks:
  - kind: user
    id: 1
    points: 5
    reason: r
    name: ghost
assertions:
  - type: total
    value: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fail.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  cli-fail")
}

func TestRun_ConfigLayering(t *testing.T) {
	flag := filepath.Join(t.TempDir(), "flag.txt")
	require.NoError(t, os.WriteFile(flag, []byte("ok\n"), 0o644))
	dir := writeSuiteDir(t, "suite: { checks: [{ kind: \"file\", id: 1, points: 50, reason: \"Flag restored\", path: \""+flag+"\", contains: \"ok\" }] }")

	cfgDir := t.TempDir()
	base := filepath.Join(cfgDir, "base.yaml")
	require.NoError(t, os.WriteFile(base, []byte("review: 5\n"), 0o644))
	extra := filepath.Join(cfgDir, "extra.toml")
	require.NoError(t, os.WriteFile(extra, []byte("poll = \"1s\"\nreview = 9\n"), 0o644))

	out, err := execute(t, "run", dir, "--ticks", "1", "--config", base+","+extra)
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 50")
}

func TestRun_ConfigBadPollValue(t *testing.T) {
	dir := writeSuiteDir(t, `suite: { checks: [{ kind: "user", id: 1, points: 5, reason: "r", name: "x" }] }`)
	cfg := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"poll": "not-a-duration"}`), 0o644))

	_, err := execute(t, "run", dir, "--ticks", "1", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTest_FilterSkipsScenarios(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: other
ticks: 1
checks:
  - kind: user
    id: 1
    points: 5
    reason: r
    name: ghost
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "test", dir, "--filter", "hardening-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
