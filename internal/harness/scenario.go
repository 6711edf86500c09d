package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scorebox/internal/suite"
	"github.com/roach88/scorebox/internal/sysquery"
)

// Scenario defines one deterministic scoring run: a simulated machine,
// a set of declarative checks, a fixed number of ticks, and assertions
// on the resulting scoreboard and audit trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Ticks is the number of engine passes to step through.
	Ticks int `yaml:"ticks"`

	// ReviewInterval sets the completed-check revisit cadence.
	// Zero keeps the engine default.
	ReviewInterval uint64 `yaml:"review_interval,omitempty"`

	// Machine declares the simulated package and user state.
	Machine Machine `yaml:"machine,omitempty"`

	// Files are filesystem fixtures, applied before the tick named by
	// their at_tick field. Paths are relative to a per-run temp root.
	Files []FileFixture `yaml:"files,omitempty"`

	// Checks are the declarative checks to bind, in suite syntax.
	Checks []CheckDef `yaml:"checks"`

	// Assertions validate the final scoreboard and audit trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Machine is the simulated collaborator state for app and user checks.
type Machine struct {
	Packages []string `yaml:"packages,omitempty"`
	Users    []string `yaml:"users,omitempty"`
}

// FileFixture creates or removes a file under the scenario temp root.
type FileFixture struct {
	Path    string `yaml:"path"`
	Content string `yaml:"content,omitempty"`

	// Remove deletes the file instead of writing it.
	Remove bool `yaml:"remove,omitempty"`

	// AtTick is the zero-based tick immediately before which the
	// fixture is applied. Zero means before the first tick.
	AtTick int `yaml:"at_tick,omitempty"`
}

// CheckDef mirrors the suite check shape in YAML. File paths are
// relative to the scenario temp root.
type CheckDef struct {
	Kind      string `yaml:"kind"`
	ID        uint64 `yaml:"id"`
	Points    int    `yaml:"points"`
	Reason    string `yaml:"reason"`
	Path      string `yaml:"path,omitempty"`
	Contains  string `yaml:"contains,omitempty"`
	Owner     string `yaml:"owner,omitempty"`
	Name      string `yaml:"name,omitempty"`
	Source    string `yaml:"source,omitempty"`
	Forbidden bool   `yaml:"forbidden,omitempty"`
}

// Assertion validates the scoreboard or the audit trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Value is the expected total (total).
	Value int `yaml:"value,omitempty"`

	// ID is a score id (score_present, score_absent).
	ID uint64 `yaml:"id,omitempty"`

	// Event is an audit event type (trace_count).
	Event string `yaml:"event,omitempty"`

	// Check narrows trace_count to one check id.
	Check string `yaml:"check,omitempty"`

	// Count is the expected event count (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTotal        = "total"
	AssertScorePresent = "score_present"
	AssertScoreAbsent  = "score_absent"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read scenario: %w", err)
	}

	var scenario Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("harness: parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	if len(s.Checks) == 0 {
		return fmt.Errorf("at least one check is required")
	}
	for i, c := range s.Checks {
		if _, err := compileCheck(c, ""); err != nil {
			return fmt.Errorf("check %d: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTotal, AssertScorePresent, AssertScoreAbsent, AssertTraceCount:
		default:
			return fmt.Errorf("assertion %d: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// compileCheck converts a YAML check definition into a suite spec,
// anchoring file paths under root.
func compileCheck(c CheckDef, root string) (suite.Spec, error) {
	spec := suite.Spec{
		ScoreID:   c.ID,
		Points:    c.Points,
		Reason:    c.Reason,
		Contains:  c.Contains,
		Name:      c.Name,
		Forbidden: c.Forbidden,
		Source:    sysquery.SourceDefault,
	}

	switch suite.Kind(c.Kind) {
	case suite.KindFile:
		if c.Path == "" {
			return spec, fmt.Errorf("file check needs a path")
		}
		spec.Kind = suite.KindFile
		spec.Path = joinRoot(root, c.Path)
		spec.Owner = c.Owner
	case suite.KindApp:
		if c.Name == "" {
			return spec, fmt.Errorf("app check needs a name")
		}
		spec.Kind = suite.KindApp
		if c.Source != "" {
			src, err := sysquery.ParseSource(c.Source)
			if err != nil {
				return spec, err
			}
			spec.Source = src
		}
	case suite.KindUser:
		if c.Name == "" {
			return spec, fmt.Errorf("user check needs a name")
		}
		spec.Kind = suite.KindUser
	default:
		return spec, fmt.Errorf("unknown check kind %q", c.Kind)
	}
	return spec, nil
}
