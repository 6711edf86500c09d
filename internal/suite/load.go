package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Load compiles a single CUE suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suite: read %s: %w", path, err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return Compile(v)
}

// LoadDir compiles every .cue file in a directory (sorted by name for
// deterministic registration order) and merges the results into one
// suite. Score ids must be unique across the whole directory.
func LoadDir(dir string) (*Suite, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("suite: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("suite: not a directory: %s", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("suite: scan %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("suite: no .cue files in %s", dir)
	}
	sort.Strings(paths)

	merged := &Suite{}
	seen := make(map[uint64]string)
	for _, path := range paths {
		s, err := Load(path)
		if err != nil {
			return nil, err
		}
		if merged.Name == "" {
			merged.Name = s.Name
		}
		for _, check := range s.Checks {
			if prev, dup := seen[check.ScoreID]; dup {
				return nil, fmt.Errorf("suite: %s: score id %d already used in %s", path, check.ScoreID, prev)
			}
			seen[check.ScoreID] = path
			merged.Checks = append(merged.Checks, check)
		}
	}
	return merged, nil
}
