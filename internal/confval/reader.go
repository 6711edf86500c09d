package confval

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Reader resolves configuration keys across an ordered list of source
// files. Lookup returns the value from the first source that parses
// successfully and contains the requested key; sources that are
// missing, unreadable, or unparsable in every candidate format are
// skipped, absence is never an error.
//
// Thread-safety: AddSource and Lookup are safe for concurrent use.
type Reader struct {
	mu      sync.Mutex
	sources []string
}

// NewReader creates a reader over the given source files, consulted in
// order.
func NewReader(paths ...string) *Reader {
	return &Reader{sources: append([]string(nil), paths...)}
}

// AddSource appends a source file to the lookup order.
func (r *Reader) AddSource(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, path)
}

// Sources returns a copy of the lookup order.
func (r *Reader) Sources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sources...)
}

// Lookup resolves a top-level key. Returns Null when no source
// contains it. The error is non-nil only when a source contained the
// key but its value could not be represented (e.g. an unsupported
// type), so callers can distinguish "absent" from "broken".
func (r *Reader) Lookup(key string) (Value, error) {
	for _, path := range r.Sources() {
		doc, ok := decodeFile(path)
		if !ok {
			continue
		}
		raw, ok := doc[key]
		if !ok {
			continue
		}
		return FromAny(raw)
	}
	return Null{}, nil
}

// decodeFile parses a source file into a top-level key map, trying the
// format its extension names first and falling back to JSON, YAML,
// then TOML.
func decodeFile(path string) (map[string]any, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	for _, decode := range decodersFor(path) {
		if doc, err := decode(data); err == nil {
			return doc, true
		}
	}
	return nil, false
}

type decoder func([]byte) (map[string]any, error)

func decodersFor(path string) []decoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return []decoder{decodeJSON}
	case ".yaml", ".yml":
		return []decoder{decodeYAML}
	case ".toml":
		return []decoder{decodeTOML}
	default:
		return []decoder{decodeJSON, decodeYAML, decodeTOML}
	}
}

func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	// Numbers stay json.Number so FromAny can keep the int/float split.
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeTOML(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
