// Package kernel looks up installed Jupyter kernel specs. It only reads
// kernel.json files; kernels are never started.
package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

var (
	// ErrFileAccess wraps failures to read a kernel directory or spec file.
	ErrFileAccess = errors.New("cannot read kernel spec")
	// ErrNotFound is returned by Find when no directory holds the kernel.
	ErrNotFound = errors.New("kernel not found")
	// ErrMalformed wraps kernel.json files that do not match the spec format.
	ErrMalformed = errors.New("malformed kernel spec")
)

// InterruptMode is how a kernel expects to be interrupted.
type InterruptMode string

const (
	InterruptSignal  InterruptMode = "signal"
	InterruptMessage InterruptMode = "message"
)

func (m *InterruptMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch InterruptMode(s) {
	case InterruptSignal, InterruptMessage:
		*m = InterruptMode(s)
		return nil
	}
	return fmt.Errorf("unknown interrupt_mode %q", s)
}

// Spec is the content of a kernel.json file.
type Spec struct {
	Argv          []string          `json:"argv"`
	DisplayName   string            `json:"display_name"`
	Language      string            `json:"language"`
	InterruptMode InterruptMode     `json:"interrupt_mode"`
	Env           map[string]string `json:"env"`
	Metadata      json.RawMessage   `json:"metadata"`
}

func (s *Spec) String() string {
	return s.DisplayName
}

// Entry is a kernel discovered in a directory.
type Entry struct {
	Name string
	Dir  string
	Spec *Spec
}

// Load reads and validates one kernel.json.
func Load(path string) (*Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	return decode(path, b)
}

func decode(path string, b []byte) (*Spec, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %s: expected a JSON object", ErrMalformed, path)
	}
	for _, key := range []string{"argv", "display_name", "language"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: %s: missing %q", ErrMalformed, path, key)
		}
	}

	spec := &Spec{InterruptMode: InterruptSignal}
	if err := json.Unmarshal(b, spec); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if len(spec.Argv) == 0 {
		return nil, fmt.Errorf("%w: %s: empty argv", ErrMalformed, path)
	}
	return spec, nil
}

// Find returns the spec named name from the first directory that has it.
func Find(dirs []string, name string) (*Entry, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name, "kernel.json")
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
		}
		spec, err := Load(path)
		if err != nil {
			return nil, err
		}
		return &Entry{Name: name, Dir: dir, Spec: spec}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// List returns the kernels installed in dir, sorted by name. A missing
// directory holds no kernels. Subdirectories without a readable kernel.json
// are skipped.
func List(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}

	var entries []Entry
	for _, it := range items {
		if !it.IsDir() {
			continue
		}
		spec, err := Load(filepath.Join(dir, it.Name(), "kernel.json"))
		if err != nil {
			slog.Debug("skipping kernel", "dir", dir, "name", it.Name(), "err", err)
			continue
		}
		entries = append(entries, Entry{Name: it.Name(), Dir: dir, Spec: spec})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}
