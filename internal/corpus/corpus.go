// Package corpus enumerates the test programs that make up a regression run.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// All is the selector sentinel meaning every test case.
const All = "all"

// ErrDuplicateCase is returned when two source files map to the same case name.
var ErrDuplicateCase = errors.New("duplicate test case name")

// TestCase is one corpus entry. Name is the source base name up to its first
// dot and is unique within a corpus.
type TestCase struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
}

// UnknownCaseError reports a selector that names no corpus entry.
type UnknownCaseError struct {
	Name    string
	Allowed []string
}

func (e *UnknownCaseError) Error() string {
	return fmt.Sprintf("unknown test case %q (allowed: %s)", e.Name, strings.Join(e.Allowed, ", "))
}

// Load lists the regular files in dir whose name ends in ext (any file when
// ext is empty). The result is sorted by file name, which is the order the
// pipeline runs and bundles them in.
func Load(dir, ext string) ([]TestCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	seen := make(map[string]string, len(entries))
	cases := make([]TestCase, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ext != "" && !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		name := CaseName(e.Name())
		if name == "" {
			continue
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q from %s and %s", ErrDuplicateCase, name, prev, e.Name())
		}
		seen[name] = e.Name()
		cases = append(cases, TestCase{Name: name, SourcePath: filepath.Join(dir, e.Name())})
	}
	return cases, nil
}

// CaseName derives the case name from a source file name.
func CaseName(file string) string {
	name, _, _ := strings.Cut(filepath.Base(file), ".")
	return name
}

// Select narrows cases to the selector: All keeps everything, anything else
// must name exactly one case.
func Select(cases []TestCase, sel string) ([]TestCase, error) {
	if sel == "" || sel == All {
		return cases, nil
	}
	for _, c := range cases {
		if c.Name == sel {
			return []TestCase{c}, nil
		}
	}
	return nil, &UnknownCaseError{Name: sel, Allowed: append(Names(cases), All)}
}

// Names returns the case names in corpus order.
func Names(cases []TestCase) []string {
	names := make([]string, len(cases))
	for i, c := range cases {
		names[i] = c.Name
	}
	return names
}
