package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"looprig/internal/corpus"
	"looprig/internal/invoke"
	"looprig/internal/invoke/invoketest"
)

func testCases(dir string, names ...string) []corpus.TestCase {
	out := make([]corpus.TestCase, len(names))
	for i, n := range names {
		out[i] = corpus.TestCase{Name: n, SourcePath: filepath.Join(dir, n+".java")}
	}
	return out
}

func newStage(t *testing.T, fake *invoketest.Fake) *Stage {
	t.Helper()
	return &Stage{
		Invoker: fake,
		OutDir:  filepath.Join(t.TempDir(), "out"),
		Command: []string{"javac", "{file}", "-d", "{out}"},
	}
}

func TestCompile_AllRecreatesOutDir(t *testing.T) {
	fake := &invoketest.Fake{}
	s := newStage(t, fake)
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(s.OutDir, "Stale.class")
	if err := os.WriteFile(stale, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Compile(context.Background(), testCases("src", "A", "B"), corpus.All)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, res.Compiled); diff != "" {
		t.Errorf("Compiled mismatch:\n%s", diff)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale output survived: %v", err)
	}
	want := [][]string{
		{"javac", filepath.Join("src", "A.java"), "-d", s.OutDir},
		{"javac", filepath.Join("src", "B.java"), "-d", s.OutDir},
	}
	if diff := cmp.Diff(want, fake.Argvs()); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_FailFast(t *testing.T) {
	fake := &invoketest.Fake{Func: func(inv invoke.Invocation) *invoke.Outcome {
		if inv.Args[1] == filepath.Join("src", "B.java") {
			return &invoke.Outcome{ExitCode: 1, Stderr: []byte("B.java:3: error: ';' expected\n")}
		}
		return &invoke.Outcome{}
	}}
	s := newStage(t, fake)

	res, err := s.Compile(context.Background(), testCases("src", "A", "B", "C", "D"), corpus.All)
	var bErr *Error
	if !errors.As(err, &bErr) {
		t.Fatalf("err = %v, want *build.Error", err)
	}
	if bErr.Case.Name != "B" {
		t.Errorf("failed case = %q, want B", bErr.Case.Name)
	}
	if diff := cmp.Diff([]string{"A"}, res.Compiled); diff != "" {
		t.Errorf("Compiled mismatch:\n%s", diff)
	}
	if n := len(fake.Calls()); n != 2 {
		t.Errorf("compiler invoked %d times, want 2 (nothing after the failure)", n)
	}
}

func TestCompile_SingleCaseKeepsOutDir(t *testing.T) {
	fake := &invoketest.Fake{}
	s := newStage(t, fake)
	if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(s.OutDir, "A.class")
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := s.Compile(context.Background(), testCases("src", "A", "B"), "B")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, res.Compiled); diff != "" {
		t.Errorf("Compiled mismatch:\n%s", diff)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("existing output removed: %v", err)
	}
}

func TestCompile_UnknownSelector(t *testing.T) {
	s := newStage(t, &invoketest.Fake{})
	_, err := s.Compile(context.Background(), testCases("src", "A"), "Z")
	var unk *corpus.UnknownCaseError
	if !errors.As(err, &unk) {
		t.Fatalf("err = %v, want UnknownCaseError", err)
	}
}

func TestCompile_SpawnFailureIsBuildError(t *testing.T) {
	spawn := errors.New("javac: not found")
	fake := &invoketest.Fake{Func: func(invoke.Invocation) *invoke.Outcome {
		return &invoke.Outcome{ExitCode: -1, SpawnErr: spawn}
	}}
	_, err := newStage(t, fake).Compile(context.Background(), testCases("src", "A"), corpus.All)
	if !errors.Is(err, spawn) {
		t.Fatalf("err = %v, want wrapped spawn error", err)
	}
}
