package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeCorpus(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("class X {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoad_SortedAndFiltered(t *testing.T) {
	dir := writeCorpus(t, "Stream2.java", "GAUSS2.java", "Stream1.java", "notes.txt")
	if err := os.Mkdir(filepath.Join(dir, "nested.java"), 0o755); err != nil {
		t.Fatal(err)
	}
	cases, err := Load(dir, ".java")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []TestCase{
		{Name: "GAUSS2", SourcePath: filepath.Join(dir, "GAUSS2.java")},
		{Name: "Stream1", SourcePath: filepath.Join(dir, "Stream1.java")},
		{Name: "Stream2", SourcePath: filepath.Join(dir, "Stream2.java")},
	}
	if diff := cmp.Diff(want, cases); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Duplicate(t *testing.T) {
	dir := writeCorpus(t, "A.java", "A.txt")
	_, err := Load(dir, "")
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("err = %v, want ErrDuplicateCase", err)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent"), ".java"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSelect(t *testing.T) {
	cases := []TestCase{{Name: "A"}, {Name: "B"}}

	got, err := Select(cases, All)
	if err != nil || len(got) != 2 {
		t.Fatalf("Select(all) = %v, %v", got, err)
	}
	got, err = Select(cases, "B")
	if err != nil || len(got) != 1 || got[0].Name != "B" {
		t.Fatalf("Select(B) = %v, %v", got, err)
	}

	_, err = Select(cases, "C")
	var unk *UnknownCaseError
	if !errors.As(err, &unk) {
		t.Fatalf("err = %v, want UnknownCaseError", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "all"}, unk.Allowed); diff != "" {
		t.Errorf("Allowed mismatch:\n%s", diff)
	}
}

func TestCaseName(t *testing.T) {
	for in, want := range map[string]string{
		"HPL_logsort1.java":      "HPL_logsort1",
		"/x/y/DB_JOIN_TWO2.java": "DB_JOIN_TWO2",
		"Odd.tar.gz":             "Odd",
	} {
		if got := CaseName(in); got != want {
			t.Errorf("CaseName(%q) = %q, want %q", in, got, want)
		}
	}
}
