package archive

import (
	"archive/tar"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
)

func makeRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "all_tests")
	files := map[string]string{
		"A/g1.txt":     "graph a",
		"A/output.log": "log a",
		"B/g1.txt":     "graph a",
		"B/q2.py":      "s.check()",
		"B/output.log": "log a\nlog b",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestCreate_RoundTrip(t *testing.T) {
	root := makeRoot(t)
	dest := filepath.Join(t.TempDir(), "all_tests.tgz")
	if err := Create(root, dest); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out := t.TempDir()
	if err := Extract(dest, out); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	top, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].Name() != "all_tests" {
		t.Errorf("archive should hold a single root, got %v", top)
	}
	want, got := tree(t, root), tree(t, filepath.Join(out, "all_tests"))
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("extracted tree mismatch (-want +got):\n%s", diff)
	}
}

// tree maps every path under dir, relative and slash-separated, to its file
// content; directories map to "/".
func tree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || p == dir {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = "/"
			return nil
		}
		b, err := os.ReadFile(p)
		out[filepath.ToSlash(rel)] = string(b)
		return err
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

func TestCreate_ReplacesExistingAndIsStable(t *testing.T) {
	root := makeRoot(t)
	dest := filepath.Join(t.TempDir(), "all_tests.tgz")
	if err := os.WriteFile(dest, []byte("not a tarball"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Create(root, dest); err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := Digest(dest)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if err := Create(root, dest); err != nil {
		t.Fatalf("second Create: %v", err)
	}
	second, err := Digest(dest)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("archive members changed between identical runs:\n%s", diff)
	}
	if len(first) != 5 {
		t.Errorf("members = %d, want 5: %v", len(first), first)
	}
	if first["all_tests/A/g1.txt"] != first["all_tests/B/g1.txt"] {
		t.Error("identical bundle files hash differently")
	}
}

func TestCreate_MissingRoot(t *testing.T) {
	dir := t.TempDir()
	if err := Create(filepath.Join(dir, "nope"), filepath.Join(dir, "x.tgz")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestExtract_RejectsEscapingEntries(t *testing.T) {
	src := filepath.Join(t.TempDir(), "evil.tgz")
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	body := []byte("x")
	if err := tw.WriteHeader(&tar.Header{Name: "../escape.txt", Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(body); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	out := filepath.Join(t.TempDir(), "out")
	if err := Extract(src, out); err == nil {
		t.Fatal("expected escape to be rejected")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(out), "escape.txt")); !os.IsNotExist(err) {
		t.Error("escaping entry was written")
	}
}
