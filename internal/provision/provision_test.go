package provision

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsure_AlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "MPCLoopParallelization.jar")
	if err := os.WriteFile(dest, []byte("in place"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Ensure(dest, filepath.Join(dir, "target", "absent.jar"))
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if got != dest {
		t.Errorf("path = %q, want %q", got, dest)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "in place" {
		t.Errorf("existing artifact overwritten: %q", data)
	}
}

func TestEnsure_CopiesFromSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "target", "MPCLoopParallelization.jar")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("PK\x03\x04jar"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "MPCLoopParallelization.jar")
	if _, err := Ensure(dest, src); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read provisioned artifact: %v", err)
	}
	if string(data) != "PK\x03\x04jar" {
		t.Errorf("content = %q", data)
	}
}

func TestEnsure_MissingSourceIsFatal(t *testing.T) {
	dir := t.TempDir()
	_, err := Ensure(filepath.Join(dir, "a.jar"), filepath.Join(dir, "target", "a.jar"))
	var pErr *Error
	if !errors.As(err, &pErr) {
		t.Fatalf("err = %v, want *provision.Error", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist underneath", err)
	}
}

func TestEnsure_SourceIsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Ensure(filepath.Join(dir, "a.jar"), dir)
	if err == nil {
		t.Fatal("expected error copying a directory")
	}
}
