// Package collect snapshots the by-products an analysis run leaves in the
// exchange directories into a per-test-case bundle.
package collect

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"looprig/internal/fsutil"
	"looprig/internal/logging"
)

// ErrBundleExists is returned when the bundle directory for a case is already
// present. Bundles are never merged or overwritten.
var ErrBundleExists = errors.New("bundle already exists")

// Error is a filesystem precondition failure while collecting. No partial
// bundle recovery is attempted.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("collect: %s %s: %v", e.Op, e.Path, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Exchange is the set of process-wide locations the analysis artifact writes
// into on every run: a list of directories and one shared log file.
type Exchange struct {
	Dirs    []string
	LogFile string
}

// Reset empties every exchange directory, creating it if needed. The log file
// is left alone.
func (x Exchange) Reset() error {
	for _, d := range x.Dirs {
		if err := fsutil.RecreateDir(d); err != nil {
			return &Error{Op: "reset", Path: d, Err: err}
		}
	}
	return nil
}

// Bundle is the snapshot taken for one test case.
type Bundle struct {
	Case  string   `json:"case"`
	Dir   string   `json:"dir"`
	Files []string `json:"files"` // base names, sorted
}

// Collector copies the current exchange state into bundles.
type Collector struct {
	Exchange Exchange
}

// Collect creates root/caseName (which must not exist) and copies into it,
// by file name, every regular file (or symlink to one) currently in each
// exchange directory plus the log file. Exchange directories are read as
// they are; since nothing clears them between runs, a later bundle also
// carries files written by earlier runs.
func (c *Collector) Collect(caseName, root string) (*Bundle, error) {
	logger := logging.New("collect")
	if caseName == "" || caseName != filepath.Base(caseName) {
		return nil, &Error{Op: "create bundle", Path: caseName, Err: fs.ErrInvalid}
	}
	dir := filepath.Join(root, caseName)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%w: %w", ErrBundleExists, err)
		}
		return nil, &Error{Op: "create bundle", Path: dir, Err: err}
	}

	copied := make(map[string]string)
	for _, x := range c.Exchange.Dirs {
		entries, err := os.ReadDir(x)
		if err != nil {
			return nil, &Error{Op: "read exchange dir", Path: x, Err: err}
		}
		for _, e := range entries {
			src := filepath.Join(x, e.Name())
			if !e.Type().IsRegular() {
				// Symlinks are followed; only their targets' type counts.
				info, err := os.Stat(src)
				if err != nil {
					return nil, &Error{Op: "stat", Path: src, Err: err}
				}
				if !info.Mode().IsRegular() {
					logger.Warn("skipping non-regular entry", "path", src, "mode", info.Mode().String())
					continue
				}
			}
			if prev, ok := copied[e.Name()]; ok {
				logger.Warn("file name collision across exchange dirs, later copy wins", "name", e.Name(), "first", prev, "second", src)
			}
			if err := fsutil.CopyFile(src, filepath.Join(dir, e.Name())); err != nil {
				return nil, &Error{Op: "copy", Path: src, Err: err}
			}
			copied[e.Name()] = src
		}
	}

	logName := filepath.Base(c.Exchange.LogFile)
	if prev, ok := copied[logName]; ok {
		logger.Warn("exchange file shares the log file name, log copy wins", "name", logName, "overwritten", prev)
	}
	if err := fsutil.CopyFile(c.Exchange.LogFile, filepath.Join(dir, logName)); err != nil {
		return nil, &Error{Op: "copy log", Path: c.Exchange.LogFile, Err: err}
	}
	copied[logName] = c.Exchange.LogFile

	b := &Bundle{Case: caseName, Dir: dir, Files: make([]string, 0, len(copied))}
	for name := range copied {
		b.Files = append(b.Files, name)
	}
	sort.Strings(b.Files)
	logger.Info("collected bundle", "case", caseName, "files", len(b.Files), "dir", dir)
	return b, nil
}
