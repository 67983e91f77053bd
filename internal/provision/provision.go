// Package provision puts the analysis artifact where the pipeline expects it.
package provision

import (
	"errors"
	"fmt"
	"os"

	"looprig/internal/fsutil"
	"looprig/internal/logging"
)

// Error means the artifact could not be found or copied into place. It is fatal.
type Error struct {
	Path   string
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provision %s from %s: %v", e.Path, e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Ensure makes sure dest exists, copying it from src when it does not. It
// returns dest.
func Ensure(dest, src string) (string, error) {
	logger := logging.New("provision")
	if isFile(dest) {
		logger.Info("artifact found", "path", dest)
		return dest, nil
	}
	logger.Info("artifact not found in root dir, copying", "path", dest, "source", src)
	if err := fsutil.CopyFile(src, dest); err != nil {
		return "", &Error{Path: dest, Source: src, Err: err}
	}
	if !isFile(dest) {
		return "", &Error{Path: dest, Source: src, Err: errors.New("artifact missing after copy")}
	}
	return dest, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
