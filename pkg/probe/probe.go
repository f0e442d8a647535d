// Package probe detects a previous heavy-dependency installation.
package probe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Result is the outcome of a probe.
type Result struct {
	Present bool
}

// Probe reports whether marker (relative to targetDir) exists as a regular file.
// A missing targetDir is reported as not present, not as an error.
func Probe(targetDir, marker string) (Result, error) {
	info, err := os.Stat(filepath.Join(targetDir, marker))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscallNotDir) {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("failed to probe %s: %w", targetDir, err)
	}
	return Result{Present: info.Mode().IsRegular()}, nil
}
