package shell

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// CreateSymlinks creates symlinks on the host filesystem within homePath.
// It ensures parent directories exist and replaces any existing files at the target location.
func CreateSymlinks(homePath string, symlinks []common.Symlink) error {
	for _, s := range symlinks {
		linkPath := filepath.Join(homePath, s.Target)

		if err := os.MkdirAll(filepath.Dir(linkPath), 0755); err != nil {
			return err
		}

		if _, err := os.Lstat(linkPath); err == nil {
			if err := os.Remove(linkPath); err != nil {
				return err
			}
		}

		if err := os.Symlink(s.Source, linkPath); err != nil {
			return fmt.Errorf("failed to link %s: %w", linkPath, err)
		}
	}
	return nil
}

// RemoveSymlinks deletes the links created by CreateSymlinks. A link that is
// missing, or that now points somewhere else, is left alone.
func RemoveSymlinks(homePath string, symlinks []common.Symlink) error {
	var errs []error
	for _, s := range symlinks {
		linkPath := filepath.Join(homePath, s.Target)
		dest, err := os.Readlink(linkPath)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrInvalid) {
				errs = append(errs, err)
			}
			continue
		}
		if dest != s.Source {
			continue
		}
		if err := os.Remove(linkPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", linkPath, err))
		}
	}
	return errors.Join(errs...)
}
