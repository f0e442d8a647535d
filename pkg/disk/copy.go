package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// Copy recursively copies source into target, overwriting existing files.
// exclude holds slash-separated paths relative to source; each names a subtree
// that is skipped entirely. File modes and symlinks are preserved.
//
// Any failure to write is fatal and nothing is undone.
func Copy(ctx context.Context, source, target string, exclude []string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("source tree: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source tree %s is not a directory", source)
	}
	if err := mkdir(target, info.Mode().Perm()); err != nil {
		return err
	}

	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		e = path.Clean(filepath.ToSlash(e))
		if e != "." && e != "" {
			skip[e] = true
		}
	}

	slog.Debug("Copying tree", "source", source, "target", target, "exclude", exclude)

	return filepath.WalkDir(source, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("failed to read %s: %w", p, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(source, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(filepath.ToSlash(rel), skip) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		dst := filepath.Join(target, rel)
		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return mkdir(dst, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			return copySymlink(p, dst)
		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(p, dst, info.Mode().Perm())
		default:
			slog.Debug("Skipping special file", "path", p)
			return nil
		}
	})
}

func excluded(rel string, skip map[string]bool) bool {
	for {
		if skip[rel] {
			return true
		}
		i := strings.LastIndex(rel, "/")
		if i < 0 {
			return false
		}
		rel = rel[:i]
	}
}

func mkdir(dir string, perm fs.FileMode) error {
	if err := os.MkdirAll(dir, perm|0700); err != nil {
		return writeError(dir, err)
	}
	return nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if errors.Is(err, fs.ErrPermission) {
		// Read-only leftovers from an earlier install are replaced.
		if rmErr := os.Remove(dst); rmErr == nil {
			out, err = os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
		}
	}
	if err != nil {
		return writeError(dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return writeError(dst, err)
	}
	if err := out.Close(); err != nil {
		return writeError(dst, err)
	}
	// OpenFile does not change the mode of an existing file.
	if err := os.Chmod(dst, perm); err != nil {
		return writeError(dst, err)
	}
	return nil
}

func copySymlink(src, dst string) error {
	link, err := os.Readlink(src)
	if err != nil {
		return fmt.Errorf("failed to read link %s: %w", src, err)
	}
	if err := os.RemoveAll(dst); err != nil {
		return writeError(dst, err)
	}
	if err := os.Symlink(link, dst); err != nil {
		return writeError(dst, err)
	}
	return nil
}

func writeError(p string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return &common.PermissionError{Path: p, Err: err}
	}
	return fmt.Errorf("failed to write %s: %w", p, err)
}
