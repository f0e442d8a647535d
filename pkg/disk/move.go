package disk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

var rename = os.Rename

// Move relocates the directory src to dst. It renames when both are on the same
// volume and falls back to copy then delete when they are not. dst must not exist.
func Move(ctx context.Context, src, dst string) error {
	return MoveNotify(ctx, src, dst, nil)
}

// MoveNotify is Move with a hook for the copy fallback: copied runs once dst
// holds a complete copy and before src is deleted. An error from copied
// leaves both trees in place. copied is not called when the rename succeeds.
func MoveNotify(ctx context.Context, src, dst string, copied func() error) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("move destination %s already exists", dst)
	}
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errCrossDevice) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}

	slog.Debug("Rename across volumes, copying", "src", src, "dst", dst)
	if err := Copy(ctx, src, dst, nil); err != nil {
		return errors.Join(fmt.Errorf("failed to copy %s: %w", src, err), RemoveTree(dst))
	}
	if copied != nil {
		if err := copied(); err != nil {
			return fmt.Errorf("copied %s to %s: %w", src, dst, err)
		}
	}
	if err := RemoveTree(src); err != nil {
		return fmt.Errorf("copied %s but could not remove the original: %w", src, err)
	}
	return nil
}
