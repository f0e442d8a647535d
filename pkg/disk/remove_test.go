package disk

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liiesl/EasyScanlate/pkg/config"
)

func TestRemoveTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "app")
	writeTree(t, root, map[string]string{"a/b/c": "x", "d": "y"})

	require.NoError(t, RemoveTree(root))
	assert.NoDirExists(t, root)

	// Missing is fine.
	assert.NoError(t, RemoveTree(root))
}

func TestRemoveTreeCollectsErrors(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("needs unix permissions as non-root")
	}
	root := filepath.Join(t.TempDir(), "app")
	writeTree(t, root, map[string]string{"locked/f": "x", "free/g": "y", "h": "z"})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0555))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	err := RemoveTree(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join(locked, "f"))
	// Everything else was still removed.
	assert.NoDirExists(t, filepath.Join(root, "free"))
	assert.NoFileExists(t, filepath.Join(root, "h"))
}

func TestRemoveFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(p, nil, 0644))
	require.NoError(t, RemoveFile(p))
	assert.NoError(t, RemoveFile(p))
}

func TestMove(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "torch")
	writeTree(t, src, map[string]string{"version.py": "v", "lib/x": "x"})
	dst := filepath.Join(base, ".preserve")

	require.NoError(t, Move(context.Background(), src, dst))
	assert.NoDirExists(t, src)
	assert.FileExists(t, filepath.Join(dst, "lib", "x"))

	// Destination must not exist.
	writeTree(t, src, map[string]string{"y": "y"})
	assert.Error(t, Move(context.Background(), src, dst))
}

func crossVolume(t *testing.T) {
	orig := rename
	rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errCrossDevice}
	}
	t.Cleanup(func() { rename = orig })
}

func TestMoveAcrossVolumes(t *testing.T) {
	crossVolume(t)
	base := t.TempDir()
	src := filepath.Join(base, "torch")
	writeTree(t, src, map[string]string{"version.py": "v", "lib/x": "x"})
	dst := filepath.Join(base, ".preserve")

	calls := 0
	err := MoveNotify(context.Background(), src, dst, func() error {
		calls++
		// The original is still whole when the copy is reported.
		assert.FileExists(t, filepath.Join(src, "lib", "x"))
		assert.FileExists(t, filepath.Join(dst, "lib", "x"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoDirExists(t, src)
	assert.FileExists(t, filepath.Join(dst, "version.py"))
}

func TestMoveAcrossVolumesHookFailureKeepsBoth(t *testing.T) {
	crossVolume(t)
	base := t.TempDir()
	src := filepath.Join(base, "torch")
	writeTree(t, src, map[string]string{"version.py": "v"})
	dst := filepath.Join(base, ".preserve")

	err := MoveNotify(context.Background(), src, dst, func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.FileExists(t, filepath.Join(src, "version.py"))
	assert.FileExists(t, filepath.Join(dst, "version.py"))
}

func TestDirSize(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a": "12345", "b/c": "123"})
	size, count := DirSize(root)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, 2, count)

	size, count = DirSize(filepath.Join(root, "missing"))
	assert.Zero(t, size)
	assert.Zero(t, count)
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "0 B", FormatSize(-1))
}

func TestManagerClean(t *testing.T) {
	cfg := &config.Config{}
	w := cfg.Checkout()
	w.SetCacheDir(t.TempDir())
	w.SetStateDir(t.TempDir())
	cfg.Freeze()

	writeTree(t, cfg.GetDownloadDir(), map[string]string{"stale.7z": "x"})

	m := NewManager(cfg)
	stats, total := m.GetInfo()
	require.Len(t, stats, 3)
	assert.Equal(t, "Downloads", stats[0].Label)
	assert.Equal(t, int64(1), total)

	res, err := m.CleanDir()
	require.NoError(t, err)
	assert.Equal(t, "Clean complete", res.Output.Message)
	assert.DirExists(t, cfg.GetDownloadDir())
	assert.NoFileExists(t, filepath.Join(cfg.GetDownloadDir(), "stale.7z"))
}
