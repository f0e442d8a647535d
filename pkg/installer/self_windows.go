//go:build windows

package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

// releaseSelf moves the running uninstaller out of targetDir, since Windows
// refuses to delete a running image but allows renaming it on the same volume.
// The moved file is deleted on the next reboot.
func releaseSelf(targetDir string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(targetDir, exe)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	moved := filepath.Join(filepath.Dir(targetDir), "."+uuid.NewString()+".uninstall.exe")
	if err := os.Rename(exe, moved); err != nil {
		return fmt.Errorf("failed to move %s: %w", exe, err)
	}
	p, err := windows.UTF16PtrFromString(moved)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT)
}
