//go:build !windows

package installer

// releaseSelf is a no-op where a running executable can be deleted.
func releaseSelf(targetDir string) error {
	return nil
}
