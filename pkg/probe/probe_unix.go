//go:build !windows

package probe

import "syscall"

// A file where a directory is expected along the marker path.
var syscallNotDir error = syscall.ENOTDIR
