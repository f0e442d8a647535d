//go:build windows

package probe

import "syscall"

var syscallNotDir error = syscall.ERROR_PATH_NOT_FOUND
