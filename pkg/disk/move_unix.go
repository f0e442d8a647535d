//go:build !windows

package disk

import "golang.org/x/sys/unix"

var errCrossDevice error = unix.EXDEV
