// Package lock serializes setup runs on one install directory with a
// "<target>.lock" file holding "<timestamp> <pid>".
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrTimeout is returned when another live process kept the lock for longer
// than the allowed wait.
var ErrTimeout = errors.New("timed out waiting for lock")

const pollInterval = 200 * time.Millisecond

// writeGrace is how long a lock file without a pid is taken to be held by an
// owner that has created it but not yet written to it.
const writeGrace = 5 * time.Second

// Path returns the lock file used for target.
func Path(target string) string {
	return filepath.Clean(target) + ".lock"
}

// Lock attempts to lock the given path (file or folder) by creating a .lock file.
// If the lock exists, it checks if the PID in the lock file is still alive.
// If the process is alive, it waits up to timeout (0 waits until ctx is done).
// If the process is dead, it cleans up the stale lock and acquires it.
// Returns an unlock function.
func Lock(ctx context.Context, target string, timeout time.Duration) (func() error, error) {
	lockFile := Path(target)

	if err := os.MkdirAll(filepath.Dir(lockFile), 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent dir for lock: %w", err)
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	waiting := false
	for {
		f, err := os.OpenFile(lockFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), os.Getpid())
			if _, err := f.WriteString(content); err != nil {
				f.Close()
				os.Remove(lockFile)
				return nil, fmt.Errorf("failed to write to lock file: %w", err)
			}
			f.Close()
			slog.Debug("Acquired lock", "path", lockFile)

			return func() error {
				if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to release lock: %w", err)
				}
				return nil
			}, nil
		}

		if !os.IsExist(err) {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}

		pid, age, ok := readHolder(lockFile)
		switch {
		case !ok:
			// Vanished between create and read; retry at once.
			continue
		case pid <= 0 && age < writeGrace:
			// Owner is between create and write.
		case pid <= 0 || !isPidAlive(pid):
			slog.Debug("Removing stale lock", "path", lockFile, "pid", pid)
			os.Remove(lockFile)
			continue
		}

		if !waiting {
			slog.Info("Waiting for another setup process", "pid", pid, "lock", lockFile)
			waiting = true
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("%w %s held by pid %d", ErrTimeout, lockFile, pid)
		case <-time.After(pollInterval):
		}
	}
}

// readHolder returns the pid recorded in the lock file and the file's age.
// A malformed file yields pid 0; ok is false when the file is gone.
func readHolder(lockFile string) (pid int, age time.Duration, ok bool) {
	fi, err := os.Stat(lockFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false
		}
		return os.Getpid(), 0, true
	}
	age = time.Since(fi.ModTime())
	content, err := os.ReadFile(lockFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, false
		}
		// Unreadable, possibly mid-write by its owner. Treat as held by us so we wait.
		return os.Getpid(), age, true
	}
	parts := strings.Fields(string(content))
	if len(parts) < 2 {
		return 0, age, true
	}
	pid, err = strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, age, true
	}
	return pid, age, true
}
