package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockSimple(t *testing.T) {
	target := filepath.Join(t.TempDir(), "MangaOCRTool")

	unlock, err := Lock(context.Background(), target, time.Second)
	require.NoError(t, err)
	assert.FileExists(t, target+".lock")

	content, err := os.ReadFile(target + ".lock")
	require.NoError(t, err)
	assert.Contains(t, string(content), fmt.Sprintf(" %d", os.Getpid()))

	require.NoError(t, unlock())
	assert.NoFileExists(t, target+".lock")
	// Releasing twice is harmless.
	assert.NoError(t, unlock())
}

func TestLockStale(t *testing.T) {
	target := filepath.Join(t.TempDir(), "stale")

	// Pid beyond any pid_max.
	content := fmt.Sprintf("%s %d", time.Now().Format(time.RFC3339), 99999999)
	require.NoError(t, os.WriteFile(Path(target), []byte(content), 0644))

	unlock, err := Lock(context.Background(), target, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestLockMalformed(t *testing.T) {
	target := filepath.Join(t.TempDir(), "bad")
	require.NoError(t, os.WriteFile(Path(target), []byte("garbage"), 0644))
	old := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(Path(target), old, old))

	unlock, err := Lock(context.Background(), target, time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestLockBeingWrittenIsHeld(t *testing.T) {
	target := filepath.Join(t.TempDir(), "fresh")
	// Created by another process that has not written its pid yet.
	require.NoError(t, os.WriteFile(Path(target), nil, 0644))

	_, err := Lock(context.Background(), target, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.FileExists(t, Path(target))
}

func TestLockTimeout(t *testing.T) {
	target := filepath.Join(t.TempDir(), "held")

	unlock, err := Lock(context.Background(), target, time.Second)
	require.NoError(t, err)
	defer unlock()

	start := time.Now()
	_, err = Lock(context.Background(), target, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestLockCancelled(t *testing.T) {
	target := filepath.Join(t.TempDir(), "held")

	unlock, err := Lock(context.Background(), target, 0)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = Lock(ctx, target, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockConcurrent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "concurrent")

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		unlock, err := Lock(context.Background(), target, 5*time.Second)
		if !assert.NoError(t, err) {
			return
		}
		time.Sleep(500 * time.Millisecond)
		unlock()
	}()

	go func() {
		defer wg.Done()
		time.Sleep(100 * time.Millisecond)
		start := time.Now()
		unlock, err := Lock(context.Background(), target, 5*time.Second)
		if !assert.NoError(t, err) {
			return
		}
		assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond, "second holder should wait")
		unlock()
	}()

	wg.Wait()
}
