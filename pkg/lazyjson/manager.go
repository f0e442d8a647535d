// Package lazyjson keeps a JSON document on disk behind a typed, lazily loaded
// value. Changes are tracked and written back atomically; a document that has
// become empty can be removed from disk instead of being written.
package lazyjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mutable
type manager[T any] struct {
	filepath string
	data     *T
	loaded   bool
	dirty    bool
	mu       sync.RWMutex
	opts     *options[T]
}

// Manager is a pointer to the internal manager implementation.
type Manager[T any] = *manager[T]

type options[T any] struct {
	indent       string
	fileMode     os.FileMode
	defaultValue func() *T
	isEmpty      func(*T) bool
}

// New creates a new Manager for the given file path. Nothing is read until
// the first Get or Modify.
func New[T any](filepath string, opts ...Option[T]) Manager[T] {
	mgr := &manager[T]{
		filepath: filepath,
		opts: &options[T]{
			indent:   "  ",
			fileMode: 0644,
		},
	}

	for _, opt := range opts {
		opt(mgr.opts)
	}

	return mgr
}

// Path returns the backing file.
func (m *manager[T]) Path() string {
	return m.filepath
}

// Get returns the current data, loading it lazily if needed.
// The returned pointer must only be read; use Modify to change it.
func (m *manager[T]) Get() (*T, error) {
	m.mu.RLock()
	if m.loaded {
		defer m.mu.RUnlock()
		return m.data, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return m.data, nil
	}

	return m.data, m.loadLocked()
}

// Modify executes a function that can modify the data.
// The data is lazily loaded if needed, and marked dirty when fn succeeds.
func (m *manager[T]) Modify(fn func(*T) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		if err := m.loadLocked(); err != nil {
			return err
		}
	}

	if err := fn(m.data); err != nil {
		return err
	}

	m.dirty = true
	return nil
}

// Save writes the data to disk if it's dirty.
func (m *manager[T]) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	if !m.loaded {
		return errors.New("cannot save: data not loaded")
	}

	return m.saveLocked()
}

// Reload forces a reload from disk, discarding any unsaved changes.
func (m *manager[T]) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = false
	m.dirty = false
	m.data = nil

	return m.loadLocked()
}

// IsDirty returns true if the data has been modified since the last load/save.
func (m *manager[T]) IsDirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// IsLoaded returns true if the data has been loaded from disk.
func (m *manager[T]) IsLoaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// loadLocked must be called with the write lock held.
// A missing file loads the default value and is not marked dirty.
func (m *manager[T]) loadLocked() error {
	data, err := os.ReadFile(m.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read file: %w", err)
		}
		if m.opts.defaultValue != nil {
			m.data = m.opts.defaultValue()
		} else {
			var zero T
			m.data = &zero
		}
		m.loaded = true
		m.dirty = false
		return nil
	}

	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", m.filepath, err)
	}

	m.data = &result
	m.loaded = true
	m.dirty = false

	return nil
}

// saveLocked writes data to the file atomically: a temp file in the same
// directory is synced and then renamed over the target.
// Must be called with write lock held.
func (m *manager[T]) saveLocked() error {
	if m.opts.isEmpty != nil && m.opts.isEmpty(m.data) {
		if err := os.Remove(m.filepath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", m.filepath, err)
		}
		m.dirty = false
		return nil
	}

	var data []byte
	var err error
	if m.opts.indent != "" {
		data, err = json.MarshalIndent(m.data, "", m.opts.indent)
	} else {
		data, err = json.Marshal(m.data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	dir := filepath.Dir(m.filepath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.filepath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempFile := tmp.Name()
	cleanup := func() { os.Remove(tempFile) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempFile, m.opts.fileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set mode on temp file: %w", err)
	}

	if err := os.Rename(tempFile, m.filepath); err != nil {
		cleanup()
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	m.dirty = false
	return nil
}
