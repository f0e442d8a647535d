// Package disk implements the file operations of the setup tool: copying the
// application tree into place, measuring it, moving subtrees between volumes,
// and best-effort removal. It also reports and cleans the tool's own storage.
package disk

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
)

type manager struct {
	cfg config.ReadOnly
}

// Manager is a pointer to the internal manager implementation.
type Manager = *manager

// NewManager creates a new disk manager for the setup tool's local storage.
func NewManager(cfg config.ReadOnly) Manager {
	return &manager{cfg: cfg}
}

// Usage represents disk usage information for a specific category of data.
type Usage struct {
	Label string
	Size  int64
	Items int
	Path  string
}

// Info renders the usage of the tool's own directories as a table.
func (m *manager) Info() (*common.ExecutionResult, error) {
	stats, total := m.GetInfo()
	table := &common.Table{
		Header: []string{"Type", "Size", "Items", "Path"},
	}
	for _, s := range stats {
		table.Rows = append(table.Rows, []string{s.Label, FormatSize(s.Size), fmt.Sprintf("%d", s.Items), s.Path})
	}

	return &common.ExecutionResult{
		Output: &common.Output{
			Table:   table,
			Message: fmt.Sprintf("Total: %s", FormatSize(total)),
		},
	}, nil
}

// CleanDir removes leftover scratch downloads.
func (m *manager) CleanDir() (*common.ExecutionResult, error) {
	cleaned, err := m.Clean()
	for _, dir := range cleaned {
		slog.Info("Cleaning", "path", dir)
	}
	if err != nil {
		return nil, err
	}
	return &common.ExecutionResult{
		Output: &common.Output{
			Message: "Clean complete",
		},
	}, nil
}

// GetInfo returns usage per directory, in a fixed order, and the total.
func (m *manager) GetInfo() ([]Usage, int64) {
	paths := []struct{ label, path string }{
		{"Downloads", m.cfg.GetDownloadDir()},
		{"State", m.cfg.GetStateDir()},
		{"Config", m.cfg.GetConfigDir()},
	}
	var total int64
	var stats []Usage
	for _, p := range paths {
		size, count := DirSize(p.path)
		total += size
		stats = append(stats, Usage{
			Label: p.label,
			Size:  size,
			Items: count,
			Path:  p.path,
		})
	}
	return stats, total
}

// Clean empties the download directory and returns the directories cleaned.
func (m *manager) Clean() ([]string, error) {
	dir := m.cfg.GetDownloadDir()
	if _, err := os.Stat(dir); err != nil {
		return nil, nil
	}
	if err := RemoveTree(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return []string{dir}, nil
}
