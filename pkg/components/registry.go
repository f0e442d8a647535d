// Package components declares the installable components and decides which of
// them are pre-selected or locked before the user sees the selection step.
package components

import (
	"fmt"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
)

// Component is an alias for common.Component.
type Component = common.Component

// Default returns the declarative component list for the configured product.
// Sizes of the copied payload are measured by the caller; appSize may be 0.
func Default(s config.Settings, appSize int64) []Component {
	return []Component{
		{
			ID:                 common.ComponentApp,
			Label:              s.App.Name,
			Description:        "Application files (required)",
			EstimatedSizeBytes: appSize,
			Selectable:         false,
			Selected:           true,
			Required:           true,
		},
		{
			ID:          common.ComponentShortcuts,
			Label:       "Shortcuts",
			Description: "Start menu entry and command-line launcher",
			Selectable:  true,
			Selected:    true,
		},
		{
			ID:          common.ComponentAssociation,
			Label:       fmt.Sprintf("Open %s files", s.App.FileExtension),
			Description: fmt.Sprintf("Associate %s project files with %s", s.App.FileExtension, s.App.Name),
			Selectable:  true,
			Selected:    true,
		},
		{
			ID:                 common.ComponentHeavy,
			Label:              "Runtime libraries",
			Description:        "Downloaded machine-learning runtime required to run OCR",
			EstimatedSizeBytes: s.Layout.HeavySizeBytes,
			Selectable:         true,
			Selected:           true,
		},
	}
}

// Find returns the component with the given id, or nil.
func Find(list []Component, id common.ComponentID) *Component {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

// IsSelected reports whether the component with the given id is selected.
func IsSelected(list []Component, id common.ComponentID) bool {
	c := Find(list, id)
	return c != nil && c.Selected
}

// TotalSize sums the estimated size of the selected components.
func TotalSize(list []Component) int64 {
	var total int64
	for _, c := range list {
		if c.Selected {
			total += c.EstimatedSizeBytes
		}
	}
	return total
}

// ApplySelection sets the user's choice on every optional component.
// ids lists the components the user wants; locked components keep their value
// and asking to change them is an error.
func ApplySelection(list []Component, ids []common.ComponentID) error {
	want := make(map[common.ComponentID]bool, len(ids))
	for _, id := range ids {
		if Find(list, id) == nil {
			return fmt.Errorf("unknown component %q", id)
		}
		want[id] = true
	}
	for i := range list {
		c := &list[i]
		if !c.Optional() {
			continue
		}
		if err := c.SetSelected(want[c.ID]); err != nil {
			return err
		}
	}
	return nil
}
