// Package common provides shared types and utilities used across the setup tool.
// It includes the installable component model, the persisted installation record,
// and the execution results used for communication between the installer and the CLI.
package common

import (
	"fmt"
	"time"
)

// ExecutionResult represents the outcome of a setup operation.
type ExecutionResult struct {
	// ExitCode is the status code the process should exit with.
	ExitCode int
	// Output is optional structured output to render on the console.
	Output *Output
}

// Output holds structured data to be rendered by the display layer.
type Output struct {
	Message string
	KV      []KV
	Table   *Table
}

// KV is a single key/value line of output.
type KV struct {
	Key   string
	Value string
}

// Table is a simple header + rows table.
type Table struct {
	Header []string
	Rows   [][]string
}

// ComponentID identifies one installable component.
type ComponentID string

const (
	// ComponentApp is the application payload copied from the build output tree.
	ComponentApp ComponentID = "app"
	// ComponentShortcuts creates start menu / desktop entries.
	ComponentShortcuts ComponentID = "shortcuts"
	// ComponentAssociation registers the project file extension.
	ComponentAssociation ComponentID = "association"
	// ComponentHeavy is the separately distributed runtime library directory.
	ComponentHeavy ComponentID = "heavy"
)

// Component is one selectable/lockable unit of the install plan.
type Component struct {
	ID          ComponentID
	Label       string
	Description string
	// EstimatedSizeBytes is shown to the user and summed into the stored install size.
	EstimatedSizeBytes int64
	// Selectable is false for components that never appear in the selection step.
	Selectable bool
	// Locked components keep their Selected value; the user cannot toggle them.
	Locked   bool
	Selected bool
	// Required components are always selected and are never offered as optional.
	Required bool
}

// SetSelected changes the selection of a component on behalf of the user.
// Locked and required components reject any change to their current value.
func (c *Component) SetSelected(v bool) error {
	if c.Required && !v {
		return fmt.Errorf("%w: %s is required", ErrComponentLocked, c.ID)
	}
	if c.Locked && c.Selected != v {
		return fmt.Errorf("%w: %s", ErrComponentLocked, c.ID)
	}
	c.Selected = v
	return nil
}

// Optional reports whether the component is shown as a user choice.
func (c Component) Optional() bool {
	return c.Selectable && !c.Required
}

// InstallationState is the persisted record describing one installation.
// It is created on the first successful install, overwritten on reinstall
// and deleted on a complete uninstall.
type InstallationState struct {
	AppID            string    `json:"app_id"`
	DisplayName      string    `json:"display_name"`
	Version          string    `json:"version"`
	Publisher        string    `json:"publisher"`
	InstallDir       string    `json:"install_dir"`
	UninstallCommand string    `json:"uninstall_command"`
	EstimatedSizeKB  int64     `json:"estimated_size_kb"`
	InstallDate      time.Time `json:"install_date"`
}

// Symlink represents a symlink that should be created on the host.
type Symlink struct {
	Source string // Absolute path the symlink points to
	Target string // Path of the symlink itself, relative to the base directory
}

// UninstallMode selects what an uninstall removes.
type UninstallMode string

const (
	// UninstallComplete removes the whole install directory.
	UninstallComplete UninstallMode = "complete"
	// UninstallPreserveHeavy keeps the heavy-dependency subtree in place.
	UninstallPreserveHeavy UninstallMode = "preserve"
)

// ParseUninstallMode accepts "complete" and "preserve".
func ParseUninstallMode(s string) (UninstallMode, error) {
	switch UninstallMode(s) {
	case UninstallComplete, UninstallPreserveHeavy:
		return UninstallMode(s), nil
	default:
		return "", fmt.Errorf("unknown uninstall mode %q (want complete or preserve)", s)
	}
}
