// Package installer runs the install and uninstall pipelines. An install is a
// state machine over stages: probe the target, plan components,
// let the user choose, copy the application, fetch and extract the heavy
// dependency, then record the installation. A failed fetch or extraction
// rolls the whole installation back.
package installer

import (
	"context"
	"time"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/components"
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/display"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
)

// Request holds the caller's choices for one install.
type Request struct {
	// SourceDir is the build output tree; empty means layout.source_dir.
	SourceDir string
	// TargetDir is the install directory; empty means layout.install_dir,
	// offered to the user for confirmation unless Silent.
	TargetDir string
	Silent    bool
	// SetupBinary is copied into the target as the uninstaller; empty means
	// the running executable.
	SetupBinary string
}

// Plan is the state passed between install stages. Every path is explicit;
// nothing is read from process-wide state.
// Mutable
type Plan struct {
	Settings   config.Settings
	SourceDir  string
	TargetDir  string
	Silent     bool
	SetupBin   string
	Probe      probe.Result
	Components *components.Plan
	// ArchiveURL and DownloadPath are set only when the heavy dependency is fetched.
	ArchiveURL   string
	DownloadPath string
	// Previous is the record of an earlier install, if any.
	Previous *common.InstallationState
	// Installed is the record written on success.
	Installed *common.InstallationState

	task display.Task
}

// Stage represents a single step in the multi-stage installation pipeline.
type Stage func(ctx context.Context, plan *Plan) error

// Result reports how an install or uninstall ended. It is returned together
// with the error, if any.
type Result struct {
	State   State
	History []State
	Plan    *Plan
	// Mode is set for uninstalls.
	Mode     common.UninstallMode
	Duration time.Duration
}

// Selected reports whether the finished plan had component id selected.
func (r *Result) Selected(id common.ComponentID) bool {
	return r.Plan != nil && r.Plan.Components != nil && r.Plan.Components.Selected(id)
}
