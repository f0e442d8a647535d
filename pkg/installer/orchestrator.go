package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/display"
	"github.com/Liiesl/EasyScanlate/pkg/downloader"
	"github.com/Liiesl/EasyScanlate/pkg/lock"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/prompt"
	"github.com/Liiesl/EasyScanlate/pkg/release"
	"github.com/Liiesl/EasyScanlate/pkg/shell"
)

// ArchiveResolver turns the configured release into an archive URL.
type ArchiveResolver interface {
	ArchiveURL(ctx context.Context) (string, error)
}

// Deps are the collaborators of an Orchestrator. Nil fields get the default
// implementation for this host.
type Deps struct {
	Store      metadata.Store
	Shell      shell.Integrator
	Prompter   prompt.Prompter
	Display    display.Display
	Downloader downloader.Downloader
	Resolver   ArchiveResolver
	Now        func() time.Time
}

// Immutable
type Orchestrator struct {
	cfg  config.ReadOnly
	deps Deps
}

// New creates an Orchestrator. deps.Store is required.
func New(cfg config.ReadOnly, deps Deps) *Orchestrator {
	if deps.Shell == nil {
		deps.Shell = shell.New()
	}
	if deps.Prompter == nil {
		deps.Prompter = prompt.Silent{}
	}
	if deps.Display == nil {
		deps.Display = display.NewConsole()
	}
	if deps.Downloader == nil {
		deps.Downloader = downloader.NewDefaultDownloader()
	}
	if deps.Resolver == nil {
		deps.Resolver = release.NewResolver(cfg.GetSettings().Remote, deps.Downloader)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

func (o *Orchestrator) prompter(silent bool) prompt.Prompter {
	if silent {
		return prompt.Silent{}
	}
	return o.deps.Prompter
}

// Install runs the install pipeline. The Result is always non-nil and holds
// the final state: Done, Failed (nothing rolled back) or Aborted (rolled back).
func (o *Orchestrator) Install(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	m := newMachine()
	settings := o.cfg.GetSettings()

	plan := &Plan{
		Settings:  settings,
		SourceDir: req.SourceDir,
		TargetDir: req.TargetDir,
		Silent:    req.Silent,
		SetupBin:  req.SetupBinary,
	}
	if plan.SourceDir == "" {
		plan.SourceDir = settings.Layout.SourceDir
	}
	res := &Result{Plan: plan}
	finish := func(err error) (*Result, error) {
		res.State = m.state
		res.History = m.history
		res.Duration = time.Since(start)
		return res, err
	}
	fail := func(err error) (*Result, error) {
		m.to(StateFailed)
		slog.Error("Installation failed", "state", m.history[len(m.history)-2], "error", err)
		return finish(err)
	}

	if err := o.resolveTarget(plan, req); err != nil {
		return fail(err)
	}

	unlock, err := lock.Lock(ctx, plan.TargetDir, o.cfg.GetLockTimeout())
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	if err := recoverPreserved(ctx, plan.TargetDir, settings.Layout.HeavyDirNative()); err != nil {
		return fail(err)
	}

	task := o.deps.Display.StartTask(settings.App.Name)
	defer task.Done()
	plan.task = task

	pre := []struct {
		state State
		stage Stage
	}{
		{StateProbing, o.probeStage},
		{StatePlanning, o.planStage},
		{StateAwaitingSelection, o.selectStage},
		{StateInstalling, o.copyStage},
	}
	for _, s := range pre {
		m.to(s.state)
		if err := s.stage(ctx, plan); err != nil {
			return fail(err)
		}
	}

	if plan.Components.Selected(common.ComponentHeavy) {
		m.to(StateFetchingDependency)
		err := o.fetchStage(ctx, plan)
		if err == nil {
			m.to(StateExtractingDependency)
			err = o.extractStage(ctx, plan)
			if err != nil {
				err = o.abort(ctx, m, plan, "extraction", err)
			}
		} else {
			err = o.abort(ctx, m, plan, "download", err)
		}
		o.removeScratch(plan)
		if err != nil {
			return finish(err)
		}
	}

	m.to(StateWritingMetadata)
	if err := o.metadataStage(ctx, plan); err != nil {
		return fail(err)
	}
	m.to(StateDone)
	slog.Info("Installation complete", "app", settings.App.ID, "version", settings.App.Version, "dir", plan.TargetDir)
	return finish(nil)
}

func (o *Orchestrator) abort(ctx context.Context, m *machine, plan *Plan, stage string, cause error) error {
	m.to(StateRollingBack)
	slog.Error("Rolling back installation", "stage", stage, "error", cause)
	o.removeScratch(plan)
	err := o.Rollback(ctx, plan.TargetDir, stage, cause)
	m.to(StateAborted)
	return err
}

// Rollback undoes a partial install by running the complete uninstall with no
// prompts. It returns the AbortError to show the user; cleanup problems are
// carried in its RollbackErr. Cleanup runs even when ctx is already cancelled.
func (o *Orchestrator) Rollback(ctx context.Context, targetDir string, stage string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	rbErr := o.removeAll(ctx, targetDir)
	if rbErr != nil {
		slog.Warn("Rollback incomplete", "dir", targetDir, "error", rbErr)
	}
	return &common.AbortError{Stage: stage, Cause: cause, RollbackErr: rbErr}
}

// resolveTarget fills plan.TargetDir from the request, the previous install
// or the configured default, and lets the user confirm it.
func (o *Orchestrator) resolveTarget(plan *Plan, req Request) error {
	if plan.TargetDir == "" {
		plan.TargetDir = plan.Settings.Layout.InstallDir
		p := o.prompter(req.Silent)
		dir, err := p.Destination(plan.TargetDir)
		if err != nil {
			return err
		}
		plan.TargetDir = dir
	}
	abs, err := filepath.Abs(plan.TargetDir)
	if err != nil {
		return fmt.Errorf("invalid install directory: %w", err)
	}
	plan.TargetDir = abs

	src, err := filepath.Abs(plan.SourceDir)
	if err != nil {
		return fmt.Errorf("invalid source directory: %w", err)
	}
	plan.SourceDir = src
	if rel, err := filepath.Rel(src, abs); err == nil && !isOutside(rel) {
		return fmt.Errorf("install directory %s is inside the source tree %s", abs, src)
	}
	return nil
}

func isOutside(rel string) bool {
	return rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator)
}

// removeAll is the complete uninstall: the install tree, the record and the
// shell integration. Every step runs; errors are joined.
func (o *Orchestrator) removeAll(ctx context.Context, targetDir string) error {
	settings := o.cfg.GetSettings()
	var errs []error
	if err := disk.RemoveTree(targetDir); err != nil {
		errs = append(errs, err)
	}
	if err := o.deps.Store.Erase(ctx, settings.App.ID); err != nil {
		slog.Warn("Failed to erase installation record", "error", err)
		errs = append(errs, err)
	}
	if err := o.deps.Shell.Unregister(ctx, integration(settings, targetDir, nil)); err != nil {
		slog.Warn("Failed to remove shell integration", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) removeScratch(plan *Plan) {
	if plan.DownloadPath == "" {
		return
	}
	if err := os.Remove(plan.DownloadPath); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to remove downloaded archive", "path", plan.DownloadPath, "error", err)
	}
}
