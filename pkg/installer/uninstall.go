package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/lock"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
)

// UninstallRequest holds the caller's choices for one uninstall.
type UninstallRequest struct {
	// TargetDir is the install directory; empty means the recorded one, then
	// layout.install_dir.
	TargetDir string
	Silent    bool
	// Mode overrides the mode question. Without the heavy-dependency marker
	// the uninstall is always complete.
	Mode common.UninstallMode
}

// Uninstall removes an installation. Removal problems are collected per path
// and never stop the record and shell cleanup.
func (o *Orchestrator) Uninstall(ctx context.Context, req UninstallRequest) (*Result, error) {
	start := time.Now()
	settings := o.cfg.GetSettings()
	res := &Result{State: StateFailed}
	finish := func(err error) (*Result, error) {
		res.Duration = time.Since(start)
		if err != nil {
			slog.Error("Uninstall failed", "error", err)
		}
		return res, err
	}

	target, err := o.uninstallTarget(ctx, req.TargetDir)
	if err != nil {
		return finish(err)
	}
	res.Plan = &Plan{Settings: settings, TargetDir: target, Silent: req.Silent}

	unlock, err := lock.Lock(ctx, target, o.cfg.GetLockTimeout())
	if err != nil {
		return finish(err)
	}
	defer func() {
		if err := unlock(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	heavy := settings.Layout.HeavyDirNative()
	if err := recoverPreserved(ctx, target, heavy); err != nil {
		return finish(err)
	}

	mode, err := o.uninstallMode(target, req)
	if err != nil {
		return finish(err)
	}
	res.Mode = mode
	slog.Info("Uninstalling", "dir", target, "mode", mode)

	task := o.deps.Display.StartTask(settings.App.Name)
	defer task.Done()
	task.SetStage("Remove", target)

	var errs []error
	if err := releaseSelf(target); err != nil {
		slog.Warn("Failed to move the running uninstaller out of the way", "error", err)
	}
	switch mode {
	case common.UninstallPreserveHeavy:
		// Cleanup below still runs when relocation fails.
		if err := preserveHeavy(ctx, target, heavy, uuid.NewString()); err != nil {
			errs = append(errs, err)
		}
		if err := o.deps.Store.Erase(ctx, settings.App.ID); err != nil {
			errs = append(errs, err)
		}
		if err := o.deps.Shell.Unregister(ctx, integration(settings, target, nil)); err != nil {
			errs = append(errs, err)
		}
	default:
		if err := o.removeAll(ctx, target); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return finish(err)
	}
	res.State = StateDone
	slog.Info("Uninstall complete", "dir", target, "mode", mode)
	return finish(nil)
}

// uninstallTarget picks the directory to remove: the explicit one, else the
// recorded install location, else the default.
func (o *Orchestrator) uninstallTarget(ctx context.Context, dir string) (string, error) {
	settings := o.cfg.GetSettings()
	if dir == "" {
		rec, err := o.deps.Store.Read(ctx, settings.App.ID)
		switch {
		case err == nil && rec.InstallDir != "":
			dir = rec.InstallDir
		case err != nil && !errors.Is(err, metadata.ErrNotFound):
			slog.Warn("Failed to read installation record", "error", err)
		}
	}
	if dir == "" {
		dir = settings.Layout.InstallDir
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid install directory: %w", err)
	}
	if abs == filepath.Dir(abs) {
		return "", fmt.Errorf("refusing to uninstall from filesystem root %s", abs)
	}
	return abs, nil
}

// uninstallMode decides between complete and preserve. With no marker there
// is nothing to keep and the answer is complete without asking.
func (o *Orchestrator) uninstallMode(target string, req UninstallRequest) (common.UninstallMode, error) {
	res, err := probe.Probe(target, o.cfg.GetSettings().Layout.MarkerNative())
	if err != nil {
		return "", err
	}
	if !res.Present {
		return common.UninstallComplete, nil
	}
	if req.Mode != "" {
		return req.Mode, nil
	}
	return o.prompter(req.Silent).UninstallMode()
}
