package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/installer"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
	"github.com/Liiesl/EasyScanlate/pkg/prompt"
	"github.com/Liiesl/EasyScanlate/pkg/release"
)

func newOrchestrator(mgr *Managers) *installer.Orchestrator {
	return installer.New(mgr.Cfg, installer.Deps{
		Store:      mgr.Store,
		Prompter:   prompt.NewHuhPrompter(),
		Display:    mgr.Disp,
		Downloader: mgr.Downloader,
		Resolver:   mgr.Resolver,
	})
}

func runInstall(ctx context.Context, mgr *Managers, p *installParams) (*common.ExecutionResult, error) {
	setupBin, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate setup binary: %w", err)
	}
	res, err := newOrchestrator(mgr).Install(ctx, installer.Request{
		SourceDir:   p.Source,
		TargetDir:   p.Dir,
		Silent:      p.Silent,
		SetupBinary: setupBin,
	})
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range res.Plan.Components.SelectedIDs() {
		ids = append(ids, string(id))
	}
	return &common.ExecutionResult{
		Output: &common.Output{
			Message: fmt.Sprintf("%s %s installed", res.Plan.Settings.App.Name, res.Plan.Settings.App.Version),
			KV: []common.KV{
				{Key: "Directory", Value: res.Plan.TargetDir},
				{Key: "Components", Value: strings.Join(ids, ", ")},
				{Key: "Took", Value: res.Duration.Round(time.Millisecond).String()},
			},
		},
	}, nil
}

func runUninstall(ctx context.Context, mgr *Managers, p *uninstallParams) (*common.ExecutionResult, error) {
	req := installer.UninstallRequest{TargetDir: p.Dir, Silent: p.Silent}
	if p.Mode != "" {
		mode, err := common.ParseUninstallMode(p.Mode)
		if err != nil {
			return nil, err
		}
		req.Mode = mode
	}
	res, err := newOrchestrator(mgr).Uninstall(ctx, req)
	if err != nil {
		return nil, err
	}
	msg := "Uninstall complete"
	if res.Mode == common.UninstallPreserveHeavy {
		msg = "Uninstall complete, runtime dependency kept for the next install"
	}
	return &common.ExecutionResult{
		Output: &common.Output{
			Message: msg,
			KV: []common.KV{
				{Key: "Directory", Value: res.Plan.TargetDir},
				{Key: "Mode", Value: string(res.Mode)},
			},
		},
	}, nil
}

func runStatus(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
	s := mgr.Cfg.GetSettings()
	rec, err := mgr.Store.Read(ctx, s.App.ID)
	if errors.Is(err, metadata.ErrNotFound) {
		return &common.ExecutionResult{
			Output: &common.Output{Message: fmt.Sprintf("%s is not installed", s.App.Name)},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	heavy, err := probe.Probe(rec.InstallDir, s.Layout.MarkerNative())
	if err != nil {
		return nil, err
	}
	size, files := disk.DirSize(rec.InstallDir)
	return &common.ExecutionResult{
		Output: &common.Output{
			KV: []common.KV{
				{Key: "Name", Value: rec.DisplayName},
				{Key: "Version", Value: rec.Version},
				{Key: "Publisher", Value: rec.Publisher},
				{Key: "Directory", Value: rec.InstallDir},
				{Key: "Installed", Value: rec.InstallDate.Local().Format("2006-01-02 15:04")},
				{Key: "Size", Value: fmt.Sprintf("%s in %d files", disk.FormatSize(size), files)},
				{Key: "Runtime dependency", Value: presence(heavy.Present)},
				{Key: "Uninstall", Value: rec.UninstallCommand},
			},
		},
	}, nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

func runCheckUpdate(ctx context.Context, mgr *Managers) (*common.ExecutionResult, error) {
	s := mgr.Cfg.GetSettings()
	installed := ""
	rec, err := mgr.Store.Read(ctx, s.App.ID)
	switch {
	case err == nil:
		installed = rec.Version
	case !errors.Is(err, metadata.ErrNotFound):
		return nil, err
	}

	latest, err := mgr.Resolver.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to look up the latest release: %w", err)
	}
	status := release.CheckUpdate(installed, latest)
	kv := []common.KV{
		{Key: "Installed", Value: valueOr(installed, "-")},
		{Key: "Latest", Value: latest.Tag},
	}
	if latest.AssetURL != "" {
		kv = append(kv, common.KV{Key: "Download", Value: latest.AssetURL})
	}
	return &common.ExecutionResult{
		Output: &common.Output{
			Message: fmt.Sprintf("%s: %s", s.App.Name, status),
			KV:      kv,
		},
	}, nil
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
