package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Liiesl/EasyScanlate/pkg/archive"
	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/components"
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/probe"
	"github.com/Liiesl/EasyScanlate/pkg/release"
	"github.com/Liiesl/EasyScanlate/pkg/shell"
)

// probeStage checks the target for the heavy-dependency marker and loads the
// record of any previous install.
func (o *Orchestrator) probeStage(ctx context.Context, plan *Plan) error {
	res, err := probe.Probe(plan.TargetDir, plan.Settings.Layout.MarkerNative())
	if err != nil {
		return err
	}
	plan.Probe = res
	slog.Info("Probed install directory", "dir", plan.TargetDir, "heavy_present", res.Present)

	prev, err := o.deps.Store.Read(ctx, plan.Settings.App.ID)
	switch {
	case err == nil:
		plan.Previous = prev
	case errors.Is(err, metadata.ErrNotFound):
	default:
		slog.Warn("Failed to read previous installation record", "error", err)
	}
	return nil
}

// planStage builds the component plan from the source tree and the probe.
func (o *Orchestrator) planStage(ctx context.Context, plan *Plan) error {
	info, err := os.Stat(plan.SourceDir)
	if err != nil {
		return fmt.Errorf("build output tree not found: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("build output tree %s is not a directory", plan.SourceDir)
	}
	appSize, _ := disk.DirSize(plan.SourceDir)
	plan.Components = components.NewPlan(components.Default(plan.Settings, appSize), plan.Probe)

	if plan.Previous == nil || !release.IsDowngrade(plan.Previous.Version, plan.Settings.App.Version) {
		return nil
	}
	slog.Warn("Installing an older version", "installed", plan.Previous.Version, "version", plan.Settings.App.Version)
	ok, err := o.prompter(plan.Silent).Confirm(fmt.Sprintf(
		"Version %s is installed. Replace it with older version %s?", plan.Previous.Version, plan.Settings.App.Version))
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUserCancelled
	}
	return nil
}

// selectStage lets the user adjust the plan, shows the advisory and freezes
// the plan for execution.
func (o *Orchestrator) selectStage(ctx context.Context, plan *Plan) error {
	p := o.prompter(plan.Silent)
	ids, err := p.SelectComponents(plan.Components.Components())
	if err != nil {
		return err
	}
	if err := plan.Components.Select(ids); err != nil {
		return err
	}
	if adv := plan.Components.Advisory(); adv != nil && plan.Components.Selected(common.ComponentHeavy) {
		if plan.Silent {
			o.deps.Display.Warn(adv.Title, adv.Body)
		} else if err := p.Advisory(adv.Title, adv.Body); err != nil {
			return err
		}
	}
	plan.Components.Freeze()
	slog.Info("Components selected", "components", plan.Components.SelectedIDs())
	return nil
}

// copyExcludes lists the subtrees the file installer skips. The heavy subtree
// is never copied when it is already installed or about to be downloaded.
func copyExcludes(plan *Plan) []string {
	if plan.Probe.Present || plan.Components.Selected(common.ComponentHeavy) {
		return []string{plan.Settings.Layout.HeavyDir}
	}
	return nil
}

// copyStage copies the build output tree into the target.
func (o *Orchestrator) copyStage(ctx context.Context, plan *Plan) error {
	plan.task.SetStage("Copy", plan.TargetDir)
	exclude := copyExcludes(plan)
	slog.Info("Copying application files", "source", plan.SourceDir, "target", plan.TargetDir, "exclude", exclude)
	if err := disk.Copy(ctx, plan.SourceDir, plan.TargetDir, exclude); err != nil {
		return fmt.Errorf("failed to copy application files: %w", err)
	}
	return nil
}

// fetchStage downloads the heavy-dependency archive into the download dir.
func (o *Orchestrator) fetchStage(ctx context.Context, plan *Plan) error {
	uri, err := o.deps.Resolver.ArchiveURL(ctx)
	if err != nil {
		return err
	}
	plan.ArchiveURL = uri

	dir := o.cfg.GetDownloadDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	plan.DownloadPath = filepath.Join(dir, uuid.NewString()+archive.Ext(archiveName(uri)))

	slog.Info("Downloading dependency", "url", uri, "path", plan.DownloadPath)
	tx, err := o.deps.Downloader.Fetch(ctx, uri, plan.DownloadPath, plan.task)
	if err != nil {
		return err
	}
	slog.Info("Download complete", "bytes", tx.Bytes, "status", tx.Status)
	return nil
}

func archiveName(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(uri)
}

// extractStage unpacks the archive into the install root and checks that the
// marker now exists. An archive without the marker counts as corrupt, since
// the next probe would otherwise report a half installed dependency.
func (o *Orchestrator) extractStage(ctx context.Context, plan *Plan) error {
	plan.task.SetStage("Extract", plan.TargetDir)
	slog.Info("Extracting dependency", "archive", plan.DownloadPath, "target", plan.TargetDir)
	if err := archive.Extract(plan.DownloadPath, plan.TargetDir); err != nil {
		return err
	}
	res, err := probe.Probe(plan.TargetDir, plan.Settings.Layout.MarkerNative())
	if err != nil {
		return err
	}
	if !res.Present {
		return &archive.CorruptArchiveError{
			Path: plan.DownloadPath,
			Err:  fmt.Errorf("archive does not contain %s", plan.Settings.Layout.Marker),
		}
	}
	return nil
}

// metadataStage writes the uninstaller, registers shell integration and
// records the installation. The record goes last so it only ever describes a
// complete install.
func (o *Orchestrator) metadataStage(ctx context.Context, plan *Plan) error {
	plan.task.SetStage("Register", plan.Settings.App.Name)
	uninstaller, err := o.writeUninstaller(plan)
	if err != nil {
		return err
	}

	in := integration(plan.Settings, plan.TargetDir, plan.Components)
	if err := o.deps.Shell.Unregister(ctx, in); err != nil {
		slog.Warn("Failed to clear previous shell integration", "error", err)
	}
	if err := o.deps.Shell.Register(ctx, in); err != nil {
		return fmt.Errorf("failed to register shell integration: %w", err)
	}

	size, _ := disk.DirSize(plan.TargetDir)
	state := common.InstallationState{
		AppID:            plan.Settings.App.ID,
		DisplayName:      plan.Settings.App.Name,
		Version:          plan.Settings.App.Version,
		Publisher:        plan.Settings.App.Publisher,
		InstallDir:       plan.TargetDir,
		UninstallCommand: fmt.Sprintf(`"%s" uninstall --dir "%s"`, uninstaller, plan.TargetDir),
		EstimatedSizeKB:  size / 1024,
		InstallDate:      o.deps.Now().UTC(),
	}
	if err := o.deps.Store.Write(ctx, state); err != nil {
		return fmt.Errorf("failed to write installation record: %w", err)
	}
	plan.Installed = &state
	return nil
}

// UninstallerName is the uninstaller entry point inside the install root.
func UninstallerName(osType common.OSType) string {
	return osType.Executable("uninstall")
}

// writeUninstaller copies the setup binary into the install root.
func (o *Orchestrator) writeUninstaller(plan *Plan) (string, error) {
	dst := filepath.Join(plan.TargetDir, UninstallerName(o.cfg.GetOS()))
	src := plan.SetupBin
	if src == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("failed to locate setup binary: %w", err)
		}
		src = exe
	}
	if same(src, dst) {
		return dst, nil
	}
	if err := copyExecutable(src, dst); err != nil {
		return "", fmt.Errorf("failed to write uninstaller: %w", err)
	}
	return dst, nil
}

func same(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func copyExecutable(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".new"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
	if err != nil {
		return &common.PermissionError{Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// integration describes the shell records for an install. A nil plan, as in
// rollback and uninstall, leaves both optional parts off; Unregister removes
// everything regardless.
func integration(s config.Settings, targetDir string, plan *components.Plan) shell.Integration {
	in := shell.Integration{
		AppID:         s.App.ID,
		Name:          s.App.Name,
		Publisher:     s.App.Publisher,
		InstallDir:    targetDir,
		Executable:    s.App.Executable,
		FileExtension: s.App.FileExtension,
	}
	if plan != nil {
		in.Shortcuts = plan.Selected(common.ComponentShortcuts)
		in.Association = plan.Selected(common.ComponentAssociation)
	}
	return in
}
