package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"golang.org/x/sys/windows/registry"
)

const (
	classesRoot  = `Software\Classes\`
	appPathsRoot = `Software\Microsoft\Windows\CurrentVersion\App Paths\`
)

// Immutable
type windowsIntegrator struct {
	programs string
}

// New returns the Integrator for this platform.
func New() Integrator {
	programs := filepath.Join(os.Getenv("APPDATA"), `Microsoft\Windows\Start Menu\Programs`)
	if len(xdg.ApplicationDirs) > 0 {
		programs = xdg.ApplicationDirs[0]
	}
	return &windowsIntegrator{programs: programs}
}

func (w *windowsIntegrator) shortcut(in Integration) string {
	return filepath.Join(w.programs, in.Name+".url")
}

func (w *windowsIntegrator) Register(ctx context.Context, in Integration) error {
	exe := in.ExecutablePath()

	if err := setValues(appPathsRoot+filepath.Base(exe), map[string]string{
		"":     exe,
		"Path": in.InstallDir,
	}); err != nil {
		return err
	}

	if in.Shortcuts {
		u := url.URL{Scheme: "file", Path: "/" + filepath.ToSlash(exe)}
		content := fmt.Sprintf("[InternetShortcut]\r\nURL=%s\r\nIconFile=%s\r\nIconIndex=0\r\n", u.String(), exe)
		if err := os.MkdirAll(w.programs, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", w.programs, err)
		}
		if err := os.WriteFile(w.shortcut(in), []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write shortcut: %w", err)
		}
	}

	if in.Association {
		prog := in.ProgID()
		if err := setValues(classesRoot+in.FileExtension, map[string]string{"": prog}); err != nil {
			return err
		}
		if err := setValues(classesRoot+prog, map[string]string{"": in.Name + " project"}); err != nil {
			return err
		}
		if err := setValues(classesRoot+prog+`\DefaultIcon`, map[string]string{"": exe + ",0"}); err != nil {
			return err
		}
		if err := setValues(classesRoot+prog+`\shell\open\command`, map[string]string{"": fmt.Sprintf(`"%s" "%%1"`, exe)}); err != nil {
			return err
		}
	}
	slog.Info("Registered shell integration", "app", in.AppID, "shortcuts", in.Shortcuts, "association", in.Association)
	return nil
}

func (w *windowsIntegrator) Unregister(ctx context.Context, in Integration) error {
	var errs []error
	if err := os.Remove(w.shortcut(in)); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}

	prog := in.ProgID()
	// Subkeys must go before their parents.
	keys := []string{
		classesRoot + prog + `\shell\open\command`,
		classesRoot + prog + `\shell\open`,
		classesRoot + prog + `\shell`,
		classesRoot + prog + `\DefaultIcon`,
		classesRoot + prog,
		appPathsRoot + filepath.Base(in.ExecutablePath()),
	}
	for _, k := range keys {
		if err := deleteKey(k); err != nil {
			errs = append(errs, err)
		}
	}
	if err := removeAssociation(in.FileExtension, prog); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func setValues(path string, values map[string]string) error {
	k, _, err := registry.CreateKey(registry.CURRENT_USER, path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create registry key %s: %w", path, err)
	}
	defer k.Close()
	for name, v := range values {
		if err := k.SetStringValue(name, v); err != nil {
			return fmt.Errorf("failed to set %s\\%s: %w", path, name, err)
		}
	}
	return nil
}

func deleteKey(path string) error {
	if err := registry.DeleteKey(registry.CURRENT_USER, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to delete registry key %s: %w", path, err)
	}
	return nil
}

// removeAssociation deletes the extension key only while it still points at
// our ProgID; another program may have claimed it since.
func removeAssociation(ext, prog string) error {
	path := classesRoot + ext
	k, err := registry.OpenKey(registry.CURRENT_USER, path, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open registry key %s: %w", path, err)
	}
	v, _, err := k.GetStringValue("")
	k.Close()
	if err != nil || !strings.EqualFold(v, prog) {
		return nil
	}
	return deleteKey(path)
}
