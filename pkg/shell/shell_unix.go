//go:build !windows

package shell

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// Dirs are the freedesktop locations an Integrator writes to.
type Dirs struct {
	Applications string
	MimePackages string
	Bin          string
	// Refresh runs update-desktop-database and update-mime-database when available.
	Refresh bool
}

// DefaultDirs returns the per-user XDG locations.
func DefaultDirs() Dirs {
	return Dirs{
		Applications: filepath.Join(xdg.DataHome, "applications"),
		MimePackages: filepath.Join(xdg.DataHome, "mime", "packages"),
		Bin:          xdg.BinHome,
		Refresh:      true,
	}
}

// Immutable
type desktopIntegrator struct {
	dirs Dirs
}

// New returns the Integrator for this platform.
func New() Integrator {
	return NewDesktop(DefaultDirs())
}

// NewDesktop returns a freedesktop Integrator writing under dirs.
func NewDesktop(dirs Dirs) Integrator {
	return &desktopIntegrator{dirs: dirs}
}

func (d *desktopIntegrator) desktopFile(in Integration) string {
	return filepath.Join(d.dirs.Applications, strings.ToLower(in.AppID)+".desktop")
}

func (d *desktopIntegrator) mimeFile(in Integration) string {
	return filepath.Join(d.dirs.MimePackages, strings.ToLower(in.AppID)+".xml")
}

func (d *desktopIntegrator) links(in Integration) []common.Symlink {
	return []common.Symlink{{
		Source: in.ExecutablePath(),
		Target: strings.ToLower(in.AppID),
	}}
}

func (d *desktopIntegrator) Register(ctx context.Context, in Integration) error {
	if err := CreateSymlinks(d.dirs.Bin, d.links(in)); err != nil {
		return fmt.Errorf("failed to create launcher link: %w", err)
	}

	// An association needs a desktop entry to point at, even without shortcuts.
	if in.Shortcuts || in.Association {
		if err := writeFile(d.desktopFile(in), desktopEntry(in)); err != nil {
			return err
		}
	}
	if in.Association {
		data, err := mimeInfo(in)
		if err != nil {
			return err
		}
		if err := writeFile(d.mimeFile(in), data); err != nil {
			return err
		}
	}
	slog.Info("Registered shell integration", "app", in.AppID, "shortcuts", in.Shortcuts, "association", in.Association)
	d.refresh(ctx)
	return nil
}

func (d *desktopIntegrator) Unregister(ctx context.Context, in Integration) error {
	var errs []error
	if err := RemoveSymlinks(d.dirs.Bin, d.links(in)); err != nil {
		errs = append(errs, err)
	}
	for _, p := range []string{d.desktopFile(in), d.mimeFile(in)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	d.refresh(ctx)
	return errors.Join(errs...)
}

func (d *desktopIntegrator) refresh(ctx context.Context) {
	if !d.dirs.Refresh {
		return
	}
	cmds := [][]string{
		{"update-desktop-database", d.dirs.Applications},
		{"update-mime-database", filepath.Dir(d.dirs.MimePackages)},
	}
	for _, c := range cmds {
		if _, err := exec.LookPath(c[0]); err != nil {
			continue
		}
		if out, err := exec.CommandContext(ctx, c[0], c[1:]...).CombinedOutput(); err != nil {
			slog.Debug("Desktop database refresh failed", "cmd", c[0], "error", err, "output", string(out))
		}
	}
}

func writeFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(p), err)
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

func desktopEntry(in Integration) []byte {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", in.Name)
	fmt.Fprintf(&b, "Exec=\"%s\" %%f\n", in.ExecutablePath())
	fmt.Fprintf(&b, "Path=%s\n", in.InstallDir)
	b.WriteString("Terminal=false\n")
	b.WriteString("Categories=Graphics;Office;\n")
	if in.Association {
		fmt.Fprintf(&b, "MimeType=%s;\n", in.MimeType())
	}
	if !in.Shortcuts {
		b.WriteString("NoDisplay=true\n")
	}
	return []byte(b.String())
}

type mimeInfoXML struct {
	XMLName  xml.Name    `xml:"mime-info"`
	XMLNS    string      `xml:"xmlns,attr"`
	MimeType mimeTypeXML `xml:"mime-type"`
}

type mimeTypeXML struct {
	Type    string  `xml:"type,attr"`
	Comment string  `xml:"comment"`
	Glob    globXML `xml:"glob"`
}

type globXML struct {
	Pattern string `xml:"pattern,attr"`
}

func mimeInfo(in Integration) ([]byte, error) {
	doc := mimeInfoXML{
		XMLNS: "http://www.freedesktop.org/standards/shared-mime-info",
		MimeType: mimeTypeXML{
			Type:    in.MimeType(),
			Comment: in.Name + " project",
			Glob:    globXML{Pattern: "*" + in.FileExtension},
		},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode mime info: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
