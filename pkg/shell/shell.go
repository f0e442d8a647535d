// Package shell registers the installed application with the desktop:
// launcher shortcuts, the project file association and a command-line entry
// point. Unregistering something that was never registered is not an error.
package shell

import (
	"context"
	"path/filepath"
	"strings"
)

// Integration describes what to register for one installation.
type Integration struct {
	AppID      string
	Name       string
	Publisher  string
	InstallDir string
	// Executable is the launcher, relative to InstallDir.
	Executable string
	// FileExtension includes the leading dot, e.g. ".mmtl".
	FileExtension string

	Shortcuts   bool
	Association bool
}

// ExecutablePath returns the absolute launcher path.
func (i Integration) ExecutablePath() string {
	return filepath.Join(i.InstallDir, filepath.FromSlash(i.Executable))
}

// MimeType is the private MIME type used for the project file extension.
func (i Integration) MimeType() string {
	return "application/x-" + strings.ToLower(i.AppID) + "-project"
}

// ProgID is the Windows programmatic identifier for the project file type.
func (i Integration) ProgID() string {
	return i.AppID + ".Project"
}

// Integrator applies and removes an Integration on the host.
type Integrator interface {
	Register(ctx context.Context, in Integration) error
	// Unregister removes every record Register may have created, whatever the
	// Shortcuts and Association flags say.
	Unregister(ctx context.Context, in Integration) error
}
