// Package cli is the command-line surface of setup: flag parsing with cobra,
// process-wide logging, and the mapping from results and errors to exit codes.
package cli

import (
	"github.com/Liiesl/EasyScanlate/pkg/config"
	"github.com/Liiesl/EasyScanlate/pkg/disk"
	"github.com/Liiesl/EasyScanlate/pkg/display"
	"github.com/Liiesl/EasyScanlate/pkg/downloader"
	"github.com/Liiesl/EasyScanlate/pkg/metadata"
	"github.com/Liiesl/EasyScanlate/pkg/release"
)

// Exit codes.
const (
	ExitOK        = 0
	ExitFatal     = 1
	ExitCancelled = 2
)

// Managers holds the services a command runs against.
type Managers struct {
	Disp       display.Display
	Cfg        config.ReadOnly
	Store      metadata.Store
	DiskMgr    disk.Manager
	Downloader downloader.Downloader
	Resolver   *release.Resolver
}

// Close releases the metadata store and flushes the display.
func (m *Managers) Close() {
	if m.Store != nil {
		_ = m.Store.Close()
	}
	m.Disp.Close()
}

type globalFlags struct {
	Verbose bool
	Config  string
}

type installParams struct {
	*globalFlags
	Dir    string
	Source string
	Silent bool
	Tag    string
}

type uninstallParams struct {
	*globalFlags
	Dir    string
	Silent bool
	Mode   string
}
