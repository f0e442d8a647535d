// Package config manages installer-wide settings and directory structures.
// It follows the XDG base directory layout for storing cache, configuration, and state,
// and lets an optional TOML file override the built-in product defaults.
package config

import (
	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// OSType represents a target operating system.
type OSType = common.OSType

const (
	// OSLinux represents the Linux operating system.
	OSLinux OSType = common.OSLinux
	// OSDarwin represents macOS/Darwin.
	OSDarwin OSType = common.OSDarwin
	// OSWindows represents Microsoft Windows.
	OSWindows OSType = common.OSWindows
)

// Metadata backends understood by the metadata package.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendRegistry = "registry"
)

// Settings is the user-overridable part of the configuration.
// It mirrors the layout of setup.toml.
type Settings struct {
	App      AppSettings      `toml:"app"`
	Layout   LayoutSettings   `toml:"layout"`
	Remote   RemoteSettings   `toml:"remote"`
	Metadata MetadataSettings `toml:"metadata"`
	// LockTimeoutSeconds bounds how long an install waits for another run on the same directory.
	LockTimeoutSeconds int `toml:"lock_timeout_seconds"`
}

// AppSettings describes the product being installed.
type AppSettings struct {
	ID            string `toml:"id"`
	Name          string `toml:"name"`
	Publisher     string `toml:"publisher"`
	Version       string `toml:"version"`
	Executable    string `toml:"executable"`
	FileExtension string `toml:"file_extension"`
}

// LayoutSettings describes the build output tree and the target tree.
type LayoutSettings struct {
	SourceDir  string `toml:"source_dir"`
	InstallDir string `toml:"install_dir"`
	// HeavyDir is the heavy-dependency subtree, relative to the install root.
	HeavyDir string `toml:"heavy_dir"`
	// Marker is the file, relative to the install root, proving the heavy dependency is present.
	Marker         string `toml:"marker"`
	HeavySizeBytes int64  `toml:"heavy_size_bytes"`
}

// RemoteSettings locates the heavy-dependency archive.
type RemoteSettings struct {
	// ArchiveURL may contain {tag}, replaced by ReleaseTag.
	ArchiveURL string `toml:"archive_url"`
	// ReleaseTag is a fixed tag or "latest".
	ReleaseTag string `toml:"release_tag"`
	Owner      string `toml:"owner"`
	Repo       string `toml:"repo"`
	AssetName  string `toml:"asset_name"`
	APIBaseURL string `toml:"api_base_url"`
	TagQuery   string `toml:"tag_query"`
	AssetQuery string `toml:"asset_query"`
}

// MetadataSettings selects where the installation record lives.
type MetadataSettings struct {
	Backend string `toml:"backend"`
	// Path is used by the json and sqlite backends.
	Path string `toml:"path"`
	// Scope is "user" or "machine" for the registry backend.
	Scope string `toml:"scope"`
}

// ParseOS converts a string representation of an operating system into an OSType.
func ParseOS(os string) (OSType, error) {
	return common.ParseOS(os)
}
