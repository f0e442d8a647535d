package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// Defaults returns the built-in settings for the given platform.
func Defaults(osType OSType) Settings {
	s := Settings{
		App: AppSettings{
			ID:            "MangaOCRTool",
			Name:          "MangaOCRTool",
			Publisher:     "Liiesl",
			Version:       BuildVersion,
			Executable:    osType.Executable("main"),
			FileExtension: ".mmtl",
		},
		Layout: LayoutSettings{
			SourceDir:      filepath.Join("dist", "main"),
			HeavyDir:       "torch",
			Marker:         "torch/version.py",
			HeavySizeBytes: 2_800 << 20,
		},
		Remote: RemoteSettings{
			ArchiveURL: "https://github.com/Liiesl/ManhwaOCR/releases/download/{tag}/dependency-dll.7z",
			ReleaseTag: "latest",
			Owner:      "Liiesl",
			Repo:       "ManhwaOCR",
			AssetName:  "dependency-dll.7z",
			APIBaseURL: "https://api.github.com",
			TagQuery:   ".tag_name",
			AssetQuery: ".assets[] | select(.name == $asset) | .browser_download_url",
		},
		Metadata: MetadataSettings{
			Backend: BackendJSON,
			Scope:   "user",
		},
		LockTimeoutSeconds: 30,
	}

	if osType == OSWindows {
		s.Metadata.Backend = BackendRegistry
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = xdg.DataHome
		}
		s.Layout.InstallDir = filepath.Join(base, "Programs", s.App.ID)
	} else {
		s.Layout.InstallDir = filepath.Join(xdg.DataHome, s.App.ID)
	}
	return s
}

// Validate checks the settings for required fields and unsafe layouts.
func (s *Settings) Validate() error {
	if s.App.ID == "" {
		return fmt.Errorf("missing 'app.id'")
	}
	if s.Layout.HeavyDir == "" || s.Layout.Marker == "" {
		return fmt.Errorf("missing 'layout.heavy_dir' or 'layout.marker'")
	}
	for _, rel := range []string{s.Layout.HeavyDir, s.Layout.Marker} {
		if path.IsAbs(rel) || filepath.IsAbs(rel) || strings.HasPrefix(path.Clean(filepath.ToSlash(rel)), "..") {
			return fmt.Errorf("layout path %q must be relative to the install root", rel)
		}
	}
	switch s.Metadata.Backend {
	case BackendJSON, BackendSQLite, BackendRegistry:
	default:
		return fmt.Errorf("unknown metadata backend %q", s.Metadata.Backend)
	}
	if s.LockTimeoutSeconds < 0 {
		return fmt.Errorf("'lock_timeout_seconds' must not be negative")
	}
	return nil
}

// ArchiveURLFor substitutes tag into the configured archive URL.
func (r RemoteSettings) ArchiveURLFor(tag string) string {
	return strings.ReplaceAll(r.ArchiveURL, "{tag}", tag)
}

// HeavyDirNative returns the heavy subtree in platform path syntax.
func (l LayoutSettings) HeavyDirNative() string {
	return filepath.FromSlash(l.HeavyDir)
}

// MarkerNative returns the marker path in platform path syntax.
func (l LayoutSettings) MarkerNative() string {
	return filepath.FromSlash(l.Marker)
}
