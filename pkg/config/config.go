package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

const dirName = "easyscanlate"

// ReadOnly defines the read-only interface for Config.
// Immutable
type ReadOnly interface {
	GetCacheDir() string
	GetConfigDir() string
	GetStateDir() string
	GetDownloadDir() string
	GetOS() OSType
	GetSettings() Settings
	GetLockTimeout() time.Duration
	GetMetadataPath() string
	Freeze()
	Checkout() Writable
}

// Writable defines the writable interface for Config.
// Mutable
type Writable interface {
	ReadOnly
	SetCacheDir(string)
	SetStateDir(string)
	SetOS(OSType)
	Update(func(*Settings))
}

// Config holds the base directories, the platform and the product settings.
// Mutable
type Config struct {
	cacheDir  string
	configDir string
	stateDir  string

	downloadDir string

	os       OSType
	settings Settings

	frozen bool
	edited bool
}

var _ ReadOnly = (*Config)(nil)
var _ Writable = (*Config)(nil)

func (c *Config) GetCacheDir() string    { return c.cacheDir }
func (c *Config) GetConfigDir() string   { return c.configDir }
func (c *Config) GetStateDir() string    { return c.stateDir }
func (c *Config) GetDownloadDir() string { return c.downloadDir }
func (c *Config) GetOS() OSType          { return c.os }
func (c *Config) GetSettings() Settings  { return c.settings }

func (c *Config) GetLockTimeout() time.Duration {
	return time.Duration(c.settings.LockTimeoutSeconds) * time.Second
}

// GetMetadataPath returns the file used by the json and sqlite metadata backends.
func (c *Config) GetMetadataPath() string {
	if c.settings.Metadata.Path != "" {
		return c.settings.Metadata.Path
	}
	if c.settings.Metadata.Backend == BackendSQLite {
		return filepath.Join(c.stateDir, "installations.db")
	}
	return filepath.Join(c.stateDir, "installations.json")
}

func (c *Config) SetCacheDir(s string) {
	c.mustBeEditable()
	c.cacheDir = s
	c.updateDerived()
}

func (c *Config) SetStateDir(s string) {
	c.mustBeEditable()
	c.stateDir = s
	c.updateDerived()
}

func (c *Config) SetOS(o OSType) {
	c.mustBeEditable()
	c.os = o
}

// Update applies fn to the settings, e.g. for command-line overrides.
func (c *Config) Update(fn func(*Settings)) {
	c.mustBeEditable()
	fn(&c.settings)
}

func (c *Config) mustBeEditable() {
	if c.frozen {
		panic("cannot modify frozen config")
	}
}

func (c *Config) Freeze() {
	c.frozen = true
}

func (c *Config) Checkout() Writable {
	if c.frozen {
		panic("cannot checkout from frozen config")
	}
	if c.edited {
		panic("config already checked out")
	}
	c.edited = true
	return c
}

func (c *Config) updateDerived() {
	c.downloadDir = filepath.Join(c.cacheDir, "downloads")
}

// DefaultPath is where Init looks for setup.toml when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, dirName, "setup.toml")
}

// Init initializes the configuration using XDG base directories and the
// built-in defaults, then applies the TOML file at path. An empty path means
// DefaultPath, which is allowed to be missing.
func Init(path string) (ReadOnly, error) {
	osType, _ := ParseOS(runtime.GOOS)

	c := &Config{
		cacheDir:  filepath.Join(xdg.CacheHome, dirName),
		configDir: filepath.Join(xdg.ConfigHome, dirName),
		stateDir:  filepath.Join(xdg.StateHome, dirName),
		os:        osType,
		settings:  Defaults(osType),
	}
	c.updateDerived()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := c.load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

func (c *Config) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Decoding on top of the defaults keeps every key the file leaves out.
	if err := toml.Unmarshal(data, &c.settings); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.settings.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}
