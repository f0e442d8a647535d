package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/windows/registry"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

const uninstallRoot = `Software\Microsoft\Windows\CurrentVersion\Uninstall\`

const installDateLayout = "20060102"

// Immutable
type registryStore struct {
	root registry.Key
}

// NewRegistryStore writes records under the Uninstall key of HKCU ("user")
// or HKLM ("machine"), where Apps & Features picks them up.
func NewRegistryStore(scope string) (Store, error) {
	switch scope {
	case "", "user":
		return &registryStore{root: registry.CURRENT_USER}, nil
	case "machine":
		return &registryStore{root: registry.LOCAL_MACHINE}, nil
	default:
		return nil, fmt.Errorf("unknown registry scope %q", scope)
	}
}

func (s *registryStore) Write(ctx context.Context, state common.InstallationState) error {
	if err := validate(state); err != nil {
		return err
	}
	path := uninstallRoot + state.AppID
	k, _, err := registry.CreateKey(s.root, path, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to create registry key %s: %w", path, err)
	}
	defer k.Close()

	strs := []struct{ name, value string }{
		{"DisplayName", state.DisplayName},
		{"DisplayVersion", state.Version},
		{"Publisher", state.Publisher},
		{"InstallLocation", state.InstallDir},
		{"UninstallString", state.UninstallCommand},
		{"QuietUninstallString", state.UninstallCommand + " --silent"},
		{"InstallDate", state.InstallDate.Format(installDateLayout)},
	}
	for _, v := range strs {
		if err := k.SetStringValue(v.name, v.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.name, err)
		}
	}
	dwords := []struct {
		name  string
		value uint32
	}{
		{"EstimatedSize", uint32(state.EstimatedSizeKB)},
		{"NoModify", 1},
		{"NoRepair", 1},
	}
	for _, v := range dwords {
		if err := k.SetDWordValue(v.name, v.value); err != nil {
			return fmt.Errorf("failed to set %s: %w", v.name, err)
		}
	}
	slog.Debug("Wrote uninstall registry entry", "key", path)
	return nil
}

func (s *registryStore) Erase(ctx context.Context, appID string) error {
	path := uninstallRoot + appID
	if err := registry.DeleteKey(s.root, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("failed to delete registry key %s: %w", path, err)
	}
	return nil
}

func (s *registryStore) Read(ctx context.Context, appID string) (*common.InstallationState, error) {
	path := uninstallRoot + appID
	k, err := registry.OpenKey(s.root, path, registry.QUERY_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open registry key %s: %w", path, err)
	}
	defer k.Close()

	state := &common.InstallationState{AppID: appID}
	str := func(name string) string {
		v, _, _ := k.GetStringValue(name)
		return v
	}
	state.DisplayName = str("DisplayName")
	state.Version = str("DisplayVersion")
	state.Publisher = str("Publisher")
	state.InstallDir = str("InstallLocation")
	state.UninstallCommand = str("UninstallString")
	if size, _, err := k.GetIntegerValue("EstimatedSize"); err == nil {
		state.EstimatedSizeKB = int64(size)
	}
	if d, err := time.ParseInLocation(installDateLayout, str("InstallDate"), time.Local); err == nil {
		state.InstallDate = d
	}
	return state, nil
}

func (s *registryStore) Close() error { return nil }
