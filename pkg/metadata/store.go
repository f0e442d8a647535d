// Package metadata persists the installation record that the host uses to
// list, update and remove the application.
//
// All backends are idempotent: writing the same app twice overwrites the
// record and erasing a missing record succeeds.
package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/Liiesl/EasyScanlate/pkg/common"
	"github.com/Liiesl/EasyScanlate/pkg/config"
)

// ErrNotFound is returned by Read when no record exists for the app.
var ErrNotFound = errors.New("installation record not found")

// Store reads and writes installation records keyed by app id.
type Store interface {
	Write(ctx context.Context, state common.InstallationState) error
	Erase(ctx context.Context, appID string) error
	Read(ctx context.Context, appID string) (*common.InstallationState, error)
	Close() error
}

// Open returns the store selected by the metadata backend setting.
func Open(cfg config.ReadOnly) (Store, error) {
	m := cfg.GetSettings().Metadata
	switch m.Backend {
	case config.BackendJSON:
		return NewJSONStore(cfg.GetMetadataPath()), nil
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.GetMetadataPath())
	case config.BackendRegistry:
		return NewRegistryStore(m.Scope)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", m.Backend)
	}
}

func validate(state common.InstallationState) error {
	if state.AppID == "" {
		return errors.New("installation record has no app id")
	}
	return nil
}
