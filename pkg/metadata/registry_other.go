//go:build !windows

package metadata

import "errors"

// NewRegistryStore is only available on Windows.
func NewRegistryStore(scope string) (Store, error) {
	return nil, errors.New("registry metadata backend is only available on windows")
}
