package release

import (
	"github.com/Masterminds/semver/v3"
)

// UpdateStatus is the outcome of comparing the installed version with a release.
type UpdateStatus string

const (
	StatusNotInstalled    UpdateStatus = "not installed"
	StatusUpToDate        UpdateStatus = "up to date"
	StatusUpdateAvailable UpdateStatus = "update available"
	// StatusUnknown means one of the versions could not be parsed and the tags differ.
	StatusUnknown UpdateStatus = "unknown"
)

// CheckUpdate compares installed (empty when nothing is installed) with latest.
func CheckUpdate(installed string, latest *Release) UpdateStatus {
	if installed == "" {
		return StatusNotInstalled
	}
	cur := ParseVersion(installed)
	if cur == nil || latest.Version == nil {
		if installed == latest.Tag {
			return StatusUpToDate
		}
		return StatusUnknown
	}
	if latest.Version.GreaterThan(cur) {
		return StatusUpdateAvailable
	}
	return StatusUpToDate
}

// IsDowngrade reports whether installing next over installed goes back in
// version. Unparseable versions never count as a downgrade.
func IsDowngrade(installed, next string) bool {
	cur, err := semver.NewVersion(installed)
	if err != nil {
		return false
	}
	n, err := semver.NewVersion(next)
	if err != nil {
		return false
	}
	return n.LessThan(cur)
}
