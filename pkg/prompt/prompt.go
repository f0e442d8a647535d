// Package prompt implements the interactive steps of setup: choosing the
// destination and components, acknowledging the download advisory and picking
// the uninstall mode. Silent answers every question with its default.
package prompt

import (
	"log/slog"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// Prompter asks the user the questions setup needs answered.
// Every method returns common.ErrUserCancelled when the user aborts.
type Prompter interface {
	// Destination asks for the install directory, starting from def.
	Destination(def string) (string, error)
	// SelectComponents returns the ids of the components the user wants.
	// Locked components keep their planned state.
	SelectComponents(components []common.Component) ([]common.ComponentID, error)
	// Advisory shows a notice the user must accept to continue.
	Advisory(title, body string) error
	// Confirm asks a yes/no question.
	Confirm(title string) (bool, error)
	// UninstallMode asks whether to keep the heavy dependency.
	UninstallMode() (common.UninstallMode, error)
}

// Silent never blocks: it returns the planned defaults.
type Silent struct{}

var _ Prompter = Silent{}

func (Silent) Destination(def string) (string, error) { return def, nil }

func (Silent) SelectComponents(components []common.Component) ([]common.ComponentID, error) {
	var ids []common.ComponentID
	for _, c := range components {
		if c.Selected {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (Silent) Advisory(title, body string) error {
	slog.Info(title, "detail", body)
	return nil
}

func (Silent) Confirm(string) (bool, error) { return true, nil }

func (Silent) UninstallMode() (common.UninstallMode, error) {
	return common.UninstallComplete, nil
}
