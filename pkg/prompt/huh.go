package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/Liiesl/EasyScanlate/pkg/common"
)

// ErrNoTerminal is returned when an interactive prompt is needed but stdin or
// stdout is not a terminal. Use silent mode instead.
var ErrNoTerminal = errors.New("interactive setup requires a terminal; use --silent")

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// HuhPrompter implements Prompter with charmbracelet/huh forms on stderr.
type HuhPrompter struct {
	isTerminal func() bool
}

var _ Prompter = (*HuhPrompter)(nil)

var runFormFunc = func(form *huh.Form) error { return form.Run() }

// NewHuhPrompter creates a prompter that refuses to run without a terminal.
func NewHuhPrompter() *HuhPrompter {
	return &HuhPrompter{isTerminal: IsInteractive}
}

func keyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	km.Quit = key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "cancel"))
	return km
}

// interruptFilter turns InterruptMsg into QuitMsg so the form is cleared from
// the screen on abort.
func interruptFilter(_ tea.Model, msg tea.Msg) tea.Msg {
	if _, ok := msg.(tea.InterruptMsg); ok {
		return tea.QuitMsg{}
	}
	return msg
}

func (p *HuhPrompter) runForm(form *huh.Form) error {
	checker := p.isTerminal
	if checker == nil {
		checker = IsInteractive
	}
	if !checker() {
		return ErrNoTerminal
	}

	form.WithKeyMap(keyMap())
	form.WithProgramOptions(
		tea.WithOutput(os.Stderr),
		tea.WithFilter(interruptFilter),
	)

	err := runFormFunc(form)
	if errors.Is(err, huh.ErrUserAborted) {
		return common.ErrUserCancelled
	}
	return err
}

func (p *HuhPrompter) Destination(def string) (string, error) {
	dir := def
	err := p.runForm(huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Install location").
			Value(&dir).
			Validate(validateDir),
	)))
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(dir)), nil
}

func validateDir(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("choose a directory")
	}
	if !filepath.IsAbs(s) {
		return errors.New("use an absolute path")
	}
	return nil
}

func (p *HuhPrompter) SelectComponents(components []common.Component) ([]common.ComponentID, error) {
	var opts []huh.Option[string]
	for _, c := range components {
		if !c.Optional() {
			continue
		}
		label := c.Label
		if c.Locked {
			label += " (required for this install)"
		}
		opts = append(opts, huh.NewOption(label, string(c.ID)).Selected(c.Selected))
	}

	var picked []string
	err := p.runForm(huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title("Components").
			Description("Space toggles, enter continues").
			Filterable(false).
			Options(opts...).
			Value(&picked).
			Validate(lockedValidator(components)),
	)))
	if err != nil {
		return nil, err
	}

	ids := make([]common.ComponentID, 0, len(picked)+1)
	for _, c := range components {
		if c.Required {
			ids = append(ids, c.ID)
		}
	}
	for _, s := range picked {
		ids = append(ids, common.ComponentID(s))
	}
	return ids, nil
}

// lockedValidator rejects a selection that changes any locked component.
func lockedValidator(components []common.Component) func([]string) error {
	return func(picked []string) error {
		set := make(map[string]bool, len(picked))
		for _, s := range picked {
			set[s] = true
		}
		for _, c := range components {
			if !c.Optional() || !c.Locked {
				continue
			}
			if set[string(c.ID)] != c.Selected {
				return fmt.Errorf("%s cannot be changed for this install", c.Label)
			}
		}
		return nil
	}
}

func (p *HuhPrompter) Advisory(title, body string) error {
	ok := true
	err := p.runForm(huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(body).
			Affirmative("Continue").
			Negative("Cancel").
			Value(&ok),
	)))
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrUserCancelled
	}
	return nil
}

func (p *HuhPrompter) Confirm(title string) (bool, error) {
	ok := true
	if err := p.runForm(huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))); err != nil {
		return false, err
	}
	return ok, nil
}

func (p *HuhPrompter) UninstallMode() (common.UninstallMode, error) {
	mode := common.UninstallComplete
	err := p.runForm(huh.NewForm(huh.NewGroup(
		huh.NewSelect[common.UninstallMode]().
			Title("Uninstall").
			Description("The runtime libraries are a large download. Keep them to make a later reinstall fast.").
			Options(
				huh.NewOption("Remove everything", common.UninstallComplete),
				huh.NewOption("Keep runtime libraries", common.UninstallPreserveHeavy),
			).
			Value(&mode),
	)))
	if err != nil {
		return "", err
	}
	return mode, nil
}
