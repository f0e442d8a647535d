package display

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the styles and symbols of the console display.
type Theme struct {
	Bold   lipgloss.Style
	Cyan   lipgloss.Style
	Green  lipgloss.Style
	Yellow lipgloss.Style
	Dim    lipgloss.Style

	IconWarn string
	IconOK   string
}

// DefaultTheme uses the basic ANSI palette so it reads on light and dark terminals.
func DefaultTheme() *Theme {
	return &Theme{
		Bold:   lipgloss.NewStyle().Bold(true),
		Cyan:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		Green:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		Dim:    lipgloss.NewStyle().Faint(true),

		IconWarn: "⚠",
		IconOK:   "✔",
	}
}

// Styled renders text with style; styles degrade to plain text off a terminal.
func (t *Theme) Styled(style lipgloss.Style, text string) string {
	return style.Render(text)
}
