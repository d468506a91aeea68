// Package ui holds the terminal pages of greenpath: the intervention
// selection loop and the results viewer, plus the shared palette.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Leaf green on slate for light terminals, the reverse for dark.
var (
	LightForeground = lipgloss.Color("#1f2d3a")
	LightPrimary    = lipgloss.Color("#2e7d32")
	LightMuted      = lipgloss.Color("#7b8794")
	LightBorder     = lipgloss.Color("#cfd8dc")

	DarkForeground = lipgloss.Color("#eceff1")
	DarkPrimary    = lipgloss.Color("#81c784")
	DarkMuted      = lipgloss.Color("#90a4ae")
	DarkBorder     = lipgloss.Color("#37474f")

	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#43a047")
	Warning     = lipgloss.Color("#ffb300")
	Info        = lipgloss.Color("#1e88e5")
)

// Theme is the active colour scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

func LightTheme() Theme {
	return Theme{Foreground: LightForeground, Primary: LightPrimary, Muted: LightMuted, Border: LightBorder}
}

func DarkTheme() Theme {
	return Theme{Foreground: DarkForeground, Primary: DarkPrimary, Muted: DarkMuted, Border: DarkBorder, IsDark: true}
}

// ThemeFor resolves the ui.theme setting. "auto" (or empty) looks at
// COLORFGBG and GREENPATH_DARK_MODE, defaulting to light.
func ThemeFor(setting string) Theme {
	switch strings.ToLower(setting) {
	case "dark":
		return DarkTheme()
	case "light":
		return LightTheme()
	}

	// COLORFGBG is "fg;bg"; low ANSI indexes are dark backgrounds.
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && (bg <= 6 || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("GREENPATH_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the rendered styles for one theme.
type Styles struct {
	Theme Theme

	Header   lipgloss.Style
	Title    lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Spinner lipgloss.Style
	Footer  lipgloss.Style
}

// NewStyles builds the styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),
		Body:     lipgloss.NewStyle().Foreground(theme.Foreground),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Bold:     lipgloss.NewStyle().Foreground(theme.Foreground).Bold(true),
		Cursor:   lipgloss.NewStyle().Foreground(theme.Primary).Bold(true),
		Selected: lipgloss.NewStyle().Foreground(theme.Primary),

		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Info:    lipgloss.NewStyle().Foreground(Info),

		Spinner: lipgloss.NewStyle().Foreground(theme.Primary),
		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(theme.Border),
	}
}

// DefaultStyles returns styles for the detected theme.
func DefaultStyles() Styles {
	return NewStyles(ThemeFor("auto"))
}
