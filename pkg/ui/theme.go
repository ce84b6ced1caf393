package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background instead of a down-converted approximation.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor

	// Member status
	Active   lipgloss.AdaptiveColor
	Inactive lipgloss.AdaptiveColor

	// UI Elements
	Border      lipgloss.AdaptiveColor
	Connector   lipgloss.AdaptiveColor
	Placeholder lipgloss.AdaptiveColor
	Selection   lipgloss.AdaptiveColor
	Match       lipgloss.AdaptiveColor
	Highlight   lipgloss.AdaptiveColor
	Muted       lipgloss.AdaptiveColor

	// Styles
	Base   lipgloss.Style
	Header lipgloss.Style
	Status lipgloss.Style
	Error  lipgloss.Style

	// cells maps every canvas cell kind to its style. Built once so the
	// per-frame render does not allocate styles.
	cells [numCellKinds]lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary:   colorAccent,
		Secondary: colorSecondary,
		Subtext:   colorSubtext,

		Active:   colorActive,
		Inactive: colorInactive,

		Border:      colorSlotLink,
		Connector:   colorLink,
		Placeholder: colorSlot,
		Selection:   colorSelected,
		Match:       colorMatch,
		Highlight:   colorHighlight,
		Muted:       colorSecondary,
	}

	t.Base = r.NewStyle().Foreground(colorText)
	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(colorOnAccent).
		Bold(true).
		Padding(0, 1)
	t.Status = r.NewStyle().Foreground(t.Subtext)
	t.Error = r.NewStyle().Foreground(colorDanger).Bold(true)

	overlay := r.NewStyle().Foreground(colorText).Background(ThemeBg(hexOverlayBg))
	t.cells[cellBlank] = r.NewStyle()
	t.cells[cellConnector] = r.NewStyle().Foreground(t.Connector)
	t.cells[cellPlaceholderLink] = r.NewStyle().Foreground(t.Border)
	t.cells[cellMember] = r.NewStyle().Foreground(t.Active)
	t.cells[cellMemberInactive] = r.NewStyle().Foreground(t.Inactive)
	t.cells[cellPlaceholder] = r.NewStyle().Foreground(t.Placeholder).Faint(true)
	t.cells[cellMatch] = r.NewStyle().Foreground(t.Match).Bold(true)
	t.cells[cellSelected] = r.NewStyle().Foreground(t.Selection).Bold(true)
	t.cells[cellHovered] = r.NewStyle().Foreground(t.Primary).Background(ThemeBg(hexHoverBg))
	t.cells[cellPopover] = overlay
	t.cells[cellPopoverTitle] = overlay.Foreground(t.Primary).Bold(true)
	t.cells[cellMenu] = overlay
	t.cells[cellMenuCursor] = r.NewStyle().Foreground(colorOnAccent).Background(t.Primary).Bold(true)
	t.cells[cellMenuDisabled] = overlay.Foreground(t.Muted)

	return t
}

// CellStyle returns the style used for a canvas cell kind.
func (t Theme) CellStyle(k cellKind) lipgloss.Style {
	if int(k) >= len(t.cells) {
		return t.cells[cellBlank]
	}
	return t.cells[k]
}

// NewRenderer returns a lipgloss renderer for stdout honouring the configured
// theme mode ("auto", "dark" or "light").
func NewRenderer(mode string) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(os.Stdout)
	switch mode {
	case "dark":
		r.SetHasDarkBackground(true)
	case "light":
		r.SetHasDarkBackground(false)
	}
	return r
}

// TestTheme returns a theme suitable for use in tests (uses nil renderer).
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
