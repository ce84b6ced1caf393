package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// scrollMargin is how many cells are kept between a scrolled-to box and the
// edge of the body.
const scrollMargin = 2

// Palette. Adaptive so the tree reads on light and dark terminals alike.
var (
	colorText     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	colorSubtext  = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"}
	colorOnAccent = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}

	colorAccent    = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"}
	colorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}

	colorActive    = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	colorInactive  = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6272A4"}
	colorSlot      = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	colorSlotLink  = lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"}
	colorLink      = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#6272A4"}
	colorSelected  = lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#6699FF"}
	colorMatch     = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	colorHighlight = lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}
)

// Overlay backgrounds only apply on TrueColor terminals; see ThemeBg.
const (
	hexHoverBg   = "#363949"
	hexOverlayBg = "#21222C"
)

// RenderLegBar renders the left/right leg balance as a split bar of the given
// width: the left share in the accent color, the right share muted.
func RenderLegBar(left, right, width int, t Theme) string {
	if width <= 0 {
		return ""
	}
	total := left + right
	filled := width / 2
	if total > 0 {
		filled = left * width / total
	}
	bar := t.Renderer.NewStyle().Foreground(t.Primary).Render(strings.Repeat("█", filled)) +
		t.Renderer.NewStyle().Foreground(t.Secondary).Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("L %d %s %d R", left, bar, right)
}
