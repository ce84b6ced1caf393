package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
)

const helpMarkdown = `# bt keys

## Navigate

| Key | Action |
|-----|--------|
| ↑ / k | parent |
| ↓ / j | first child |
| ← / h, → / l | previous / next member on the same level |
| [ / ] | left / right child |
| c | center on the selection |
| pgup / pgdn, wheel | scroll (shift+wheel scrolls sideways) |

## Act

| Key | Action |
|-----|--------|
| enter / space | open the context menu for the selection |
| y | copy the selected member ID |
| / | search member ID or email, n / N next / previous match |
| u | back to the previous root, g to the top of the tree |
| r | reload the tree from the source |
| t | toggle touch mode |
| esc | close popover, menu or search |
| ? | this help, q quit |

## Pointer

Hovering a member shows its details after a short delay. Clicking opens the
context menu. Clicking an empty slot copies a signup link for that leg.

In **touch mode** the first tap shows the details, a second tap on the same
member opens the menu, and a long press opens the menu directly.
`

// renderHelp renders the help text with glamour, falling back to the raw
// markdown when no renderer can be built.
func renderHelp(width int) string {
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return strings.TrimRight(out, "\n ")
}

func newHelpViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.SetContent(renderHelp(width))
	return vp
}
