package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/bintree/pkg/interact"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// rect is a screen rectangle in body cells.
type rect struct{ X, Y, W, H int }

func (r rect) contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

const (
	popoverMinWidth = 28
	popoverMaxWidth = 44
)

// popoverLines returns the detail popover content for a member.
func popoverLines(n *model.TreeNode) []string {
	status := "inactive"
	if n.IsActive {
		status = "active"
	}
	lines := []string{
		fmt.Sprintf("%s (%s)", n.Label(), status),
	}
	if n.Name != "" {
		lines = append(lines, "Name     "+n.Name)
	}
	lines = append(lines, "Email    "+orDash(n.Email))
	if n.Position != "" {
		lines = append(lines, "Position "+strings.ToLower(string(n.Position)))
	}
	lines = append(lines, "Joined   "+formatJoinDate(n.JoinDate))
	if n.Rank != "" {
		lines = append(lines, "Rank     "+n.Rank)
	}
	if n.LeftBV != 0 || n.RightBV != 0 {
		lines = append(lines, fmt.Sprintf("BV       L %s | R %s", formatBV(n.LeftBV), formatBV(n.RightBV)))
	}
	if n.SponsorMemberID != "" {
		lines = append(lines, "Sponsor  "+n.SponsorMemberID)
	}
	return lines
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// popoverRect places the popover directly under its anchor, or above it when
// there is no room below, clamped to the screen.
func popoverRect(h *interact.HoverState, lines []string, screenW, screenH int) rect {
	w := popoverMinWidth
	for _, l := range lines {
		if lw := runewidth.StringWidth(l) + 4; lw > w {
			w = lw
		}
	}
	if w > popoverMaxWidth {
		w = popoverMaxWidth
	}
	r := rect{
		X: cell0(h.Position.X),
		Y: cell0(h.Position.Y + h.AnchorHeight),
		W: w,
		H: len(lines) + 2,
	}
	if r.Y+r.H > screenH {
		if above := cell0(h.Position.Y) - r.H; above >= 0 {
			r.Y = above
		}
	}
	return clampRect(r, screenW, screenH)
}

func clampRect(r rect, screenW, screenH int) rect {
	if r.X+r.W > screenW {
		r.X = screenW - r.W
	}
	if r.Y+r.H > screenH {
		r.Y = screenH - r.H
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r
}

func drawPopover(c *Canvas, r rect, lines []string) {
	c.fill(r.X, r.Y, r.W, r.H, cellPopover)
	c.box(r.X, r.Y, r.W, r.H, cellPopover, true, false)
	for i, l := range lines {
		kind := cellPopover
		if i == 0 {
			kind = cellPopoverTitle
		}
		c.text(r.X+2, r.Y+1+i, l, r.W-4, kind)
	}
}

// menuAction identifies a context menu entry.
type menuAction int

const (
	actCopyID menuAction = iota
	actAddLeft
	actAddRight
	actReroot
	actClose
)

type menuItem struct {
	label    string
	action   menuAction
	disabled bool
}

// menuItems lists the context menu entries for n. Adding is only offered
// for empty slots; re-rooting is pointless on the current root.
func menuItems(n *model.TreeNode, rootID int) []menuItem {
	return []menuItem{
		{label: "Copy member ID", action: actCopyID},
		{label: "Add member on left", action: actAddLeft, disabled: n.LeftChild != nil},
		{label: "Add member on right", action: actAddRight, disabled: n.RightChild != nil},
		{label: "View subtree from here", action: actReroot, disabled: n.ID == rootID},
		{label: "Close", action: actClose},
	}
}

func menuRect(at layout.Point, items []menuItem, title string, screenW, screenH int) rect {
	w := runewidth.StringWidth(title) + 4
	for _, it := range items {
		if lw := runewidth.StringWidth(it.label) + 6; lw > w {
			w = lw
		}
	}
	r := rect{X: cell0(at.X), Y: cell0(at.Y), W: w, H: len(items) + 3}
	return clampRect(r, screenW, screenH)
}

// menuItemAt returns the index of the item on screen row y, or -1.
func menuItemAt(r rect, items []menuItem, x, y int) int {
	if !r.contains(x, y) {
		return -1
	}
	i := y - r.Y - 2
	if i < 0 || i >= len(items) {
		return -1
	}
	return i
}

func drawMenu(c *Canvas, r rect, title string, items []menuItem, cursor int) {
	c.fill(r.X, r.Y, r.W, r.H, cellMenu)
	c.box(r.X, r.Y, r.W, r.H, cellMenu, false, false)
	c.text(r.X+2, r.Y+1, title, r.W-4, cellPopoverTitle)
	for i, it := range items {
		kind := cellMenu
		switch {
		case it.disabled:
			kind = cellMenuDisabled
		case i == cursor:
			kind = cellMenuCursor
		}
		label := padRight("  "+it.label, r.W-2)
		if i == cursor {
			label = padRight("› "+it.label, r.W-2)
		}
		c.text(r.X+1, r.Y+2+i, label, r.W-2, kind)
	}
}

// nextEnabled moves the cursor by delta, skipping disabled items and
// wrapping around. It returns cursor unchanged when nothing is enabled.
func nextEnabled(items []menuItem, cursor, delta int) int {
	n := len(items)
	for step := 1; step <= n; step++ {
		i := ((cursor+delta*step)%n + n) % n
		if !items[i].disabled {
			return i
		}
	}
	return cursor
}
