package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
	"github.com/vanderheijden86/bintree/pkg/search"
)

// cellKind selects the style of a canvas cell. When a line crosses a cell
// that already has a kind, the higher kind wins, so boxes stay on top of
// connectors.
type cellKind uint8

const (
	cellBlank cellKind = iota
	cellConnector
	cellPlaceholderLink
	cellPlaceholder
	cellMemberInactive
	cellMember
	cellMatch
	cellSelected
	cellHovered
	cellPopover
	cellPopoverTitle
	cellMenu
	cellMenuCursor
	cellMenuDisabled
	numCellKinds
)

// Line directions of a box-drawing cell.
const (
	lineUp uint8 = 1 << iota
	lineDown
	lineLeft
	lineRight
)

var lineGlyphs = map[uint8]rune{
	lineUp:                                   '│',
	lineDown:                                 '│',
	lineUp | lineDown:                        '│',
	lineLeft:                                 '─',
	lineRight:                                '─',
	lineLeft | lineRight:                     '─',
	lineDown | lineRight:                     '┌',
	lineDown | lineLeft:                      '┐',
	lineUp | lineRight:                       '└',
	lineUp | lineLeft:                        '┘',
	lineLeft | lineRight | lineDown:          '┬',
	lineLeft | lineRight | lineUp:            '┴',
	lineUp | lineDown | lineRight:            '├',
	lineUp | lineDown | lineLeft:             '┤',
	lineUp | lineDown | lineLeft | lineRight: '┼',
}

var roundedGlyphs = map[uint8]rune{
	lineDown | lineRight: '╭',
	lineDown | lineLeft:  '╮',
	lineUp | lineRight:   '╰',
	lineUp | lineLeft:    '╯',
}

type cell struct {
	ch      rune
	cont    bool // right half of a double-width rune
	bits    uint8
	kind    cellKind
	rounded bool
	dashed  bool
}

func (c cell) glyph() string {
	switch {
	case c.cont:
		return ""
	case c.ch != 0:
		return string(c.ch)
	case c.bits == 0:
		return " "
	}
	if c.rounded {
		if r, ok := roundedGlyphs[c.bits]; ok {
			return string(r)
		}
	}
	if c.dashed {
		switch c.bits {
		case lineUp | lineDown:
			return "┆"
		case lineLeft | lineRight:
			return "┄"
		}
	}
	if r, ok := lineGlyphs[c.bits]; ok {
		return string(r)
	}
	return " "
}

// Canvas is a character grid. Drawing calls take coordinates in the space of
// the origin (OX, OY), which maps to the top-left cell; anything falling
// outside the grid is clipped.
type Canvas struct {
	W, H   int
	OX, OY int
	cells  []cell
}

// NewCanvas returns a blank w x h canvas with its origin at 0,0.
func NewCanvas(w, h int) *Canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Canvas{W: w, H: h, cells: make([]cell, w*h)}
}

func (c *Canvas) at(x, y int) *cell {
	x -= c.OX
	y -= c.OY
	if x < 0 || y < 0 || x >= c.W || y >= c.H {
		return nil
	}
	return &c.cells[y*c.W+x]
}

func (c *Canvas) mark(x, y int, bits uint8, kind cellKind, rounded, dashed bool) {
	p := c.at(x, y)
	if p == nil {
		return
	}
	p.bits |= bits
	if kind >= p.kind {
		p.kind = kind
		p.rounded = rounded
		p.dashed = dashed
	}
}

// hline draws a horizontal run from x0 to x1 inclusive.
func (c *Canvas) hline(x0, x1, y int, kind cellKind, rounded, dashed bool) {
	if x0 == x1 {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	c.mark(x0, y, lineRight, kind, rounded, dashed)
	for x := x0 + 1; x < x1; x++ {
		c.mark(x, y, lineLeft|lineRight, kind, rounded, dashed)
	}
	c.mark(x1, y, lineLeft, kind, rounded, dashed)
}

// vline draws a vertical run from y0 to y1 inclusive.
func (c *Canvas) vline(x, y0, y1 int, kind cellKind, rounded, dashed bool) {
	if y0 == y1 {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	c.mark(x, y0, lineDown, kind, rounded, dashed)
	for y := y0 + 1; y < y1; y++ {
		c.mark(x, y, lineUp|lineDown, kind, rounded, dashed)
	}
	c.mark(x, y1, lineUp, kind, rounded, dashed)
}

// box outlines a w x h rectangle whose top-left cell is (x, y).
func (c *Canvas) box(x, y, w, h int, kind cellKind, rounded, dashed bool) {
	if w < 2 || h < 2 {
		return
	}
	c.hline(x, x+w-1, y, kind, rounded, dashed)
	c.hline(x, x+w-1, y+h-1, kind, rounded, dashed)
	c.vline(x, y, y+h-1, kind, rounded, dashed)
	c.vline(x+w-1, y, y+h-1, kind, rounded, dashed)
}

// fill clears a rectangle to blank cells of the given kind.
func (c *Canvas) fill(x, y, w, h int, kind cellKind) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			if p := c.at(xx, yy); p != nil {
				*p = cell{kind: kind}
			}
		}
	}
}

// text writes s starting at (x, y), truncated to maxWidth cells, and
// returns the number of cells written.
func (c *Canvas) text(x, y int, s string, maxWidth int, kind cellKind) int {
	s = truncate(s, maxWidth)
	col := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if p := c.at(x+col, y); p != nil {
			*p = cell{ch: r, kind: kind}
		}
		if rw == 2 {
			if p := c.at(x+col+1, y); p != nil {
				*p = cell{cont: true, kind: kind}
			}
		}
		col += rw
	}
	return col
}

// Plain returns the canvas as text without styling, trailing spaces trimmed.
func (c *Canvas) Plain() string {
	lines := make([]string, c.H)
	for y := 0; y < c.H; y++ {
		var b strings.Builder
		for x := 0; x < c.W; x++ {
			b.WriteString(c.cells[y*c.W+x].glyph())
		}
		lines[y] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Render styles the canvas with the theme, one style per run of equal kind.
func (c *Canvas) Render(t Theme) string {
	lines := make([]string, c.H)
	for y := 0; y < c.H; y++ {
		var b, run strings.Builder
		kind := cellBlank
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if kind == cellBlank {
				b.WriteString(run.String())
			} else {
				b.WriteString(t.CellStyle(kind).Render(run.String()))
			}
			run.Reset()
		}
		for x := 0; x < c.W; x++ {
			cl := c.cells[y*c.W+x]
			if cl.kind != kind {
				flush()
				kind = cl.kind
			}
			run.WriteString(cl.glyph())
		}
		flush()
		lines[y] = b.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Marks carries the per-node decorations of one frame.
type Marks struct {
	Selected int
	Hovered  int
	Matches  search.IDSet
}

func (mk Marks) kindOf(n *model.TreeNode) cellKind {
	switch {
	case n.ID == mk.Hovered:
		return cellHovered
	case n.ID == mk.Selected:
		return cellSelected
	case mk.Matches.Has(n.ID):
		return cellMatch
	case n.IsActive:
		return cellMember
	default:
		return cellMemberInactive
	}
}

// RasterizeView draws the part of a terminal layout that falls inside the
// w x h window whose top-left is (x, y) in layout cells.
func RasterizeView(res *layout.Result, marks Marks, x, y, w, h int) *Canvas {
	c := NewCanvas(w, h)
	c.OX, c.OY = x, y
	if res.Empty() {
		return c
	}
	view := layout.Rect{X: float64(x), Y: float64(y), W: float64(w), H: float64(h)}

	for _, conn := range res.Connectors {
		if !intersects(connectorBounds(conn), view) {
			continue
		}
		drawConnector(c, conn)
	}
	for _, s := range res.Slots {
		if !intersects(s.Box, view) {
			continue
		}
		drawSlot(c, s, marks)
	}
	return c
}

// Rasterize draws the whole layout.
func Rasterize(res *layout.Result, marks Marks) *Canvas {
	if res.Empty() {
		return NewCanvas(0, 0)
	}
	return RasterizeView(res, marks, 0, 0, cells(res.Width), cells(res.Height))
}

func drawConnector(c *Canvas, conn layout.Connector) {
	kind := cellConnector
	if conn.Placeholder {
		kind = cellPlaceholderLink
	}
	pts := conn.Segments()
	// Start on the parent's bottom border row so the junction joins the box.
	prevX, prevY := cell0(pts[0].X), cell0(pts[0].Y)-1
	for _, p := range pts[1:] {
		px, py := cell0(p.X), cell0(p.Y)
		if px == prevX {
			c.vline(px, prevY, py, kind, false, false)
		} else {
			c.hline(prevX, px, py, kind, false, false)
		}
		prevX, prevY = px, py
	}
}

func drawSlot(c *Canvas, s layout.Slot, marks Marks) {
	x, y := cell0(s.Box.X), cell0(s.Box.Y)
	w, h := cells(s.Box.W), cells(s.Box.H)
	inner := w - 2

	if s.Placeholder {
		c.box(x, y, w, h, cellPlaceholder, true, true)
		label := "+ Add " + strings.ToLower(string(s.Side))
		c.text(x+1, y+h/2, center(label, inner), inner, cellPlaceholder)
		return
	}

	kind := marks.kindOf(s.Node)
	c.box(x, y, w, h, kind, false, false)
	dot := "○"
	if s.Node.IsActive {
		dot = "●"
	}
	c.text(x+1, y+1, center(dot+" "+s.Node.Label(), inner), inner, kind)
	if h > 3 && s.Node.Email != "" {
		c.text(x+1, y+2, center(s.Node.Email, inner), inner, kind)
	}
}

func connectorBounds(conn layout.Connector) layout.Rect {
	x0, x1 := math.Min(conn.Start.X, conn.End.X), math.Max(conn.Start.X, conn.End.X)
	return layout.Rect{X: x0, Y: conn.Start.Y - 1, W: x1 - x0 + 1, H: conn.End.Y - conn.Start.Y + 2}
}

func intersects(a, b layout.Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

// cell0 converts a layout coordinate to a cell index.
func cell0(v float64) int { return int(math.Floor(v + 1e-9)) }

// cells converts a layout extent to a cell count.
func cells(v float64) int { return int(math.Ceil(v - 1e-9)) }

// hitCell returns the slot under the cell (x, y) in layout space.
func hitCell(res *layout.Result, x, y int) (layout.Slot, bool) {
	if res.Empty() {
		return layout.Slot{}, false
	}
	return res.Hit(float64(x)+0.5, float64(y)+0.5)
}
