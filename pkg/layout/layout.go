// Package layout maps a binary referral tree onto non-overlapping 2D
// coordinates and produces the connector geometry between parents and
// children.
//
// Every real node reserves room for both of its child slots: an empty slot
// under a real node becomes a placeholder ("add user") that is laid out
// exactly like a member box. Nothing is placed below a placeholder.
//
// The computation is pure: the same tree and Config always yield the same
// Result. Traversals use explicit worklists so deep trees cannot exhaust the
// goroutine stack, and Config.MaxDepth bounds the work on malformed input.
package layout

import (
	"errors"
	"fmt"
	"time"

	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
)

var (
	// ErrDepthExceeded is returned when the tree is deeper than Config.MaxDepth.
	ErrDepthExceeded = errors.New("tree exceeds maximum layout depth")
	// ErrCycle is returned when a node is reachable twice.
	ErrCycle = model.ErrCycle
)

// Config holds the geometry constants. All values are in output units
// (pixels for SVG/PNG, cells for the terminal).
type Config struct {
	NodeWidth         float64 `yaml:"node_width" toml:"node_width"`
	NodeHeight        float64 `yaml:"node_height" toml:"node_height"`
	HorizontalSpacing float64 `yaml:"horizontal_spacing" toml:"horizontal_spacing"`
	VerticalSpacing   float64 `yaml:"vertical_spacing" toml:"vertical_spacing"`
	Margin            float64 `yaml:"margin" toml:"margin"`
	CornerRadius      float64 `yaml:"corner_radius" toml:"corner_radius"`
	MaxDepth          int     `yaml:"max_depth" toml:"max_depth"` // 0 disables the guard
}

// DefaultConfig returns the pixel geometry used by the SVG and PNG renderers.
func DefaultConfig() Config {
	return Config{
		NodeWidth:         180,
		NodeHeight:        80,
		HorizontalSpacing: 24,
		VerticalSpacing:   64,
		Margin:            40,
		CornerRadius:      10,
		MaxDepth:          64,
	}
}

// TerminalConfig returns a cell-sized geometry for the TUI canvas.
func TerminalConfig() Config {
	return Config{
		NodeWidth:         16,
		NodeHeight:        3,
		HorizontalSpacing: 2,
		VerticalSpacing:   2,
		Margin:            0,
		CornerRadius:      0,
		MaxDepth:          64,
	}
}

// Validate rejects geometry that cannot produce a sensible layout.
func (c Config) Validate() error {
	if c.NodeWidth <= 0 || c.NodeHeight <= 0 {
		return fmt.Errorf("node size must be positive (got %gx%g)", c.NodeWidth, c.NodeHeight)
	}
	if c.HorizontalSpacing < 0 || c.VerticalSpacing < 0 || c.Margin < 0 || c.CornerRadius < 0 {
		return fmt.Errorf("spacing, margin and corner radius must not be negative")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative")
	}
	return nil
}

// Point is a coordinate in output units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned box given by its top-left corner and size.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Contains reports whether p lies inside the rectangle (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// TopCenter is the anchor where an incoming connector ends.
func (r Rect) TopCenter() Point { return Point{r.X + r.W/2, r.Y} }

// BottomCenter is the anchor where outgoing connectors start.
func (r Rect) BottomCenter() Point { return Point{r.X + r.W/2, r.Y + r.H} }

// Slot is a laid-out position: either a real member or an empty child slot.
type Slot struct {
	Node        *model.TreeNode `json:"-"`
	NodeID      int             `json:"node_id,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`

	// Set for placeholders (and for real children, for symmetry).
	ParentID       int            `json:"parent_id,omitempty"`
	ParentMemberID string         `json:"parent_member_id,omitempty"`
	Side           model.Position `json:"side,omitempty"`

	CenterX float64 `json:"center_x"`
	Top     float64 `json:"top"`
	Width   float64 `json:"width"` // reserved subtree width
	Depth   int     `json:"depth"` // 0 for the root
	Box     Rect    `json:"box"`
}

// Band returns the horizontal range reserved for the slot's subtree.
func (s Slot) Band() (lo, hi float64) {
	return s.CenterX - s.Width/2, s.CenterX + s.Width/2
}

// Result is the complete layout of one tree.
type Result struct {
	Config     Config      `json:"config"`
	Slots      []Slot      `json:"slots"`
	Connectors []Connector `json:"connectors"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Depth      int         `json:"depth"` // real levels, 0 for an empty tree

	byID map[int]int
}

// Empty reports whether the layout has nothing to draw.
func (r *Result) Empty() bool {
	return r == nil || len(r.Slots) == 0
}

// Slot returns the slot of a real node by id.
func (r *Result) Slot(id int) (Slot, bool) {
	if r == nil {
		return Slot{}, false
	}
	i, ok := r.byID[id]
	if !ok {
		return Slot{}, false
	}
	return r.Slots[i], true
}

// Anchor returns the intended box of a node. It is the pure counterpart of a
// rendered anchor lookup and reports false for ids that were not laid out.
func (r *Result) Anchor(id int) (Rect, bool) {
	s, ok := r.Slot(id)
	if !ok {
		return Rect{}, false
	}
	return s.Box, true
}

// Hit returns the slot whose box contains the point.
func (r *Result) Hit(x, y float64) (Slot, bool) {
	if r == nil {
		return Slot{}, false
	}
	p := Point{x, y}
	for _, s := range r.Slots {
		if s.Box.Contains(p) {
			return s, true
		}
	}
	return Slot{}, false
}

// Placeholders returns the empty child slots in layout order.
func (r *Result) Placeholders() []Slot {
	if r == nil {
		return nil
	}
	var out []Slot
	for _, s := range r.Slots {
		if s.Placeholder {
			out = append(out, s)
		}
	}
	return out
}

// Compute lays out the tree. A nil root yields an empty Result without doing
// any layout work.
func Compute(root *model.TreeNode, cfg Config) (*Result, error) {
	res := &Result{Config: cfg, byID: map[int]int{}}
	if root == nil {
		return res, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defer metrics.Timer(metrics.LayoutCompute)()
	start := time.Now()

	widths, depth, err := measure(root, cfg)
	if err != nil {
		return nil, err
	}

	total := widths[root]
	res.Depth = depth
	res.Width = total + 2*cfg.Margin
	res.Height = float64(depth+1)*(cfg.NodeHeight+cfg.VerticalSpacing) + 2*cfg.Margin

	rootSlot := newSlot(cfg, root, cfg.Margin+total/2, cfg.Margin, total, 0)
	res.add(rootSlot)

	// Breadth-first placement keeps Slots ordered by depth.
	queue := []Slot{rootSlot}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		n := parent.Node

		lo, hi := parent.Band()
		childTop := parent.Top + cfg.NodeHeight + cfg.VerticalSpacing
		wl := widthOf(cfg, n.LeftChild, n.LeftChild == nil, widths)
		wr := widthOf(cfg, n.RightChild, n.RightChild == nil, widths)

		children := [2]struct {
			node   *model.TreeNode
			side   model.Position
			center float64
			width  float64
		}{
			{n.LeftChild, model.PositionLeft, lo + wl/2, wl},
			{n.RightChild, model.PositionRight, hi - wr/2, wr},
		}
		for _, c := range children {
			var child Slot
			if c.node != nil {
				child = newSlot(cfg, c.node, c.center, childTop, c.width, parent.Depth+1)
			} else {
				child = newPlaceholder(cfg, c.center, childTop, c.width, parent.Depth+1)
			}
			child.ParentID = n.ID
			child.ParentMemberID = n.MemberID
			child.Side = c.side
			res.add(child)
			res.Connectors = append(res.Connectors, connect(cfg, parent, child))
			if c.node != nil {
				queue = append(queue, child)
			}
		}
	}

	debug.LogTiming(fmt.Sprintf("layout.Compute (%d slots)", len(res.Slots)), time.Since(start))
	return res, nil
}

func (r *Result) add(s Slot) {
	if !s.Placeholder {
		r.byID[s.NodeID] = len(r.Slots)
	}
	r.Slots = append(r.Slots, s)
}

func newSlot(cfg Config, n *model.TreeNode, centerX, top, width float64, depth int) Slot {
	return Slot{
		Node:    n,
		NodeID:  n.ID,
		CenterX: centerX,
		Top:     top,
		Width:   width,
		Depth:   depth,
		Box:     Rect{X: centerX - cfg.NodeWidth/2, Y: top, W: cfg.NodeWidth, H: cfg.NodeHeight},
	}
}

func newPlaceholder(cfg Config, centerX, top, width float64, depth int) Slot {
	return Slot{
		Placeholder: true,
		CenterX:     centerX,
		Top:         top,
		Width:       width,
		Depth:       depth,
		Box:         Rect{X: centerX - cfg.NodeWidth/2, Y: top, W: cfg.NodeWidth, H: cfg.NodeHeight},
	}
}

// SubtreeWidth returns the horizontal footprint of the subtree rooted at n.
// A missing node reserves one node width when reserveSlotIfMissing is set and
// nothing otherwise. A leaf reserves room for its two placeholder slots.
func SubtreeWidth(n *model.TreeNode, reserveSlotIfMissing bool, cfg Config) (float64, error) {
	if n == nil {
		return widthOf(cfg, nil, reserveSlotIfMissing, nil), nil
	}
	widths, _, err := measure(n, cfg)
	if err != nil {
		return 0, err
	}
	return widths[n], nil
}

// MaxDepth returns the number of real levels under and including n.
func MaxDepth(n *model.TreeNode, cfg Config) (int, error) {
	if n == nil {
		return 0, nil
	}
	_, depth, err := measure(n, cfg)
	return depth, err
}

func widthOf(cfg Config, n *model.TreeNode, reserve bool, widths map[*model.TreeNode]float64) float64 {
	if n == nil {
		if reserve {
			return cfg.NodeWidth
		}
		return 0
	}
	return widths[n]
}

// measure computes every subtree width in post-order and the tree depth.
func measure(root *model.TreeNode, cfg Config) (map[*model.TreeNode]float64, int, error) {
	type frame struct {
		node     *model.TreeNode
		level    int
		expanded bool
	}

	widths := make(map[*model.TreeNode]float64)
	seen := make(map[*model.TreeNode]struct{})
	maxLevel := 0
	stack := []frame{{node: root, level: 1}}

	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		if !f.expanded {
			if _, dup := seen[f.node]; dup {
				return nil, 0, fmt.Errorf("node %d: %w", f.node.ID, ErrCycle)
			}
			seen[f.node] = struct{}{}
			if cfg.MaxDepth > 0 && f.level > cfg.MaxDepth {
				return nil, 0, fmt.Errorf("node %d at level %d (max %d): %w", f.node.ID, f.level, cfg.MaxDepth, ErrDepthExceeded)
			}
			if f.level > maxLevel {
				maxLevel = f.level
			}
			stack[top].expanded = true
			if f.node.RightChild != nil {
				stack = append(stack, frame{node: f.node.RightChild, level: f.level + 1})
			}
			if f.node.LeftChild != nil {
				stack = append(stack, frame{node: f.node.LeftChild, level: f.level + 1})
			}
			continue
		}

		stack = stack[:top]
		n := f.node
		if n.IsLeaf() {
			widths[n] = 2*cfg.NodeWidth + cfg.HorizontalSpacing
			continue
		}
		widths[n] = widthOf(cfg, n.LeftChild, n.LeftChild == nil, widths) +
			cfg.HorizontalSpacing +
			widthOf(cfg, n.RightChild, n.RightChild == nil, widths)
	}
	return widths, maxLevel, nil
}
