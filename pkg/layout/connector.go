package layout

import (
	"math"
	"strconv"
	"strings"
)

// Direction is the way a connector bends on its way down to the child.
type Direction int

const (
	Straight Direction = iota
	BendLeft
	BendRight
)

func (d Direction) String() string {
	switch d {
	case BendLeft:
		return "left"
	case BendRight:
		return "right"
	default:
		return "straight"
	}
}

// MarshalText encodes the direction by name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Connector is an L-shaped path from a parent's bottom-centre anchor to a
// child's top-centre anchor, bending at the vertical midpoint between them.
type Connector struct {
	FromID      int       `json:"from_id"`
	ToID        int       `json:"to_id,omitempty"` // 0 for a placeholder
	Placeholder bool      `json:"placeholder,omitempty"`
	Start       Point     `json:"start"`
	End         Point     `json:"end"`
	MidY        float64   `json:"mid_y"`
	Radius      float64   `json:"radius"`
	Direction   Direction `json:"direction"`
	Path        string    `json:"path"` // SVG path data
}

// Segments returns the connector as straight polyline points (corners
// unrounded), for renderers that cannot draw curves.
func (c Connector) Segments() []Point {
	if c.Direction == Straight {
		return []Point{c.Start, c.End}
	}
	return []Point{
		c.Start,
		{c.Start.X, c.MidY},
		{c.End.X, c.MidY},
		c.End,
	}
}

func connect(cfg Config, parent, child Slot) Connector {
	start := parent.Box.BottomCenter()
	end := child.Box.TopCenter()
	c := Connector{
		FromID:      parent.NodeID,
		ToID:        child.NodeID,
		Placeholder: child.Placeholder,
		Start:       start,
		End:         end,
		MidY:        (start.Y + end.Y) / 2,
	}
	c.Direction, c.Radius, c.Path = connectorPath(start, end, cfg.CornerRadius)
	return c
}

const alignEpsilon = 1e-9

// connectorPath builds the SVG path data for a rounded L-shape. The corner
// radius shrinks when the horizontal or vertical run is too short for it.
func connectorPath(start, end Point, radius float64) (Direction, float64, string) {
	dx := end.X - start.X
	if math.Abs(dx) <= alignEpsilon {
		return Straight, 0, "M " + pt(start) + " V " + num(end.Y)
	}

	dir, sign := BendRight, 1.0
	if dx < 0 {
		dir, sign = BendLeft, -1.0
	}

	midY := (start.Y + end.Y) / 2
	r := math.Min(radius, math.Min(math.Abs(dx)/2, (end.Y-start.Y)/2))
	if r < 0 {
		r = 0
	}

	var b strings.Builder
	b.WriteString("M " + pt(start))
	b.WriteString(" V " + num(midY-r))
	b.WriteString(" Q " + pt(Point{start.X, midY}) + " " + pt(Point{start.X + sign*r, midY}))
	b.WriteString(" H " + num(end.X-sign*r))
	b.WriteString(" Q " + pt(Point{end.X, midY}) + " " + pt(Point{end.X, midY + r}))
	b.WriteString(" V " + num(end.Y))
	return dir, r, b.String()
}

func pt(p Point) string {
	return num(p.X) + " " + num(p.Y)
}

func num(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
