package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	json "github.com/goccy/go-json"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/bintree/pkg/debug"
	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
	"github.com/vanderheijden86/bintree/pkg/search"
)

// Supported snapshot formats.
const (
	FormatSVG  = "svg"
	FormatPNG  = "png"
	FormatJSON = "json"
)

// TreeSnapshotOptions controls tree snapshot export.
type TreeSnapshotOptions struct {
	Path       string          // Output path; format inferred from extension when Format empty
	Format     string          // "svg", "png" or "json" (case-insensitive)
	Title      string          // Optional title rendered in the header
	Root       *model.TreeNode // Tree to render; nil renders the empty state
	Layout     layout.Config   // Geometry; zero value means layout.DefaultConfig()
	Query      string          // Search query whose matches are highlighted
	SelectedID int             // Node drawn with the selection outline
}

// Style is the per-render decoration of a laid-out tree.
type Style struct {
	Title      string
	Highlight  search.IDSet
	SelectedID int
	Stats      model.TreeStats
	MaxPixels  int // PNG pixel budget; 0 means DefaultMaxPNGPixels
}

// SaveTreeSnapshot lays out the tree and writes it as SVG, PNG or layout JSON.
func SaveTreeSnapshot(opts TreeSnapshotOptions) error {
	format, path, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	opts.Path = path

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	res, style, err := Prepare(opts.Root, opts.Layout, opts.Title, opts.Query, opts.SelectedID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case FormatSVG:
		err = RenderSVG(&buf, res, style)
	case FormatPNG:
		err = RenderPNG(&buf, res, style)
	case FormatJSON:
		err = WriteLayoutJSON(&buf, res)
	}
	if err != nil {
		return err
	}
	debug.Log("export: wrote %s (%d bytes, %d slots)", opts.Path, buf.Len(), len(res.Slots))
	return os.WriteFile(opts.Path, buf.Bytes(), 0o644)
}

// Prepare computes the layout and decoration shared by every renderer.
func Prepare(root *model.TreeNode, cfg layout.Config, title, query string, selectedID int) (*layout.Result, Style, error) {
	if cfg == (layout.Config{}) {
		cfg = layout.DefaultConfig()
	}
	res, err := layout.Compute(root, cfg)
	if err != nil {
		return nil, Style{}, fmt.Errorf("layout: %w", err)
	}
	stats, err := model.Stats(root)
	if err != nil {
		return nil, Style{}, err
	}
	if title == "" {
		title = "Binary tree"
		if root != nil {
			title = "Binary tree: " + root.Label()
		}
	}
	return res, Style{
		Title:      title,
		Highlight:  search.FindMatchingNodeIDs(root, query),
		SelectedID: selectedID,
		Stats:      stats,
	}, nil
}

func resolveFormat(format, path string) (string, string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".svg":
			format = FormatSVG
		case ".png":
			format = FormatPNG
		case ".json":
			format = FormatJSON
		default:
			format = FormatSVG
			if path != "" && filepath.Ext(path) == "" {
				path += ".svg"
			}
		}
	}
	switch format {
	case FormatSVG, FormatPNG, FormatJSON:
	default:
		return "", "", fmt.Errorf("unsupported format %q (want svg, png or json)", format)
	}
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	return format, path, nil
}

// WriteLayoutJSON writes the computed geometry as indented JSON.
func WriteLayoutJSON(w io.Writer, res *layout.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// --- rendering -------------------------------------------------------------

const (
	headerHeight = 96.0
	emptyWidth   = 360
	emptyHeight  = 120
)

var (
	colorActive      = color.RGBA{0xc8, 0xe6, 0xc9, 0xff}
	colorInactive    = color.RGBA{0xcf, 0xd8, 0xdc, 0xff}
	colorPlaceholder = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorStroke      = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge        = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorHighlight   = color.RGBA{0xf5, 0x9e, 0x0b, 0xff}
	colorSelected    = color.RGBA{0x25, 0x63, 0xeb, 0xff}
	colorText        = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle      = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop    = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG    = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

func nodeFill(n *model.TreeNode) color.RGBA {
	if n.IsActive {
		return colorActive
	}
	return colorInactive
}

// outline returns the stroke colour and width for a member box.
func outline(s layout.Slot, style Style) (color.RGBA, float64) {
	switch {
	case s.NodeID == style.SelectedID && style.SelectedID != 0:
		return colorSelected, 3
	case style.Highlight.Has(s.NodeID):
		return colorHighlight, 3
	default:
		return colorStroke, 1.2
	}
}

func canvasSize(res *layout.Result) (int, int) {
	if res.Empty() {
		return emptyWidth, emptyHeight
	}
	return int(math.Ceil(res.Width)), int(math.Ceil(res.Height + headerHeight))
}

// DefaultMaxPNGPixels caps a PNG snapshot at about 32 MB of RGBA.
const DefaultMaxPNGPixels = 8 << 20

// PNGSize returns the pixel size of the PNG for res and the factor the
// drawing is scaled by to stay within maxPixels (<= 0 means
// DefaultMaxPNGPixels). The aspect ratio is kept.
func PNGSize(res *layout.Result, maxPixels int) (width, height int, scale float64) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPNGPixels
	}
	w, h := canvasSize(res)
	area := float64(w) * float64(h)
	if area <= float64(maxPixels) {
		return w, h, 1
	}
	scale = math.Sqrt(float64(maxPixels) / area)
	width = max(1, int(math.Floor(float64(w)*scale)))
	height = max(1, int(math.Floor(float64(h)*scale)))
	return width, height, scale
}

func summaryLines(style Style) []string {
	s := style.Stats
	return []string{
		fmt.Sprintf("members: %d  active: %d  depth: %d", s.Nodes, s.Active, s.Depth),
		fmt.Sprintf("left: %d  right: %d  open slots: %d", s.LeftCount, s.RightCount, s.OpenSlots),
		fmt.Sprintf("matches: %d", style.Highlight.Len()),
	}
}

// RenderSVG writes the laid-out tree as an SVG document.
func RenderSVG(w io.Writer, res *layout.Result, style Style) error {
	defer metrics.Timer(metrics.SnapshotRender)()
	width, height := canvasSize(res)

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Title(style.Title)
	canvas.Rect(0, 0, width, height, fmt.Sprintf("fill:%s", css(colorBackdrop)))

	if res.Empty() {
		canvas.Text(width/2, height/2, "No tree data",
			fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
		canvas.End()
		return nil
	}

	canvas.Roundrect(16, 16, width-32, int(headerHeight-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 40, style.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range summaryLines(style) {
		canvas.Text(32, 58+i*14, line, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
	}

	canvas.Gtransform(fmt.Sprintf("translate(0,%d)", int(headerHeight)))
	for _, c := range res.Connectors {
		st := fmt.Sprintf("fill:none;stroke:%s;stroke-width:2", css(colorEdge))
		if c.Placeholder {
			st += ";stroke-dasharray:6 4;opacity:0.6"
		}
		canvas.Path(c.Path, st)
	}
	for _, s := range res.Slots {
		drawSlotSVG(canvas, s, style)
	}
	canvas.Gend()
	canvas.End()
	return nil
}

func drawSlotSVG(canvas *svg.SVG, s layout.Slot, style Style) {
	x, y := int(math.Round(s.Box.X)), int(math.Round(s.Box.Y))
	w, h := int(math.Round(s.Box.W)), int(math.Round(s.Box.H))
	if s.Placeholder {
		canvas.Roundrect(x, y, w, h, 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2;stroke-dasharray:6 4", css(colorPlaceholder), css(colorSubtle)))
		canvas.Text(x+w/2, y+h/2+4, "+ Add "+strings.ToLower(string(s.Side)),
			fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:middle", css(colorSubtle)))
		return
	}

	n := s.Node
	stroke, sw := outline(s, style)
	canvas.Roundrect(x, y, w, h, 8, 8,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g", css(nodeFill(n)), css(stroke), sw))
	maxChars := int(s.Box.W / 8)
	canvas.Text(x+10, y+22, truncate(n.Label(), maxChars),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
	canvas.Text(x+10, y+40, truncate(n.Email, maxChars),
		fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	canvas.Text(x+10, y+58, truncate(bvLine(n), maxChars),
		fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
}

func bvLine(n *model.TreeNode) string {
	return fmt.Sprintf("BV L %.0f / R %.0f", n.LeftBV, n.RightBV)
}

// RenderPNG writes the laid-out tree as a PNG image.
func RenderPNG(w io.Writer, res *layout.Result, style Style) error {
	defer metrics.Timer(metrics.SnapshotRender)()
	start := time.Now()
	width, height := canvasSize(res)
	pw, ph, scale := PNGSize(res, style.MaxPixels)
	if scale < 1 {
		debug.Log("export: PNG %dx%d scaled by %.3f to %dx%d", width, height, scale, pw, ph)
	}

	dc := gg.NewContext(pw, ph)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.Scale(scale, scale)
	dc.SetFontFace(basicfont.Face7x13)

	if res.Empty() {
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored("No tree data", float64(width)/2, float64(height)/2, 0.5, 0.5)
		return dc.EncodePNG(w)
	}

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(width)-32, headerHeight-24, 10)
	dc.Fill()
	dc.SetColor(colorText)
	dc.DrawStringAnchored(style.Title, 32, 36, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range summaryLines(style) {
		dc.DrawStringAnchored(line, 32, 54+float64(i)*14, 0, 0.5)
	}

	dc.Push()
	dc.Translate(0, headerHeight)
	for _, c := range res.Connectors {
		drawConnectorPNG(dc, c)
	}
	for _, s := range res.Slots {
		drawSlotPNG(dc, s, style)
	}
	dc.Pop()

	debug.LogTiming("export.RenderPNG", time.Since(start))
	return dc.EncodePNG(w)
}

// drawConnectorPNG traces the same rounded L-shape as Connector.Path.
func drawConnectorPNG(dc *gg.Context, c layout.Connector) {
	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	if c.Placeholder {
		dc.SetDash(6, 4)
	} else {
		dc.SetDash()
	}
	dc.NewSubPath()
	dc.MoveTo(c.Start.X, c.Start.Y)
	if c.Direction == layout.Straight {
		dc.LineTo(c.End.X, c.End.Y)
	} else {
		sign := 1.0
		if c.Direction == layout.BendLeft {
			sign = -1
		}
		r := c.Radius
		dc.LineTo(c.Start.X, c.MidY-r)
		dc.QuadraticTo(c.Start.X, c.MidY, c.Start.X+sign*r, c.MidY)
		dc.LineTo(c.End.X-sign*r, c.MidY)
		dc.QuadraticTo(c.End.X, c.MidY, c.End.X, c.MidY+r)
		dc.LineTo(c.End.X, c.End.Y)
	}
	dc.Stroke()
	dc.SetDash()
}

func drawSlotPNG(dc *gg.Context, s layout.Slot, style Style) {
	b := s.Box
	if s.Placeholder {
		dc.SetColor(colorPlaceholder)
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
		dc.Fill()
		dc.SetColor(colorSubtle)
		dc.SetLineWidth(1.2)
		dc.SetDash(6, 4)
		dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
		dc.Stroke()
		dc.SetDash()
		dc.DrawStringAnchored("+ Add "+strings.ToLower(string(s.Side)), b.X+b.W/2, b.Y+b.H/2, 0.5, 0.5)
		return
	}

	n := s.Node
	dc.SetColor(nodeFill(n))
	dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
	dc.Fill()
	stroke, sw := outline(s, style)
	dc.SetColor(stroke)
	dc.SetLineWidth(sw)
	dc.DrawRoundedRectangle(b.X, b.Y, b.W, b.H, 8)
	dc.Stroke()

	maxChars := int(b.W / 7)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(truncate(n.Label(), maxChars), b.X+10, b.Y+18, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(truncate(n.Email, maxChars), b.X+10, b.Y+36, 0, 0.5)
	dc.DrawStringAnchored(truncate(bvLine(n), maxChars), b.X+10, b.Y+54, 0, 0.5)
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
