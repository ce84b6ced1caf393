package export

import (
	"bytes"
	"encoding/xml"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/testutil"
)

func assertValidXML(t *testing.T, content []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("SVG is not valid XML: %v\n%s", err, content)
		}
	}
}

func TestSaveTreeSnapshot_SVG(t *testing.T) {
	root := testutil.QuickComplete(2)
	out := filepath.Join(t.TempDir(), "nested", "tree.svg")

	err := SaveTreeSnapshot(TreeSnapshotOptions{Path: out, Root: root, Title: "Team M0001"})
	if err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}
	content, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	assertValidXML(t, content)

	s := string(content)
	if !strings.Contains(s, "<svg") || !strings.Contains(s, "Team M0001") {
		t.Errorf("missing root element or title")
	}
	if got := strings.Count(s, "<path"); got != 6 {
		t.Errorf("paths = %d, want 6 connectors (2 real, 4 placeholder)", got)
	}
	if got := strings.Count(s, "+ Add "); got != 4 {
		t.Errorf("placeholder labels = %d, want 4", got)
	}
	if !strings.Contains(s, `width="872"`) || !strings.Contains(s, `height="608"`) {
		t.Errorf("unexpected canvas size in %q", s[:200])
	}
}

func TestRenderSVG_HighlightAndSelection(t *testing.T) {
	root := testutil.QuickComplete(2)
	res, style, err := Prepare(root, layout.Config{}, "", root.RightChild.MemberID, root.LeftChild.ID)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !style.Highlight.Has(root.RightChild.ID) || style.Highlight.Len() != 1 {
		t.Fatalf("highlight = %v", style.Highlight.Sorted())
	}
	if !strings.HasPrefix(style.Title, "Binary tree: ") {
		t.Errorf("default title = %q", style.Title)
	}

	var buf bytes.Buffer
	if err := RenderSVG(&buf, res, style); err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	s := buf.String()
	if !strings.Contains(s, "stroke:"+css(colorHighlight)) {
		t.Error("highlighted node not outlined")
	}
	if !strings.Contains(s, "stroke:"+css(colorSelected)) {
		t.Error("selected node not outlined")
	}
	if !strings.Contains(s, "matches: 1") {
		t.Error("summary should report the match count")
	}
}

func TestRenderSVG_Empty(t *testing.T) {
	res, style, err := Prepare(nil, layout.Config{}, "", "", 0)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	var buf bytes.Buffer
	if err := RenderSVG(&buf, res, style); err != nil {
		t.Fatalf("RenderSVG: %v", err)
	}
	assertValidXML(t, buf.Bytes())
	if !strings.Contains(buf.String(), "No tree data") {
		t.Error("empty tree should render the empty state")
	}
	if strings.Contains(buf.String(), "<path") {
		t.Error("empty tree should have no connectors")
	}
}

func TestSaveTreeSnapshot_PNG(t *testing.T) {
	root := testutil.QuickRandom(12)
	out := filepath.Join(t.TempDir(), "tree.png")
	if err := SaveTreeSnapshot(TreeSnapshotOptions{Path: out, Root: root, Query: "m000"}); err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}

	res, _ := layout.Compute(root, layout.DefaultConfig())
	wantW, wantH := canvasSize(res)
	if b := img.Bounds(); b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("png size = %dx%d, want %dx%d", b.Dx(), b.Dy(), wantW, wantH)
	}
}

func TestPNGSize_Budget(t *testing.T) {
	res, err := layout.Compute(testutil.QuickComplete(9), layout.DefaultConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	fullW, fullH := canvasSize(res)
	w, h, scale := PNGSize(res, 0)
	if scale >= 1 {
		t.Fatalf("scale = %v for a %dx%d canvas, want < 1", scale, fullW, fullH)
	}
	if w*h > DefaultMaxPNGPixels {
		t.Errorf("png %dx%d exceeds %d pixels", w, h, DefaultMaxPNGPixels)
	}
	full := float64(fullW) / float64(fullH)
	got := float64(w) / float64(h)
	if got < full*0.95 || got > full*1.05 {
		t.Errorf("aspect ratio %.2f, want about %.2f", got, full)
	}

	small, err := layout.Compute(testutil.QuickComplete(2), layout.DefaultConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	sw, sh := canvasSize(small)
	if w, h, scale := PNGSize(small, 0); scale != 1 || w != sw || h != sh {
		t.Errorf("small tree = %dx%d scale %v, want %dx%d unscaled", w, h, scale, sw, sh)
	}
}

func TestRenderPNG_ScalesToBudget(t *testing.T) {
	const budget = 200_000
	res, style, err := Prepare(testutil.QuickComplete(8), layout.Config{}, "", "", 0)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	style.MaxPixels = budget

	var buf bytes.Buffer
	if err := RenderPNG(&buf, res, style); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	b := img.Bounds()
	if b.Dx()*b.Dy() > budget {
		t.Errorf("png %dx%d exceeds budget %d", b.Dx(), b.Dy(), budget)
	}
	wantW, wantH, _ := PNGSize(res, budget)
	if b.Dx() != wantW || b.Dy() != wantH {
		t.Errorf("png size = %dx%d, want %dx%d", b.Dx(), b.Dy(), wantW, wantH)
	}
}

func TestSaveTreeSnapshot_JSON(t *testing.T) {
	root := testutil.QuickComplete(3)
	out := filepath.Join(t.TempDir(), "layout.json")
	if err := SaveTreeSnapshot(TreeSnapshotOptions{Path: out, Root: root}); err != nil {
		t.Fatalf("SaveTreeSnapshot: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var decoded struct {
		Slots      []map[string]any `json:"slots"`
		Connectors []struct {
			Direction string `json:"direction"`
			Path      string `json:"path"`
		} `json:"connectors"`
		Width float64 `json:"width"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 7 members plus 8 placeholders.
	if len(decoded.Slots) != 15 || len(decoded.Connectors) != 14 {
		t.Errorf("slots=%d connectors=%d", len(decoded.Slots), len(decoded.Connectors))
	}
	for _, c := range decoded.Connectors {
		if c.Direction != "left" && c.Direction != "right" {
			t.Errorf("unexpected direction %q", c.Direction)
		}
		if !strings.HasPrefix(c.Path, "M ") {
			t.Errorf("bad path %q", c.Path)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		format, path         string
		wantFormat, wantPath string
		wantErr              bool
	}{
		{"", "out.svg", "svg", "out.svg", false},
		{"", "out.PNG", "png", "out.PNG", false},
		{"", "out.json", "json", "out.json", false},
		{"", "out", "svg", "out.svg", false},
		{".png", "out.bin", "png", "out.bin", false},
		{"gif", "out.gif", "", "", true},
		{"svg", "", "", "", true},
	}
	for _, tt := range tests {
		f, p, err := resolveFormat(tt.format, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveFormat(%q, %q) err = %v", tt.format, tt.path, err)
			continue
		}
		if f != tt.wantFormat || p != tt.wantPath {
			t.Errorf("resolveFormat(%q, %q) = %q, %q", tt.format, tt.path, f, p)
		}
	}
}

func TestSaveTreeSnapshot_LayoutError(t *testing.T) {
	a := testutil.QuickComplete(1)
	a.LeftChild = a
	err := SaveTreeSnapshot(TreeSnapshotOptions{Path: filepath.Join(t.TempDir(), "x.svg"), Root: a})
	if err == nil {
		t.Fatal("expected error for cyclic tree")
	}
}

func TestTruncate(t *testing.T) {
	for _, tt := range []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo", 3, "hél"},
		{"x", 0, ""},
	} {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
