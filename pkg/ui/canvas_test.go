package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/search"
	"github.com/vanderheijden86/bintree/pkg/testutil"
)

func terminalLayout(t *testing.T, levels int) *layout.Result {
	t.Helper()
	res, err := layout.Compute(testutil.QuickComplete(levels), layout.TerminalConfig())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return res
}

func runeAt(t *testing.T, lines []string, x, y int) rune {
	t.Helper()
	if y >= len(lines) {
		t.Fatalf("row %d out of range (%d rows)", y, len(lines))
	}
	r := []rune(lines[y])
	if x >= len(r) {
		return ' '
	}
	return r[x]
}

func TestRasterizeSingleNode(t *testing.T) {
	res := terminalLayout(t, 1)
	c := Rasterize(res, Marks{})
	if c.W != 34 || c.H != 10 {
		t.Fatalf("canvas = %dx%d, want 34x10", c.W, c.H)
	}
	lines := strings.Split(c.Plain(), "\n")

	if want := strings.Repeat(" ", 9) + "┌" + strings.Repeat("─", 14) + "┐"; lines[0] != want {
		t.Errorf("row 0 = %q, want %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "M0001") {
		t.Errorf("row 1 missing label: %q", lines[1])
	}

	tests := []struct {
		name string
		x, y int
		want rune
	}{
		{"root bottom-left", 9, 2, '└'},
		{"root junction", 17, 2, '┬'},
		{"root bottom-right", 24, 2, '┘'},
		{"stem", 17, 3, '│'},
		{"left bend", 8, 4, '┌'},
		{"split", 17, 4, '┴'},
		{"right bend", 26, 4, '┐'},
		{"left slot corner", 0, 5, '╭'},
		{"left slot dashed edge", 3, 5, '┄'},
		{"left slot junction", 8, 5, '┴'},
		{"left slot corner right", 15, 5, '╮'},
		{"right slot junction", 26, 5, '┴'},
		{"left slot side", 0, 6, '┆'},
		{"left slot bottom", 0, 7, '╰'},
		{"right slot bottom", 33, 7, '╯'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := runeAt(t, lines, tt.x, tt.y); got != tt.want {
				t.Errorf("(%d,%d) = %q, want %q", tt.x, tt.y, got, tt.want)
			}
		})
	}

	if want := strings.Repeat(" ", 8) + "┌" + strings.Repeat("─", 8) + "┴" + strings.Repeat("─", 8) + "┐"; lines[4] != want {
		t.Errorf("row 4 = %q, want %q", lines[4], want)
	}
	if !strings.Contains(lines[6], "+ Add left") || !strings.Contains(lines[6], "+ Add right") {
		t.Errorf("row 6 missing placeholder labels: %q", lines[6])
	}
	if lines[8] != "" || lines[9] != "" {
		t.Errorf("spare rows not blank: %q %q", lines[8], lines[9])
	}
}

func TestRasterizeViewClips(t *testing.T) {
	res := terminalLayout(t, 1)
	c := RasterizeView(res, Marks{}, 9, 0, 16, 3)
	lines := strings.Split(c.Plain(), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d rows", len(lines))
	}
	if lines[0] != "┌"+strings.Repeat("─", 14)+"┐" {
		t.Errorf("row 0 = %q", lines[0])
	}
	if want := "└" + strings.Repeat("─", 7) + "┬" + strings.Repeat("─", 6) + "┘"; lines[2] != want {
		t.Errorf("row 2 = %q, want %q", lines[2], want)
	}
}

func TestRasterizeCompleteTreeLabels(t *testing.T) {
	res := terminalLayout(t, 3)
	plain := Rasterize(res, Marks{}).Plain()
	for _, id := range []string{"M0001", "M0002", "M0003", "M0004", "M0005", "M0006", "M0007"} {
		if !strings.Contains(plain, id) {
			t.Errorf("missing %s", id)
		}
	}
	if got := strings.Count(plain, "+ Add "); got != 8 {
		t.Errorf("placeholders = %d, want 8", got)
	}
}

func TestRasterizeEmpty(t *testing.T) {
	c := Rasterize(&layout.Result{}, Marks{})
	if c.W != 0 || c.H != 0 || c.Plain() != "" {
		t.Errorf("empty layout drew %dx%d %q", c.W, c.H, c.Plain())
	}
	v := RasterizeView(nil, Marks{}, 0, 0, 5, 2)
	if v.Plain() != "\n" {
		t.Errorf("nil layout view = %q", v.Plain())
	}
}

func TestCanvasTextWideRunes(t *testing.T) {
	c := NewCanvas(8, 1)
	n := c.text(0, 0, "日本語です", 6, cellMember)
	if n != 5 {
		t.Errorf("wrote %d cells, want 5", n)
	}
	if got := c.Plain(); got != "日本…" {
		t.Errorf("Plain = %q", got)
	}
}

func TestCanvasClipsOutside(t *testing.T) {
	c := NewCanvas(3, 2)
	c.box(-2, -1, 10, 10, cellMember, false, false)
	c.text(5, 0, "x", 1, cellMember)
	if got := c.Plain(); got != "\n" {
		t.Errorf("Plain = %q", got)
	}
}

func TestMarksKindPriority(t *testing.T) {
	n := testutil.NewDefault().Node("")
	tests := []struct {
		name  string
		marks Marks
		want  cellKind
	}{
		{"plain active", Marks{}, cellMember},
		{"match", Marks{Matches: search.IDSet{n.ID: {}}}, cellMatch},
		{"selected beats match", Marks{Selected: n.ID, Matches: search.IDSet{n.ID: {}}}, cellSelected},
		{"hover beats selected", Marks{Hovered: n.ID, Selected: n.ID}, cellHovered},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.marks.kindOf(n); got != tt.want {
				t.Errorf("kindOf = %d, want %d", got, tt.want)
			}
		})
	}
	n.IsActive = false
	if got := (Marks{}).kindOf(n); got != cellMemberInactive {
		t.Errorf("inactive kind = %d", got)
	}
}

func TestRenderKeepsText(t *testing.T) {
	res := terminalLayout(t, 2)
	out := Rasterize(res, Marks{Selected: 1}).Render(TestTheme())
	for _, want := range []string{"M0001", "M0002", "M0003", "+ Add left"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered canvas missing %q", want)
		}
	}
}

func TestHitCell(t *testing.T) {
	res := terminalLayout(t, 1)
	tests := []struct {
		name        string
		x, y        int
		wantOK      bool
		placeholder bool
	}{
		{"root corner", 9, 0, true, false},
		{"root far corner", 24, 2, true, false},
		{"left of root", 8, 0, false, false},
		{"right of root", 25, 1, false, false},
		{"connector row", 17, 3, false, false},
		{"left slot", 0, 5, true, true},
		{"outside", -1, -1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ok := hitCell(res, tt.x, tt.y)
			if ok != tt.wantOK {
				t.Fatalf("hit = %v, want %v", ok, tt.wantOK)
			}
			if ok && s.Placeholder != tt.placeholder {
				t.Errorf("placeholder = %v", s.Placeholder)
			}
		})
	}
}

// TestRasterizeGolden pins the full drawing of a three-level tree.
// Regenerate with GENERATE_GOLDEN=1 after an intended change.
func TestRasterizeGolden(t *testing.T) {
	res := terminalLayout(t, 3)
	golden := testutil.NewGoldenFile(t, "testdata", "complete_3_levels.golden")
	golden.Assert(Rasterize(res, Marks{Selected: 2}).Plain())
}
