package testutil

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/bintree/pkg/layout"
	"github.com/vanderheijden86/bintree/pkg/model"
)

const geomEpsilon = 1e-6

// AssertNodeCount verifies the number of real nodes reachable from root.
func AssertNodeCount(t *testing.T, root *model.TreeNode, expected int) {
	t.Helper()
	got := 0
	if err := model.Walk(root, func(*model.TreeNode, int) bool { got++; return true }); err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	if got != expected {
		t.Errorf("expected %d nodes, got %d", expected, got)
	}
}

// AssertNoOverlap verifies that no two boxes on the same level intersect and
// that sibling bands do not overlap.
func AssertNoOverlap(t *testing.T, res *layout.Result) {
	t.Helper()
	byDepth := make(map[int][]layout.Slot)
	for _, s := range res.Slots {
		byDepth[s.Depth] = append(byDepth[s.Depth], s)
	}
	for depth, slots := range byDepth {
		for i := 0; i < len(slots); i++ {
			for j := i + 1; j < len(slots); j++ {
				a, b := slots[i].Box, slots[j].Box
				if a.X < b.X+b.W-geomEpsilon && b.X < a.X+a.W-geomEpsilon {
					t.Errorf("depth %d: boxes overlap: %+v and %+v", depth, a, b)
				}
			}
		}
	}
	for _, msg := range SiblingBandOverlaps(res) {
		t.Error(msg)
	}
}

// SiblingBandOverlaps checks every real parent's two child slots, real or
// placeholder: the left child's band must end at or before the right child's
// band starts. It returns one message per violation, so rapid properties can
// use it as well as AssertNoOverlap.
func SiblingBandOverlaps(res *layout.Result) []string {
	type pair struct{ left, right *layout.Slot }
	children := make(map[int]*pair)
	var order []int
	for i := range res.Slots {
		s := &res.Slots[i]
		if s.Depth == 0 {
			continue
		}
		p, ok := children[s.ParentID]
		if !ok {
			p = &pair{}
			children[s.ParentID] = p
			order = append(order, s.ParentID)
		}
		switch s.Side {
		case model.PositionLeft:
			p.left = s
		case model.PositionRight:
			p.right = s
		}
	}

	var out []string
	for _, id := range order {
		p := children[id]
		if p.left == nil || p.right == nil {
			out = append(out, fmt.Sprintf("parent %d: missing child slot (left=%v right=%v)", id, p.left != nil, p.right != nil))
			continue
		}
		_, leftHi := p.left.Band()
		rightLo, _ := p.right.Band()
		if leftHi > rightLo+geomEpsilon {
			out = append(out, fmt.Sprintf("parent %d: left band ends at %g after right band starts at %g", id, leftHi, rightLo))
		}
	}
	return out
}

// AssertConnectorsAnchored verifies that every connector starts at its
// parent's bottom-centre and ends at the child's top-centre.
func AssertConnectorsAnchored(t *testing.T, res *layout.Result) {
	t.Helper()
	for _, c := range res.Connectors {
		parent, ok := res.Slot(c.FromID)
		if !ok {
			t.Errorf("connector from unknown node %d", c.FromID)
			continue
		}
		if !samePoint(c.Start, parent.Box.BottomCenter()) {
			t.Errorf("connector %d->%d starts at %+v, want %+v", c.FromID, c.ToID, c.Start, parent.Box.BottomCenter())
		}
		found := false
		for _, s := range res.Slots {
			if samePoint(c.End, s.Box.TopCenter()) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("connector %d->%d ends at %+v, which is no slot's top centre", c.FromID, c.ToID, c.End)
		}
	}
}

// AssertWithinCanvas verifies every box lies inside the canvas bounds.
func AssertWithinCanvas(t *testing.T, res *layout.Result) {
	t.Helper()
	for _, s := range res.Slots {
		b := s.Box
		if b.X < -geomEpsilon || b.Y < -geomEpsilon ||
			b.X+b.W > res.Width+geomEpsilon || b.Y+b.H > res.Height+geomEpsilon {
			t.Errorf("box %+v outside canvas %gx%g", b, res.Width, res.Height)
		}
	}
}

func samePoint(a, b layout.Point) bool {
	return math.Abs(a.X-b.X) < geomEpsilon && math.Abs(a.Y-b.Y) < geomEpsilon
}

// AssertJSONEqual compares two values after JSON encoding.
func AssertJSONEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if !bytes.Equal(expectedJSON, actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN is set, golden files are rewritten instead of compared.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Skipf("golden file %s missing; run with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}
	expectedLines := strings.Split(string(expected), "\n")
	actualLines := strings.Split(actual, "\n")
	for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}
		if expLine != actLine {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
			return
		}
	}
}

// WriteTreeFile writes root as JSON to name inside dir and returns the path.
func WriteTreeFile(t *testing.T, dir, name string, root *model.TreeNode) string {
	t.Helper()
	var buf bytes.Buffer
	if err := model.EncodeTree(&buf, root); err != nil {
		t.Fatalf("failed to encode tree: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write tree file: %v", err)
	}
	return path
}
