package datasource

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/bintree/pkg/model"
)

// TreeDiff describes how a tree changed between two loads.
type TreeDiff struct {
	Added       []string // member ids present only in the new tree
	Removed     []string // member ids present only in the old tree
	Moved       []string // members whose parent or slot changed
	StatusFlips []string // members whose active flag changed
	CountA      int
	CountB      int
}

// Empty reports whether the two trees hold the same members in the same slots.
func (d TreeDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Moved) == 0 && len(d.StatusFlips) == 0
}

// Summary returns a one-line description of the change.
func (d TreeDiff) Summary() string {
	if d.Empty() {
		return fmt.Sprintf("no changes (%d members)", d.CountB)
	}
	var parts []string
	if n := len(d.Added); n > 0 {
		parts = append(parts, fmt.Sprintf("+%d", n))
	}
	if n := len(d.Removed); n > 0 {
		parts = append(parts, fmt.Sprintf("-%d", n))
	}
	if n := len(d.Moved); n > 0 {
		parts = append(parts, fmt.Sprintf("%d moved", n))
	}
	if n := len(d.StatusFlips); n > 0 {
		parts = append(parts, fmt.Sprintf("%d status", n))
	}
	return fmt.Sprintf("%s members (%d → %d)", strings.Join(parts, ", "), d.CountA, d.CountB)
}

// DiffTrees compares two trees by node id. Cyclic input is compared up to
// the point where the cycle was detected.
func DiffTrees(a, b *model.TreeNode) TreeDiff {
	rowsA := rowIndex(a)
	rowsB := rowIndex(b)
	diff := TreeDiff{CountA: len(rowsA), CountB: len(rowsB)}

	for id, ra := range rowsA {
		if _, ok := rowsB[id]; !ok {
			diff.Removed = append(diff.Removed, ra.MemberID)
		}
	}
	for id, rb := range rowsB {
		ra, ok := rowsA[id]
		if !ok {
			diff.Added = append(diff.Added, rb.MemberID)
			continue
		}
		// The roots of two loads may differ in parent only because the
		// subtree was cut differently; compare slots below the root.
		if (ra.ParentID != 0 && rb.ParentID != 0) && (ra.ParentID != rb.ParentID || ra.Position != rb.Position) {
			diff.Moved = append(diff.Moved, rb.MemberID)
		}
		if ra.IsActive != rb.IsActive {
			diff.StatusFlips = append(diff.StatusFlips, rb.MemberID)
		}
	}

	for _, s := range [][]string{diff.Added, diff.Removed, diff.Moved, diff.StatusFlips} {
		sort.Strings(s)
	}
	return diff
}

func rowIndex(root *model.TreeNode) map[int]model.Member {
	rows, err := model.Flatten(root)
	if err != nil {
		rows = nil
		_ = model.Walk(root, func(n *model.TreeNode, _ int) bool {
			rows = append(rows, model.Member{ID: n.ID, MemberID: n.MemberID, IsActive: n.IsActive})
			return true
		})
	}
	out := make(map[int]model.Member, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out
}
