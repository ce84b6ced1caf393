package model

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Member is the flat row form of a TreeNode, as stored in the members table.
// ParentID 0 means the member has no parent in the store.
type Member struct {
	ID              int
	ParentID        int
	Position        Position
	MemberID        string
	Email           string
	IsActive        bool
	Name            string
	JoinDate        string
	Rank            string
	LeftBV          float64
	RightBV         float64
	SponsorMemberID string
}

// Node converts the row into a childless TreeNode.
func (m Member) Node() *TreeNode {
	return &TreeNode{
		ID:              m.ID,
		MemberID:        m.MemberID,
		Email:           m.Email,
		Position:        m.Position,
		IsActive:        m.IsActive,
		Name:            m.Name,
		JoinDate:        m.JoinDate,
		Rank:            m.Rank,
		LeftBV:          m.LeftBV,
		RightBV:         m.RightBV,
		SponsorMemberID: m.SponsorMemberID,
	}
}

var (
	// ErrNotFound is returned when the requested root member does not exist.
	ErrNotFound = errors.New("member not found")
	// ErrSlotTaken is returned when two members claim the same parent slot.
	ErrSlotTaken = errors.New("parent slot claimed twice")
)

// BuildTree assembles the subtree rooted at rootID from flat rows, limited to
// depth levels (depth <= 0 is unlimited). rootID 0 selects the lowest-id
// member without a parent. Rows that cannot be reached from the root are
// ignored, but the whole row set must be acyclic.
func BuildTree(rows []Member, rootID int, depth int) (*TreeNode, error) {
	if len(rows) == 0 {
		if rootID == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("root %d: %w", rootID, ErrNotFound)
	}

	byID := make(map[int]Member, len(rows))
	g := simple.NewDirectedGraph()
	for _, r := range rows {
		if r.ID == 0 {
			return nil, fmt.Errorf("member %q: %w", r.MemberID, ErrReservedID)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate member id %d", r.ID)
		}
		byID[r.ID] = r
		g.AddNode(simple.Node(r.ID))
	}

	type slot struct {
		parent int
		side   Position
	}
	taken := make(map[slot]int, len(rows))
	for _, r := range rows {
		if r.ParentID == 0 {
			continue
		}
		if r.ParentID == r.ID {
			return nil, fmt.Errorf("member %d is its own parent: %w", r.ID, ErrCycle)
		}
		if _, ok := byID[r.ParentID]; !ok {
			// Parent lives outside this row set; treat the row as a root.
			continue
		}
		if !r.Position.IsValid() {
			return nil, fmt.Errorf("member %d: invalid position %q", r.ID, r.Position)
		}
		key := slot{r.ParentID, r.Position}
		if other, ok := taken[key]; ok {
			return nil, fmt.Errorf("member %d and %d under %d %s: %w", other, r.ID, r.ParentID, r.Position, ErrSlotTaken)
		}
		taken[key] = r.ID
		g.SetEdge(g.NewEdge(simple.Node(r.ParentID), simple.Node(r.ID)))
	}

	if _, err := topo.Sort(g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCycle, err)
	}

	if rootID == 0 {
		rootID = lowestRootID(rows, byID)
	}
	rootRow, ok := byID[rootID]
	if !ok {
		return nil, fmt.Errorf("root %d: %w", rootID, ErrNotFound)
	}

	root := rootRow.Node()
	type job struct {
		node  *TreeNode
		level int
	}
	queue := []job{{root, 1}}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		if depth > 0 && j.level >= depth {
			continue
		}
		if id, ok := taken[slot{j.node.ID, PositionLeft}]; ok {
			j.node.LeftChild = byID[id].Node()
			queue = append(queue, job{j.node.LeftChild, j.level + 1})
		}
		if id, ok := taken[slot{j.node.ID, PositionRight}]; ok {
			j.node.RightChild = byID[id].Node()
			queue = append(queue, job{j.node.RightChild, j.level + 1})
		}
	}
	return root, nil
}

func lowestRootID(rows []Member, byID map[int]Member) int {
	var roots []int
	for _, r := range rows {
		if _, hasParent := byID[r.ParentID]; r.ParentID == 0 || !hasParent {
			roots = append(roots, r.ID)
		}
	}
	if len(roots) == 0 {
		return rows[0].ID
	}
	sort.Ints(roots)
	return roots[0]
}

// Flatten converts a nested tree back to rows, in pre-order. Child positions
// come from the slot a child occupies, not from its Position field.
func Flatten(root *TreeNode) ([]Member, error) {
	type link struct {
		parent int
		side   Position
	}
	links := make(map[*TreeNode]link)
	var rows []Member
	err := Walk(root, func(n *TreeNode, _ int) bool {
		l := links[n]
		rows = append(rows, Member{
			ID:              n.ID,
			ParentID:        l.parent,
			Position:        l.side,
			MemberID:        n.MemberID,
			Email:           n.Email,
			IsActive:        n.IsActive,
			Name:            n.Name,
			JoinDate:        n.JoinDate,
			Rank:            n.Rank,
			LeftBV:          n.LeftBV,
			RightBV:         n.RightBV,
			SponsorMemberID: n.SponsorMemberID,
		})
		if n.LeftChild != nil {
			links[n.LeftChild] = link{n.ID, PositionLeft}
		}
		if n.RightChild != nil {
			links[n.RightChild] = link{n.ID, PositionRight}
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
