// Package model defines the binary referral tree consumed by the layout,
// search and interaction packages.
package model

import (
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"
)

// Position is a member's slot relative to its sponsor.
type Position string

const (
	PositionLeft  Position = "LEFT"
	PositionRight Position = "RIGHT"
)

// IsValid returns true for LEFT and RIGHT.
func (p Position) IsValid() bool {
	return p == PositionLeft || p == PositionRight
}

// ParsePosition accepts any casing of "left"/"right" (and the L/R shorthands).
func ParsePosition(s string) (Position, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT", "L":
		return PositionLeft, nil
	case "RIGHT", "R":
		return PositionRight, nil
	default:
		return "", fmt.Errorf("invalid position %q", s)
	}
}

// TreeNode is one member of the binary tree. A node owns its two children.
type TreeNode struct {
	ID         int       `json:"id"` // unique, never 0
	MemberID   string    `json:"memberId"`
	Email      string    `json:"email"`
	Position   Position  `json:"position,omitempty"`
	IsActive   bool      `json:"isActive"`
	LeftChild  *TreeNode `json:"leftChild,omitempty"`
	RightChild *TreeNode `json:"rightChild,omitempty"`

	// Display-only fields for the detail popover.
	Name            string  `json:"name,omitempty"`
	JoinDate        string  `json:"joinDate,omitempty"`
	Rank            string  `json:"rank,omitempty"`
	LeftBV          float64 `json:"bvLeft,omitempty"`
	RightBV         float64 `json:"bvRight,omitempty"`
	SponsorMemberID string  `json:"sponsorMemberId,omitempty"`
}

// IsLeaf reports whether the node has no children.
func (n *TreeNode) IsLeaf() bool {
	return n != nil && n.LeftChild == nil && n.RightChild == nil
}

// Child returns the child in the given slot.
func (n *TreeNode) Child(side Position) *TreeNode {
	if n == nil {
		return nil
	}
	switch side {
	case PositionLeft:
		return n.LeftChild
	case PositionRight:
		return n.RightChild
	}
	return nil
}

// Label returns the best human-readable name for the node.
func (n *TreeNode) Label() string {
	if n == nil {
		return ""
	}
	if n.MemberID != "" {
		return n.MemberID
	}
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("#%d", n.ID)
}

// ErrCycle is returned when a tree revisits a node.
var ErrCycle = errors.New("tree contains a cycle")

// ErrReservedID is returned for a member whose id is 0. Id 0 means "no
// member" throughout bt (no parent, default root, nothing selected), so
// providers reject it on load.
var ErrReservedID = errors.New("member id 0 is reserved")

// CheckIDs walks the tree and fails with ErrReservedID on the first node
// whose id is 0.
func CheckIDs(root *TreeNode) error {
	var bad *TreeNode
	if err := Walk(root, func(n *TreeNode, _ int) bool {
		if n.ID == 0 {
			bad = n
			return false
		}
		return true
	}); err != nil {
		return err
	}
	if bad != nil {
		return fmt.Errorf("member %s: %w", bad.Label(), ErrReservedID)
	}
	return nil
}

// Walk visits every node in pre-order (node, left subtree, right subtree)
// without recursion. Returning false from fn stops the walk. A node pointer
// seen twice yields ErrCycle.
func Walk(root *TreeNode, fn func(n *TreeNode, depth int) bool) error {
	if root == nil {
		return nil
	}
	type frame struct {
		node  *TreeNode
		depth int
	}
	seen := make(map[*TreeNode]struct{})
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, dup := seen[f.node]; dup {
			return fmt.Errorf("node %d: %w", f.node.ID, ErrCycle)
		}
		seen[f.node] = struct{}{}
		if !fn(f.node, f.depth) {
			return nil
		}
		if f.node.RightChild != nil {
			stack = append(stack, frame{f.node.RightChild, f.depth + 1})
		}
		if f.node.LeftChild != nil {
			stack = append(stack, frame{f.node.LeftChild, f.depth + 1})
		}
	}
	return nil
}

// Find returns the node with the given id, or nil.
func Find(root *TreeNode, id int) *TreeNode {
	var found *TreeNode
	_ = Walk(root, func(n *TreeNode, _ int) bool {
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Index maps every node id to its node. Duplicate ids keep the first visited.
func Index(root *TreeNode) map[int]*TreeNode {
	idx := make(map[int]*TreeNode)
	_ = Walk(root, func(n *TreeNode, _ int) bool {
		if _, ok := idx[n.ID]; !ok {
			idx[n.ID] = n
		}
		return true
	})
	return idx
}

// Prune returns a copy of the subtree truncated to depth levels
// (depth <= 0 keeps everything). The input is not modified.
func Prune(root *TreeNode, depth int) *TreeNode {
	if root == nil {
		return nil
	}
	type job struct {
		src   *TreeNode
		dst   **TreeNode
		level int
	}
	var out *TreeNode
	queue := []job{{root, &out, 1}}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		cp := *j.src
		cp.LeftChild, cp.RightChild = nil, nil
		*j.dst = &cp
		if depth > 0 && j.level >= depth {
			continue
		}
		if j.src.LeftChild != nil {
			queue = append(queue, job{j.src.LeftChild, &cp.LeftChild, j.level + 1})
		}
		if j.src.RightChild != nil {
			queue = append(queue, job{j.src.RightChild, &cp.RightChild, j.level + 1})
		}
	}
	return out
}

// ParseTree decodes a nested JSON tree. A literal null yields (nil, nil).
// Both a bare node and a {"tree": node} envelope are accepted. Every node
// needs a non-zero id.
func ParseTree(r io.Reader) (*TreeNode, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var envelope struct {
		Tree *TreeNode `json:"tree"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Tree != nil {
		if err := CheckIDs(envelope.Tree); err != nil {
			return nil, err
		}
		return envelope.Tree, nil
	}

	var root TreeNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing tree: %w", err)
	}
	if err := CheckIDs(&root); err != nil {
		return nil, err
	}
	return &root, nil
}

// EncodeTree writes the tree as indented JSON.
func EncodeTree(w io.Writer, root *TreeNode) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(root)
}
