package model

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TreeStats summarises a tree for headers and status bars.
type TreeStats struct {
	Nodes          int     `json:"nodes"`
	Active         int     `json:"active"`
	LeftCount      int     `json:"left_count"`  // members in the root's left leg
	RightCount     int     `json:"right_count"` // members in the root's right leg
	Depth          int     `json:"depth"`
	LeftBV         float64 `json:"bv_left"`
	RightBV        float64 `json:"bv_right"`
	MeanLeafDepth  float64 `json:"mean_leaf_depth"`
	LeafDepthStdev float64 `json:"leaf_depth_stdev"`
	OpenSlots      int     `json:"open_slots"`
}

// Stats computes TreeStats. A cyclic tree yields the partial result and
// ErrCycle.
func Stats(root *TreeNode) (TreeStats, error) {
	var s TreeStats
	if root == nil {
		return s, nil
	}
	s.LeftBV = root.LeftBV
	s.RightBV = root.RightBV

	var leafDepths []float64
	err := Walk(root, func(n *TreeNode, depth int) bool {
		s.Nodes++
		if n.IsActive {
			s.Active++
		}
		if depth+1 > s.Depth {
			s.Depth = depth + 1
		}
		if n.LeftChild == nil {
			s.OpenSlots++
		}
		if n.RightChild == nil {
			s.OpenSlots++
		}
		if n.IsLeaf() {
			leafDepths = append(leafDepths, float64(depth))
		}
		return true
	})

	s.LeftCount = countNodes(root.LeftChild)
	s.RightCount = countNodes(root.RightChild)

	if len(leafDepths) > 0 {
		mean, std := stat.MeanStdDev(leafDepths, nil)
		s.MeanLeafDepth = mean
		if !math.IsNaN(std) {
			s.LeafDepthStdev = std
		}
	}
	return s, err
}

// Balance returns left/right leg size ratio in [0,1], where 1 is perfectly
// balanced. An empty pair of legs counts as balanced.
func (s TreeStats) Balance() float64 {
	hi := math.Max(float64(s.LeftCount), float64(s.RightCount))
	if hi == 0 {
		return 1
	}
	return math.Min(float64(s.LeftCount), float64(s.RightCount)) / hi
}

func countNodes(n *TreeNode) int {
	count := 0
	_ = Walk(n, func(*TreeNode, int) bool {
		count++
		return true
	})
	return count
}
