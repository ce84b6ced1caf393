// Package search finds tree members matching a free-text query so renderers
// can highlight them without re-running layout.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/vanderheijden86/bintree/pkg/metrics"
	"github.com/vanderheijden86/bintree/pkg/model"
)

// IDSet is an unordered set of node ids.
type IDSet map[int]struct{}

// Has reports membership. A nil set contains nothing.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int { return len(s) }

// Sorted returns the ids in ascending order.
func (s IDSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// FindMatchingNodeIDs returns the ids of every node whose member id or email
// contains the trimmed, case-folded query. A blank query matches nothing.
func FindMatchingNodeIDs(root *model.TreeNode, query string) IDSet {
	out := IDSet{}
	q := normalizeQuery(query)
	if q == "" || root == nil {
		return out
	}
	defer metrics.Timer(metrics.SearchMatch)()

	// Walk stops at a cycle; whatever matched before it is still returned.
	_ = model.Walk(root, func(n *model.TreeNode, _ int) bool {
		for _, field := range NodeFields(n) {
			if strings.Contains(field, q) {
				out[n.ID] = struct{}{}
				break
			}
		}
		return true
	})
	return out
}

// Highlighter memoises the last query for a given tree snapshot so repeated
// renders with an unchanged query skip the traversal.
type Highlighter struct {
	mu     sync.Mutex
	root   *model.TreeNode
	query  string
	result IDSet
}

// Match returns the matches for query against root, reusing the previous
// result when both are unchanged.
func (h *Highlighter) Match(root *model.TreeNode, query string) IDSet {
	q := normalizeQuery(query)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.result != nil && h.root == root && h.query == q {
		return h.result
	}
	h.root, h.query = root, q
	h.result = FindMatchingNodeIDs(root, q)
	return h.result
}

// Reset drops the memoised result, e.g. after the tree was reloaded in place.
func (h *Highlighter) Reset() {
	h.mu.Lock()
	h.result = nil
	h.root = nil
	h.mu.Unlock()
}
