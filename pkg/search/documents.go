package search

import (
	"strings"

	"github.com/vanderheijden86/bintree/pkg/model"
)

// NodeFields returns the lower-cased fields a query is matched against:
// member id and email. Display-only fields are deliberately not searched.
func NodeFields(n *model.TreeNode) []string {
	if n == nil {
		return nil
	}
	return []string{
		strings.ToLower(n.MemberID),
		strings.ToLower(n.Email),
	}
}

// normalizeQuery trims and lower-cases a free-text query.
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
