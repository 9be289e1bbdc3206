package analyze

import (
	"sort"
	"strings"
)

// SearchResult is one match from SearchTreeBounded.
type SearchResult struct {
	Entry *Node
}

// SearchTreeBounded returns up to limit loaded nodes beneath root whose
// name contains query, case-insensitively, largest first. Folders that
// were never opened are not searched; their children are unknown.
func SearchTreeBounded(root *Node, query string, limit int) []SearchResult {
	if root == nil || query == "" {
		return nil
	}
	q := strings.ToLower(query)

	var out []SearchResult
	var visit func(n *Node)
	visit = func(n *Node) {
		for _, c := range n.Children {
			if strings.Contains(strings.ToLower(c.Name), q) {
				out = append(out, SearchResult{Entry: c})
			}
			if c.Loaded {
				visit(c)
			}
		}
	}
	visit(root)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Entry.Size > out[j].Entry.Size })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
