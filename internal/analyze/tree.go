package analyze

import (
	"path/filepath"
	"sort"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

// Node is one row of the explorer. Folder nodes load their children on
// first visit through the scan engine's breakdown.
type Node struct {
	Path     string
	Name     string
	Size     int64
	IsDir    bool
	Grade    safety.Grade
	Reason   string
	Graded   bool
	Loaded   bool
	Children []*Node
	Parent   *Node
}

// Percentage returns the node's size as a percentage of parentSize.
func (n *Node) Percentage(parentSize int64) float64 {
	if parentSize == 0 {
		return 0
	}
	return float64(n.Size) / float64(parentSize) * 100
}

// Markable reports whether the node may be queued for deletion.
func (n *Node) Markable() bool {
	return n.Graded && n.Grade != safety.LeaveAlone
}

// Entry converts the node back into a scan entry.
func (n *Node) Entry() scan.Entry {
	return scan.Entry{Path: n.Path, Size: n.Size, IsDir: n.IsDir, Grade: n.Grade, Reason: n.Reason}
}

func nodeFromEntry(e scan.Entry, parent *Node) *Node {
	return &Node{
		Path:   e.Path,
		Name:   filepath.Base(e.Path),
		Size:   e.Size,
		IsDir:  e.IsDir,
		Grade:  e.Grade,
		Reason: e.Reason,
		Graded: true,
		Parent: parent,
	}
}

// buildTree turns a scan result into a virtual root whose children are the
// scanned roots, plus the flat list of largest items.
func buildTree(res *scan.Result) (*Node, []*Node) {
	root := &Node{Name: "Scan roots", IsDir: true, Loaded: true, Size: res.TotalSize()}
	for _, f := range res.Folders {
		root.Children = append(root.Children, &Node{
			Path:   f.Path,
			Name:   f.Name,
			Size:   f.Size,
			IsDir:  true,
			Parent: root,
		})
	}
	sortNodes(root.Children)

	largest := make([]*Node, len(res.Largest))
	for i, e := range res.Largest {
		largest[i] = nodeFromEntry(e, nil)
	}
	return root, largest
}

// attach installs a breakdown as n's children.
func (n *Node) attach(entries []scan.Entry) {
	n.Children = n.Children[:0]
	var total int64
	for _, e := range entries {
		n.Children = append(n.Children, nodeFromEntry(e, n))
		total += e.Size
	}
	n.Loaded = true
	if n.Size == 0 {
		n.Size = total
	}
}

// remove drops the child with path and subtracts its size up the chain.
func (n *Node) remove(path string) bool {
	for i, c := range n.Children {
		if c.Path != path {
			continue
		}
		n.Children = append(n.Children[:i], n.Children[i+1:]...)
		for p := n; p != nil; p = p.Parent {
			p.Size -= c.Size
		}
		return true
	}
	return false
}

// sortNodes orders by size descending, then path.
func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Size != nodes[j].Size {
			return nodes[i].Size > nodes[j].Size
		}
		return nodes[i].Path < nodes[j].Path
	})
}
