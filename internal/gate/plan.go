package gate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

// topContributors is how many folders and extensions a summary lists.
const topContributors = 3

// Contribution is an aggregated byte total for one folder or extension.
type Contribution struct {
	Key   string `json:"key"`
	Bytes int64  `json:"bytes"`
}

// Plan is the selectable set produced by Prepare.
type Plan struct {
	Items         []scan.Entry    `json:"items"`
	Selected      map[string]bool `json:"-"`
	TotalBytes    int64           `json:"total_bytes"`
	Count         int             `json:"count"`
	TopFolders    []Contribution  `json:"top_folders"`
	TopExtensions []Contribution  `json:"top_extensions"`
	Summary       string          `json:"summary"`
}

// SelectedPaths returns the selected paths in item order.
func (p *Plan) SelectedPaths() []string {
	var out []string
	for _, e := range p.Items {
		if p.Selected[e.Path] {
			out = append(out, e.Path)
		}
	}
	return out
}

// Toggle flips the selection of path and reports the new state.
func (p *Plan) Toggle(path string) bool {
	p.Selected[path] = !p.Selected[path]
	return p.Selected[path]
}

func (p *Plan) forget(paths []string) {
	if len(paths) == 0 {
		return
	}
	gone := lo.Keyify(paths)
	p.Items = lo.Reject(p.Items, func(e scan.Entry, _ int) bool {
		_, ok := gone[e.Path]
		return ok
	})
	for _, path := range paths {
		delete(p.Selected, path)
	}
}

// Prepare keeps only the Safe candidates, selects all of them and builds a
// summary. The plan replaces any earlier one.
func (g *Gate) Prepare(candidates []scan.Entry) (*Plan, error) {
	if len(candidates) == 0 {
		return nil, ErrNoScanResults
	}

	items := lo.Filter(candidates, func(e scan.Entry, _ int) bool { return e.Grade == safety.Safe })
	items = lo.UniqBy(items, func(e scan.Entry) string { return e.Path })

	plan := &Plan{
		Items:      items,
		Selected:   make(map[string]bool, len(items)),
		TotalBytes: lo.SumBy(items, func(e scan.Entry) int64 { return e.Size }),
		Count:      len(items),
	}
	for _, e := range items {
		plan.Selected[e.Path] = true
	}
	plan.TopFolders = topBy(items, func(e scan.Entry) string { return filepath.Dir(e.Path) })
	plan.TopExtensions = topBy(items, extensionKey)
	plan.Summary = summarize(plan)

	g.mu.Lock()
	g.plan = plan
	g.mu.Unlock()
	return plan, nil
}

// Current returns the plan ConfirmAndDelete would act on.
func (g *Gate) Current() (*Plan, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.plan, g.plan != nil
}

func extensionKey(e scan.Entry) string {
	if e.IsDir {
		return "(folder)"
	}
	if ext := strings.ToLower(filepath.Ext(e.Path)); ext != "" {
		return ext
	}
	return "(none)"
}

// topBy aggregates bytes per key and returns the largest few. Keys with
// equal totals keep the order in which they first appeared.
func topBy(items []scan.Entry, key func(scan.Entry) string) []Contribution {
	var order []Contribution
	index := make(map[string]int)
	for _, e := range items {
		k := key(e)
		i, ok := index[k]
		if !ok {
			i = len(order)
			index[k] = i
			order = append(order, Contribution{Key: k})
		}
		order[i].Bytes += e.Size
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].Bytes > order[j].Bytes })
	if len(order) > topContributors {
		order = order[:topContributors]
	}
	return order
}

func summarize(p *Plan) string {
	if p.Count == 0 {
		return "Nothing in the results is safe to delete."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s across %d items.", humanize.IBytes(uint64(p.TotalBytes)), p.Count)
	if len(p.TopFolders) > 0 {
		b.WriteString(" Top folders: ")
		b.WriteString(joinContributions(p.TopFolders))
		b.WriteString(".")
	}
	if len(p.TopExtensions) > 0 {
		b.WriteString(" Top types: ")
		b.WriteString(joinContributions(p.TopExtensions))
		b.WriteString(".")
	}
	return b.String()
}

func joinContributions(cs []Contribution) string {
	return strings.Join(lo.Map(cs, func(c Contribution, _ int) string {
		return fmt.Sprintf("%s (%s)", c.Key, humanize.IBytes(uint64(c.Bytes)))
	}), ", ")
}
