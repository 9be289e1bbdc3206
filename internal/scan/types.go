package scan

import (
	"time"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
)

// Entry is a classified filesystem object shown to the user. Entries are
// rebuilt on every pass and never mutated afterwards.
type Entry struct {
	Path   string       `json:"path" yaml:"path"`
	Size   int64        `json:"size" yaml:"size"`
	IsDir  bool         `json:"is_dir" yaml:"is_dir"`
	Grade  safety.Grade `json:"grade" yaml:"grade"`
	Reason string       `json:"reason" yaml:"reason"`
}

// FolderSummary is the aggregate for one configured root in one pass.
type FolderSummary struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Size  int64  `json:"size" yaml:"size"`
	Items int    `json:"items" yaml:"items"`
}

// Progress is a point-in-time view of a running pass.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Status   string  `json:"status"`
}

// Result is the final output of a completed scan.
type Result struct {
	Folders  []FolderSummary `json:"folders" yaml:"folders"`
	Largest  []Entry         `json:"largest" yaml:"largest"`
	Skipped  int64           `json:"skipped" yaml:"skipped"`
	Started  time.Time       `json:"started" yaml:"started"`
	Finished time.Time       `json:"finished" yaml:"finished"`
}

// TotalSize sums every folder total.
func (r *Result) TotalSize() int64 {
	var n int64
	for _, f := range r.Folders {
		n += f.Size
	}
	return n
}

// Update is one message on a pass's update stream. The last message on a
// stream has Done set; the stream closes right after it.
type Update struct {
	Progress Progress

	// Result is set on the final update of a successful Scan.
	Result *Result

	// Entries is set on the final update of a successful Breakdown.
	Entries []Entry

	Err  error
	Done bool
}
