package analyze

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

// PrintStatic writes a plain-text report of a scan: the per-root totals as
// a tree, then the largest graded items. Used when stdout is not a terminal.
func PrintStatic(w io.Writer, res *scan.Result) {
	if res == nil {
		fmt.Fprintln(w, "  No data to display.")
		return
	}

	fmt.Fprintf(w, "  %s %s\n", ui.Bold("Disk usage"), ui.Dim(fmt.Sprintf("(%s)", res.Finished.Sub(res.Started).Round(time.Millisecond))))
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))

	for i, f := range res.Folders {
		connector := "+-- "
		if i == len(res.Folders)-1 {
			connector = "\\-- "
		}
		fmt.Fprintf(w, "  %s%-24s %10s  %s %s\n", connector, f.Name, core.FormatSize(f.Size),
			ui.Dim(f.Path), ui.Dim("("+core.Plural(f.Items, "item")+")"))
	}

	if len(res.Largest) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", ui.Bold(fmt.Sprintf("Largest %d items", len(res.Largest))))
		printEntries(w, res.Largest)
	}

	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	fmt.Fprintf(w, "  Total: %s", ui.Accent(core.FormatSize(res.TotalSize())))
	if res.Skipped > 0 {
		fmt.Fprintf(w, "  %s", ui.Warning(fmt.Sprintf("(%d unreadable entries skipped)", res.Skipped)))
	}
	fmt.Fprintln(w)
}

// PrintBreakdown writes the graded children of one folder.
func PrintBreakdown(w io.Writer, folder string, entries []scan.Entry) {
	var total int64
	for _, e := range entries {
		total += e.Size
	}
	fmt.Fprintf(w, "  %s  %s\n", ui.Bold(folder), core.FormatSize(total))
	fmt.Fprintln(w, "  "+strings.Repeat("-", 58))
	if len(entries) == 0 {
		fmt.Fprintln(w, "  (empty directory)")
		return
	}
	printEntries(w, entries)
}

func printEntries(w io.Writer, entries []scan.Entry) {
	for i, e := range entries {
		connector := "+-- "
		if i == len(entries)-1 {
			connector = "\\-- "
		}
		name := e.Path
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(w, "  %s%10s  %s %s\n", connector, core.FormatSize(e.Size), ui.GradeLabel(e.Grade), name)
		if e.Reason != "" {
			indent := "|   "
			if i == len(entries)-1 {
				indent = "    "
			}
			fmt.Fprintf(w, "  %s%s\n", indent, ui.Dim(e.Reason))
		}
	}
}
