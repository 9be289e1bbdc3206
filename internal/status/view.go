package status

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

// ─── Top-level renderer ─────────────────────────────────────────────────────

func (m StatusModel) renderView() string {
	w := max(m.Width, 50)

	var s strings.Builder
	s.WriteString(m.renderTabs(w))
	s.WriteString("\n")

	if m.Snapshot == nil {
		s.WriteString(lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Italic(true).
			Render("  Reading volumes…"))
		s.WriteString("\n")
		s.WriteString(m.renderStatusFooter())
		return s.String()
	}

	switch m.Tab {
	case TabVolumes:
		s.WriteString(m.renderVolumes(w))
	case TabRoots:
		s.WriteString(m.renderRoots(w))
	}

	s.WriteString("\n")
	s.WriteString(m.renderStatusFooter())
	return s.String()
}

// ─── Tab bar ─────────────────────────────────────────────────────────────────

func (m StatusModel) renderTabs(w int) string {
	active := lipgloss.NewStyle().
		Bold(true).
		Foreground(ui.ColorPrimary).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(ui.ColorPrimary).
		Padding(0, 2)

	inactive := lipgloss.NewStyle().
		Foreground(ui.ColorMuted).
		Padding(0, 2)

	var tabs []string
	for i, name := range TabNames {
		label := fmt.Sprintf("%d·%s", i+1, name)
		if Tab(i) == m.Tab {
			tabs = append(tabs, active.Render(label))
		} else {
			tabs = append(tabs, inactive.Render(label))
		}
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)
	divider := lipgloss.NewStyle().
		Foreground(ui.ColorMuted).
		Render(strings.Repeat("─", w))

	return bar + "\n" + divider
}

func barWidth(w int) int {
	if w > 110 {
		return 48
	}
	return 36
}

// ─── Volumes tab ─────────────────────────────────────────────────────────────

func (m StatusModel) renderVolumes(w int) string {
	bw := barWidth(w)
	lines := []string{""}

	if len(m.Snapshot.Volumes) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(ui.ColorMuted).Italic(true).
			Render("  No physical volumes found"))
	}
	for _, v := range m.Snapshot.Volumes {
		lines = append(lines,
			fmt.Sprintf("  %-16s %s  %5.1f%%  %s / %s  (%s free)",
				ui.Truncate(v.Path, 16), ui.UsageBar(v.UsedPercent, bw), v.UsedPercent,
				core.FormatSize(int64(v.Used)),
				core.FormatSize(int64(v.Total)),
				core.FormatSize(int64(v.Free))))
	}

	if len(m.UsedHistory) > 1 {
		lines = append(lines, "",
			lipgloss.NewStyle().Foreground(ui.ColorTextDim).Render("  "+m.Snapshot.Volumes[0].Path+" used  ")+
				lipgloss.NewStyle().Foreground(ui.ColorSecondary).Render(sparklineF64(m.UsedHistory, min(w-30, 60))))
	}
	return strings.Join(lines, "\n")
}

// ─── Roots tab ───────────────────────────────────────────────────────────────

func (m StatusModel) renderRoots(w int) string {
	bw := barWidth(w) - 12
	lines := []string{""}

	for _, r := range m.Snapshot.Roots {
		name := lipgloss.NewStyle().Foreground(ui.ColorCoral).Bold(true).Render(fmt.Sprintf("%-12s", r.Root.Name))
		if r.Err != "" {
			lines = append(lines, fmt.Sprintf("  %s %s", name,
				lipgloss.NewStyle().Foreground(ui.ColorMuted).Render(ui.IconError+" unavailable")))
			continue
		}
		c := r.Capacity
		lines = append(lines, fmt.Sprintf("  %s %s  %5.1f%%  %s free on %s",
			name, ui.UsageBar(c.UsedPercent, bw), c.UsedPercent,
			core.FormatSize(int64(c.Free)), c.Path))
	}
	return strings.Join(lines, "\n")
}

// ─── Footer ──────────────────────────────────────────────────────────────────

func (m StatusModel) renderStatusFooter() string {
	hints := "  Tab switch  " + ui.IconPipe + "  1-2 jump  " + ui.IconPipe + "  r refresh  " + ui.IconPipe + "  q quit"
	footer := lipgloss.NewStyle().
		Foreground(ui.ColorMuted).
		Italic(true).
		Render(hints)

	if m.Err != nil {
		errStr := lipgloss.NewStyle().
			Foreground(ui.ColorError).
			Render("  " + ui.IconError + " " + m.Err.Error())
		return errStr + "\n" + footer
	}
	return footer
}

// ─── Drawing primitives ─────────────────────────────────────────────────────

// sparklineF64 renders a mini chart from float64 data using block chars.
func sparklineF64(data []float64, width int) string {
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	if len(data) > width {
		data = data[len(data)-width:]
	}

	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for _, v := range data {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(blocks)-1))
		}
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

// ─── Plain output ────────────────────────────────────────────────────────────

// PrintStatic writes the snapshot as plain text for pipes and dumb
// terminals.
func PrintStatic(w io.Writer, snap *Snapshot) {
	fmt.Fprintln(w, ui.Bold("Volumes"))
	for _, v := range snap.Volumes {
		fmt.Fprintf(w, "  %-24s %5.1f%%  %10s used  %10s free  %s\n",
			v.Path, v.UsedPercent, core.FormatSize(int64(v.Used)), core.FormatSize(int64(v.Free)), ui.Dim(v.FSType))
	}
	if len(snap.Roots) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.Bold("Scan roots"))
	for _, r := range snap.Roots {
		if r.Err != "" {
			fmt.Fprintf(w, "  %-12s %s\n", r.Root.Name, ui.Danger("unavailable"))
			continue
		}
		fmt.Fprintf(w, "  %-12s %10s free on %s\n", r.Root.Name, core.FormatSize(int64(r.Capacity.Free)), r.Capacity.Path)
	}
}
