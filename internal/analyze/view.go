package analyze

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/macmole/internal/ui"
)

// ─── Color tokens ────────────────────────────────────────────────────────────

var (
	clrDim    = ui.ColorMuted
	clrDir    = ui.ColorCoral
	clrFile   = ui.ColorText
	clrLarge  = ui.ColorWarning
	clrCursor = ui.ColorPrimary
	clrMark   = ui.ColorSecondary
)

// ─── Top-level view ──────────────────────────────────────────────────────────

func (m AnalyzeModel) renderView() string {
	if m.quitting {
		return ""
	}
	w := m.width
	if w < 40 {
		w = 40
	}

	var s strings.Builder
	s.WriteString(m.renderHeader(w))
	s.WriteString("\n")

	switch {
	case m.root == nil:
		s.WriteString(m.renderScanning())
	case m.searching:
		s.WriteString(m.renderSearchInput())
		s.WriteString("\n")
		s.WriteString(m.renderSearchResults(w))
	default:
		s.WriteString(m.renderBody(w))
	}

	s.WriteString("\n")
	s.WriteString(m.renderFooter())
	return s.String()
}

// ─── Header ──────────────────────────────────────────────────────────────────

func (m AnalyzeModel) renderHeader(w int) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(ui.ColorCoral).
		Render("  " + ui.IconDiamond + " Disk Explorer")

	var lines []string
	lines = append(lines, title)

	switch {
	case m.root == nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(ui.ColorTextDim).
			Render("  "+m.spinner.View()+" "+m.status))

	case m.mode == modeLargest:
		lines = append(lines,
			lipgloss.NewStyle().Foreground(ui.ColorTextDim).
				Render(fmt.Sprintf("  Largest items    %d shown", len(m.largest))),
			lipgloss.NewStyle().Foreground(ui.ColorMuted).
				Render("  across "+ui.FormatSize(m.root.Size)+" scanned"))

	default:
		path := m.current.Path
		if path == "" {
			path = m.current.Name
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(ui.ColorTextDim).
			Render(fmt.Sprintf("  %s    %s", ui.Truncate(path, w-20), ui.FormatSize(m.current.Size))))

		var crumbs []string
		for _, bc := range m.breadcrumb {
			crumbs = append(crumbs, bc.Name)
		}
		crumbs = append(crumbs, m.current.Name)
		lines = append(lines, lipgloss.NewStyle().Foreground(ui.ColorMuted).
			Render("  "+strings.Join(crumbs, " "+ui.IconChevron+" ")))
	}

	if m.loading {
		lines = append(lines, lipgloss.NewStyle().Foreground(ui.ColorTextDim).
			Render("  "+m.spinner.View()+" Loading folder…"))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ui.ColorCoral).
		Width(w - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m AnalyzeModel) renderScanning() string {
	return "  " + m.progress.ViewAs(m.fraction) +
		lipgloss.NewStyle().Foreground(ui.ColorTextDim).Render(fmt.Sprintf("  %3.0f%%", m.fraction*100))
}

// ─── Body (file list) ────────────────────────────────────────────────────────

func (m AnalyzeModel) renderBody(w int) string {
	items := m.visibleItems()
	if len(items) == 0 {
		return lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Italic(true).
			Render("  (nothing to show)")
	}

	vh := m.viewportHeight()
	barWidth := 20
	if w > 110 {
		barWidth = 30
	} else if w > 90 {
		barWidth = 25
	}

	parentSize := m.root.Size
	if m.mode == modeTree {
		parentSize = m.current.Size
	}

	var lines []string
	for i := m.offset; i < len(items) && i < m.offset+vh; i++ {
		lines = append(lines, m.renderEntry(i+1, items[i], parentSize, barWidth, i == m.cursor))
	}

	if len(items) > vh {
		pct := float64(m.offset) / float64(len(items)-vh) * 100
		lines = append(lines, lipgloss.NewStyle().
			Foreground(ui.ColorMuted).
			Italic(true).
			Render(fmt.Sprintf("  ── %d/%d items  (%.0f%%) ──", min(m.offset+vh, len(items)), len(items), pct)))
	}

	return strings.Join(lines, "\n")
}

func (m AnalyzeModel) renderEntry(num int, entry *Node, parentSize int64, barWidth int, selected bool) string {
	pct := entry.Percentage(parentSize)
	bar := ui.GradientBar(pct, barWidth)

	icon := ui.IconBullet + " "
	if entry.IsDir {
		icon = ui.IconFolder
	}

	nameColor := clrFile
	if entry.IsDir {
		nameColor = clrDir
	}
	if !entry.IsDir && entry.Size >= largeThreshold {
		nameColor = clrLarge
	}

	maxName := m.width - barWidth - 46
	if maxName < 12 {
		maxName = 12
	}
	name := entry.Name
	if m.mode == modeLargest {
		name = entry.Path
	}
	nameStr := lipgloss.NewStyle().Foreground(nameColor).Bold(entry.IsDir).Render(ui.Truncate(name, maxName))

	numStr := lipgloss.NewStyle().Foreground(clrDim).Render(fmt.Sprintf("%3d.", num))
	pctStr := lipgloss.NewStyle().Foreground(ui.ColorTextDim).Render(fmt.Sprintf("%5.1f%%", pct))

	mark := "  "
	if _, ok := m.marked[entry.Path]; ok {
		mark = lipgloss.NewStyle().Foreground(clrMark).Bold(true).Render(ui.IconMark + " ")
	}

	grade := strings.Repeat(" ", 11)
	if entry.Graded {
		grade = ui.GradeTag(entry.Grade)
	}

	line := fmt.Sprintf("  %s %s  %s  %s%s %s  %s  %s",
		numStr, bar, pctStr, mark, icon, nameStr, ui.FormatSize(entry.Size), grade)

	if selected {
		cursor := lipgloss.NewStyle().Foreground(clrCursor).Bold(true).Render(ui.IconBlock)
		line = " " + cursor + line[2:]
		if m.confirmDelete {
			line += lipgloss.NewStyle().
				Foreground(ui.ColorError).
				Bold(true).
				Render(fmt.Sprintf("  %s Press Enter to delete %d marked", ui.IconWarning, len(m.marked)))
		}
	}
	return line
}

// ─── Search UI ───────────────────────────────────────────────────────────────

func (m AnalyzeModel) renderSearchInput() string {
	prompt := lipgloss.NewStyle().Foreground(ui.ColorCoral).Bold(true).Render("  / ")
	query := lipgloss.NewStyle().Foreground(ui.ColorText).Render(m.searchQuery)
	cursor := lipgloss.NewStyle().Foreground(ui.ColorCoral).Render("▎")
	return prompt + query + cursor
}

func (m AnalyzeModel) renderSearchResults(w int) string {
	hint := lipgloss.NewStyle().Foreground(ui.ColorMuted).Italic(true)
	if m.searchQuery == "" {
		return hint.Render("  Type to search the folders opened so far…")
	}
	if len(m.searchResults) == 0 {
		return hint.Render("  No matches found")
	}

	vh := m.viewportHeight()
	searchOffset := 0
	if m.searchCursor >= vh {
		searchOffset = m.searchCursor - vh + 1
	}

	maxPathLen := max(w-50, 20)
	var lines []string
	for i := searchOffset; i < len(m.searchResults) && i < searchOffset+vh; i++ {
		entry := m.searchResults[i].Entry

		icon := ui.IconBullet + " "
		nameColor := clrFile
		if entry.IsDir {
			icon = ui.IconFolder
			nameColor = clrDir
		}

		parentPath := ""
		if entry.Parent != nil {
			parentPath = ui.Truncate(entry.Parent.Path, maxPathLen)
		}

		name := lipgloss.NewStyle().Foreground(nameColor).Bold(entry.IsDir).Render(entry.Name)
		path := lipgloss.NewStyle().Foreground(ui.ColorMuted).Render(parentPath)
		line := fmt.Sprintf("  %s %s  %s  %s", icon, name, ui.FormatSize(entry.Size), path)

		if i == m.searchCursor {
			cursor := lipgloss.NewStyle().Foreground(clrCursor).Bold(true).Render(ui.IconBlock)
			line = " " + cursor + line[2:]
		}
		lines = append(lines, line)
	}

	lines = append(lines, hint.Render(fmt.Sprintf("  ── %d result(s) ──", len(m.searchResults))))
	return strings.Join(lines, "\n")
}

// ─── Footer ──────────────────────────────────────────────────────────────────

func (m AnalyzeModel) renderFooter() string {
	var parts []string

	if m.err != nil {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(ui.ColorError).
			Render("  "+ui.IconError+" "+m.err.Error()))
	}

	if m.searching {
		hints := []string{"↑↓ navigate", "Enter select", "Esc cancel"}
		parts = append(parts, ui.HintBarStyle().Render("  "+strings.Join(hints, " "+ui.IconPipe+" ")))
		return strings.Join(parts, "\n")
	}

	var tags []string
	if m.largeOnly {
		tags = append(tags, ui.TagWarningStyle().Render(" >100 MiB filter "))
	}
	if n := len(m.marked); n > 0 {
		var bytes int64
		for _, e := range m.marked {
			bytes += e.Size
		}
		tags = append(tags, ui.TagSuccessStyle().Render(fmt.Sprintf(" %d marked, %s ", n, ui.FormatSize(bytes))))
	}
	if len(tags) > 0 {
		parts = append(parts, "  "+strings.Join(tags, " "))
	}

	hints := []string{
		"↑↓ nav",
		"→ drill",
		"← back",
		"t largest",
		"/ search",
		"Space mark",
		"⌫ delete",
		"L large",
		"q quit",
	}
	parts = append(parts, ui.HintBarStyle().Render("  "+strings.Join(hints, " "+ui.IconPipe+" ")))
	return strings.Join(parts, "\n")
}
