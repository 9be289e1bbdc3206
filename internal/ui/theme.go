// Package ui holds the shared look of the terminal interface: colors,
// icons and small rendering helpers used by every view.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshaymaurya-felt/macmole/internal/core"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
)

// ─── Palette ─────────────────────────────────────────────────────────────────

var (
	ColorPrimary   = lipgloss.Color("#7D56F4")
	ColorSecondary = lipgloss.Color("#5FAFFF")
	ColorCoral     = lipgloss.Color("#FF7F6E")
	ColorText      = lipgloss.Color("#E4E4E4")
	ColorTextDim   = lipgloss.Color("#A8A8A8")
	ColorMuted     = lipgloss.Color("#6C6C6C")
	ColorSuccess   = lipgloss.Color("#5FD787")
	ColorWarning   = lipgloss.Color("#FFAF5F")
	ColorError     = lipgloss.Color("#FF5F5F")
)

// ─── Icons ───────────────────────────────────────────────────────────────────

const (
	IconDiamond = "◆"
	IconChevron = "›"
	IconBullet  = "•"
	IconFolder  = "▸ "
	IconBlock   = "▌"
	IconPipe    = "│"
	IconWarning = "⚠"
	IconError   = "✗"
	IconCheck   = "✓"
	IconMark    = "●"
)

// FormatSize renders a byte count for display.
func FormatSize(n int64) string {
	return core.FormatSize(n)
}

// ─── Styles ──────────────────────────────────────────────────────────────────

func tag(fg, bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(fg).Background(bg).Bold(true)
}

// TagWarningStyle is a small inverted badge in the warning color.
func TagWarningStyle() lipgloss.Style {
	return tag(lipgloss.Color("#1C1C1C"), ColorWarning)
}

// TagSuccessStyle is a small inverted badge in the success color.
func TagSuccessStyle() lipgloss.Style {
	return tag(lipgloss.Color("#1C1C1C"), ColorSuccess)
}

// TagErrorStyle is a small inverted badge in the error color.
func TagErrorStyle() lipgloss.Style {
	return tag(lipgloss.Color("#1C1C1C"), ColorError)
}

// HintBarStyle renders the keybinding footer.
func HintBarStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(ColorMuted)
}

// GradeColor is the accent used for a safety grade.
func GradeColor(g safety.Grade) lipgloss.Color {
	switch g {
	case safety.Safe:
		return ColorSuccess
	case safety.Review:
		return ColorWarning
	default:
		return ColorError
	}
}

// GradeTag renders a fixed-width badge for g.
func GradeTag(g safety.Grade) string {
	var st lipgloss.Style
	switch g {
	case safety.Safe:
		st = TagSuccessStyle()
	case safety.Review:
		st = TagWarningStyle()
	default:
		st = TagErrorStyle()
	}
	return st.Render(" " + padRight(strings.ToUpper(g.String()), 11) + " ")
}

func padRight(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len(s))
}

// ─── Bars ────────────────────────────────────────────────────────────────────

var gradient = []lipgloss.Color{"#5FD787", "#87D75F", "#D7D75F", "#FFAF5F", "#FF875F", "#FF5F5F"}

// GradientBar renders a ████░░░░ bar whose fill color shifts from green to
// red as pct grows.
func GradientBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct = min(max(pct, 0), 100)
	filled := int(pct / 100 * float64(width))
	if pct > 0 && filled == 0 {
		filled = 1
	}

	idx := int(pct / 100 * float64(len(gradient)-1))
	fill := lipgloss.NewStyle().Foreground(gradient[idx]).Render(strings.Repeat("█", filled))
	empty := lipgloss.NewStyle().Foreground(ColorMuted).Render(strings.Repeat("░", width-filled))
	return fill + empty
}

// UsageBar renders a capacity bar colored by severity thresholds.
func UsageBar(pct float64, width int) string {
	pct = min(max(pct, 0), 100)
	filled := min(int(pct/100*float64(width)), width)

	c := ColorSuccess
	switch {
	case pct >= 90:
		c = ColorError
	case pct >= 75:
		c = ColorCoral
	case pct >= 50:
		c = ColorWarning
	}
	return lipgloss.NewStyle().Foreground(c).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(ColorMuted).Render(strings.Repeat("░", width-filled))
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis
// at the front so the file name stays visible.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n+1:])
}
