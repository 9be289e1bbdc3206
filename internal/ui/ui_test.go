package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
)

func TestGradientBar_Width(t *testing.T) {
	for _, pct := range []float64{-5, 0, 0.1, 33, 100, 250} {
		bar := GradientBar(pct, 20)
		assert.Equal(t, 20, lipgloss.Width(bar), "pct=%v", pct)
	}
	assert.Empty(t, GradientBar(50, 0))
	assert.Contains(t, GradientBar(0.1, 10), "█", "any non-zero share shows at least one cell")
}

func TestUsageBar_Width(t *testing.T) {
	for _, pct := range []float64{0, 49, 50, 80, 95, 100} {
		assert.Equal(t, 30, lipgloss.Width(UsageBar(pct, 30)))
	}
}

func TestGradeTag(t *testing.T) {
	widths := map[int]bool{}
	for _, g := range []safety.Grade{safety.Safe, safety.Review, safety.LeaveAlone} {
		tag := GradeTag(g)
		assert.Contains(t, tag, strings.ToUpper(g.String()))
		widths[lipgloss.Width(tag)] = true
	}
	assert.Len(t, widths, 1, "tags line up in a column")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "…/b/file.txt", Truncate("/very/long/a/b/file.txt", 12))
	assert.Equal(t, "é", Truncate("é", 1))
}

func TestGradeColor(t *testing.T) {
	assert.Equal(t, ColorSuccess, GradeColor(safety.Safe))
	assert.Equal(t, ColorWarning, GradeColor(safety.Review))
	assert.Equal(t, ColorError, GradeColor(safety.LeaveAlone))
}
