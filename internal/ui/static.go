package ui

import (
	"github.com/fatih/color"

	"github.com/lakshaymaurya-felt/macmole/internal/safety"
)

// Plain-terminal colors for non-interactive output. fatih/color disables
// itself when stdout is not a terminal or NO_COLOR is set.
var (
	Bold    = color.New(color.Bold).SprintFunc()
	Dim     = color.New(color.Faint).SprintFunc()
	Success = color.New(color.FgGreen).SprintFunc()
	Warning = color.New(color.FgYellow).SprintFunc()
	Danger  = color.New(color.FgRed, color.Bold).SprintFunc()
	Accent  = color.New(color.FgMagenta, color.Bold).SprintFunc()
)

// GradeLabel colors a grade name for plain output.
func GradeLabel(g safety.Grade) string {
	s := padRight(g.String(), 11)
	switch g {
	case safety.Safe:
		return Success(s)
	case safety.Review:
		return Warning(s)
	default:
		return Danger(s)
	}
}
