package safety

import "fmt"

// Grade is the deletion risk assigned to a filesystem entry.
type Grade int

const (
	Safe Grade = iota
	Review
	LeaveAlone
)

var gradeNames = [...]string{
	Safe:       "safe",
	Review:     "review",
	LeaveAlone: "leave-alone",
}

func (g Grade) String() string {
	if g < Safe || g > LeaveAlone {
		return fmt.Sprintf("grade(%d)", int(g))
	}
	return gradeNames[g]
}

// Caution orders grades from least to most dangerous to delete.
func (g Grade) Caution() int {
	return int(g)
}

// MoreCautious reports whether g demands more care than other.
func (g Grade) MoreCautious(other Grade) bool {
	return g.Caution() > other.Caution()
}

func (g Grade) MarshalText() ([]byte, error) {
	if g < Safe || g > LeaveAlone {
		return nil, fmt.Errorf("invalid grade %d", int(g))
	}
	return []byte(gradeNames[g]), nil
}

func (g *Grade) UnmarshalText(text []byte) error {
	for i, name := range gradeNames {
		if name == string(text) {
			*g = Grade(i)
			return nil
		}
	}
	return fmt.Errorf("unknown grade %q", string(text))
}
