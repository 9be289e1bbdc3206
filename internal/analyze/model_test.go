package analyze

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/walk"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newEngine(t *testing.T) *scan.Engine {
	t.Helper()
	w := walk.New(walk.Options{Concurrency: 2}, zerolog.Nop())
	return scan.New(w, safety.New(t.TempDir()), scan.Options{Workers: 2, TopN: 5}, zerolog.Nop())
}

// fixture builds root A (60 bytes over three files) and root B holding
// big.mov (500) and five (5).
func fixture(t *testing.T) []config.Root {
	t.Helper()
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	writeFile(t, filepath.Join(a, "ten"), 10)
	writeFile(t, filepath.Join(a, "nested", "twenty"), 20)
	writeFile(t, filepath.Join(a, "nested", "deep", "thirty"), 30)
	writeFile(t, filepath.Join(b, "big.mov"), 500)
	writeFile(t, filepath.Join(b, "five"), 5)
	return []config.Root{{Name: "A", Path: a}, {Name: "B", Path: b}}
}

func completed(t *testing.T, roots []config.Root) (AnalyzeModel, *scan.Engine) {
	t.Helper()
	engine := newEngine(t)
	res, err := engine.Run(context.Background(), roots, nil)
	require.NoError(t, err)
	return NewResultModel(context.Background(), engine, res, 0), engine
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press feeds msg to m.
func press(t *testing.T, m AnalyzeModel, msg tea.Msg) (AnalyzeModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(AnalyzeModel), cmd
}

func drill(t *testing.T, m AnalyzeModel) AnalyzeModel {
	t.Helper()
	m, cmd := press(t, m, key("enter"))
	require.NotNil(t, cmd)
	require.True(t, m.loading)
	msg := firstOf[breakdownMsg](t, cmd)
	m, _ = press(t, m, msg)
	return m
}

// firstOf runs cmd, unpacking one level of batching, and returns the first
// message of type T.
func firstOf[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if found, ok := c().(T); ok {
				return found
			}
		}
	}
	found, ok := msg.(T)
	require.True(t, ok, "no %T produced", found)
	return found
}

func TestResultModel_RootsSortedBySize(t *testing.T) {
	m, _ := completed(t, fixture(t))

	items := m.visibleItems()
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].Name)
	assert.Equal(t, int64(505), items[0].Size)
	assert.Equal(t, "A", items[1].Name)
	assert.False(t, items[0].Graded)
	assert.Equal(t, int64(565), m.root.Size)
}

func TestModel_FollowsScan(t *testing.T) {
	roots := fixture(t)
	m, err := NewAnalyzeModel(context.Background(), newEngine(t), roots, 0)
	require.NoError(t, err)
	assert.Nil(t, m.root)
	assert.NotEmpty(t, m.View())

	for i := 0; i < 10 && m.scanning; i++ {
		m, _ = press(t, m, waitForUpdate(m.updates)())
	}
	require.False(t, m.scanning)
	require.NotNil(t, m.Result())
	assert.Equal(t, int64(565), m.Result().TotalSize())
	assert.Equal(t, 1.0, m.fraction)

	m, _ = press(t, m, waitForUpdate(m.updates)())
	assert.Len(t, m.visibleItems(), 2)
}

func TestModel_ScanNeedsRoots(t *testing.T) {
	engine := newEngine(t)
	_, err := NewAnalyzeModel(context.Background(), engine, nil, 0)
	assert.ErrorIs(t, err, scan.ErrNoRoots)
}

func TestModel_DrillInLoadsBreakdown(t *testing.T) {
	m, _ := completed(t, fixture(t))

	m = drill(t, m)
	assert.Equal(t, "B", m.current.Name)
	assert.True(t, m.current.Loaded)
	items := m.visibleItems()
	require.Len(t, items, 2)
	assert.Equal(t, "big.mov", items[0].Name)
	assert.Equal(t, "five", items[1].Name)
	for _, n := range items {
		assert.True(t, n.Graded)
		assert.True(t, n.Markable())
	}

	m, _ = press(t, m, key("left"))
	assert.Equal(t, m.root, m.current)

	// A loaded folder is entered without another breakdown.
	m, cmd := press(t, m, key("enter"))
	assert.Nil(t, cmd)
	assert.Equal(t, "B", m.current.Name)
}

func TestModel_MarkAndRequestDelete(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m = drill(t, m)

	m, _ = press(t, m, key(" "))
	m, _ = press(t, m, key("down"))
	m, _ = press(t, m, key(" "))
	assert.Contains(t, m.renderFooter(), "2 marked")

	m, _ = press(t, m, key("backspace"))
	require.True(t, m.confirmDelete)
	m, cmd := press(t, m, key("enter"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	assert.True(t, m.DeleteRequested())
	marked := m.Marked()
	require.Len(t, marked, 2)
	assert.Equal(t, "big.mov", filepath.Base(marked[0].Path))
	assert.Equal(t, "five", filepath.Base(marked[1].Path))
	assert.Equal(t, int64(5), marked[1].Size)
}

func TestModel_ConfirmCancelledByOtherKey(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m = drill(t, m)

	m, _ = press(t, m, key("backspace"))
	require.True(t, m.confirmDelete)
	assert.Len(t, m.Marked(), 1, "backspace with nothing marked queues the selection")

	m, _ = press(t, m, key("j"))
	assert.False(t, m.confirmDelete)
	assert.False(t, m.DeleteRequested())
}

func TestModel_RefusesUnmarkable(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "apps", "Tool.app", "Contents", "bin"), 40)
	m, _ := completed(t, []config.Root{{Name: "apps", Path: filepath.Join(base, "apps")}})

	// Scan roots themselves are never queued.
	m, _ = press(t, m, key(" "))
	assert.Empty(t, m.Marked())
	require.Error(t, m.Err())

	m = drill(t, m)
	items := m.visibleItems()
	require.Len(t, items, 1)
	assert.Equal(t, safety.LeaveAlone, items[0].Grade)

	m, _ = press(t, m, key(" "))
	assert.Empty(t, m.Marked())
	assert.Contains(t, m.Err().Error(), "application bundle")

	m, _ = press(t, m, key("backspace"))
	assert.False(t, m.confirmDelete)
}

func TestModel_LargestModeAndFilters(t *testing.T) {
	m, _ := completed(t, fixture(t))

	m, _ = press(t, m, key("t"))
	items := m.visibleItems()
	require.Len(t, items, 5)
	assert.Equal(t, "big.mov", items[0].Name)
	assert.True(t, items[0].Graded)
	assert.Contains(t, m.View(), "Largest items")

	m.minSize = 20
	assert.Len(t, m.visibleItems(), 3)

	m, _ = press(t, m, key("L"))
	assert.Empty(t, m.visibleItems())

	m, _ = press(t, m, key("t"))
	assert.Equal(t, modeTree, m.mode)
}

func TestModel_SearchNavigates(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m = drill(t, m)
	m, _ = press(t, m, key("left"))

	m, _ = press(t, m, key("/"))
	require.True(t, m.searching)
	m, cmd := press(t, m, key("fiv"))
	require.NotNil(t, cmd)
	m, _ = press(t, m, searchTickMsg{query: "fiv"})
	require.Len(t, m.searchResults, 1)

	m, _ = press(t, m, key("enter"))
	assert.False(t, m.searching)
	assert.Equal(t, "B", m.current.Name)
	assert.Equal(t, "five", m.selected().Name)
}

func TestModel_StaleSearchTickIgnored(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m, _ = press(t, m, key("/"))
	m, _ = press(t, m, key("B"))
	m, _ = press(t, m, searchTickMsg{query: "old"})
	assert.Empty(t, m.searchResults)
}

func TestModel_Forget(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m = drill(t, m)
	m, _ = press(t, m, key(" "))
	big := m.Marked()[0].Path

	m.Forget([]string{big})
	assert.Empty(t, m.Marked())
	assert.Len(t, m.current.Children, 1)
	assert.Equal(t, int64(5), m.current.Size)
	assert.Equal(t, int64(65), m.root.Size)
	for _, n := range m.largest {
		assert.NotEqual(t, big, n.Path)
	}
}

func TestModel_QuitCancels(t *testing.T) {
	m, _ := completed(t, fixture(t))
	m, cmd := press(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Error(t, m.ctx.Err())
	assert.Empty(t, m.View())
}

func TestPrintStatic(t *testing.T) {
	color.NoColor = true
	m, _ := completed(t, fixture(t))

	var buf bytes.Buffer
	PrintStatic(&buf, m.Result())
	out := buf.String()
	assert.Contains(t, out, "+-- A")
	assert.Contains(t, out, "\\-- B")
	assert.Contains(t, out, "3 items")
	assert.Contains(t, out, "big.mov")
	assert.Contains(t, out, "Total: 565 B")

	buf.Reset()
	PrintStatic(&buf, nil)
	assert.Contains(t, buf.String(), "No data")
}

func TestPrintBreakdown(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	PrintBreakdown(&buf, "/x", []scan.Entry{
		{Path: "/x/a", Size: 10, IsDir: true, Grade: safety.Review, Reason: "folder"},
		{Path: "/x/b", Size: 5, Grade: safety.Safe},
	})
	out := buf.String()
	assert.Contains(t, out, "15 B")
	assert.Contains(t, out, "/x/a/")
	assert.Contains(t, out, "|   folder")
	assert.Contains(t, out, "\\--")

	buf.Reset()
	PrintBreakdown(&buf, "/empty", nil)
	assert.Contains(t, buf.String(), "(empty directory)")
}
