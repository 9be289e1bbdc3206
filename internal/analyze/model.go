// Package analyze is the interactive explorer over scan results: it follows
// a running scan, drills into folders on demand and queues entries for the
// deletion gate.
package analyze

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
)

// searchTickMsg is sent after a debounce delay to trigger the actual search.
type searchTickMsg struct {
	query string
}

// searchDebounce is the delay before running SearchTree after a keystroke.
const searchDebounce = 150 * time.Millisecond

// largeThreshold is the cut-off for the L filter.
const largeThreshold = 100 << 20

// ─── Messages ────────────────────────────────────────────────────────────────

type scanUpdateMsg struct {
	update scan.Update
}

type scanClosedMsg struct{}

type breakdownMsg struct {
	node    *Node
	entries []scan.Entry
	err     error
}

func waitForUpdate(updates <-chan scan.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return scanClosedMsg{}
		}
		return scanUpdateMsg{update: u}
	}
}

func loadBreakdown(ctx context.Context, engine *scan.Engine, node *Node) tea.Cmd {
	return func() tea.Msg {
		entries, err := engine.RunBreakdown(ctx, node.Path, nil)
		return breakdownMsg{node: node, entries: entries, err: err}
	}
}

// ─── Model ───────────────────────────────────────────────────────────────────

type viewMode int

const (
	modeTree viewMode = iota
	modeLargest
)

// AnalyzeModel is the bubbletea Model for the disk explorer.
type AnalyzeModel struct {
	ctx     context.Context
	cancel  context.CancelFunc
	engine  *scan.Engine
	updates <-chan scan.Update

	scanning bool
	loading  bool
	status   string
	fraction float64
	progress progress.Model
	spinner  spinner.Model

	result     *scan.Result
	root       *Node
	current    *Node   // directory being displayed
	largest    []*Node // top items across all roots
	mode       viewMode
	cursor     int     // selected item index
	breadcrumb []*Node // navigation history stack
	width      int
	height     int
	offset     int  // viewport scroll offset
	largeOnly  bool // filter: show only >100MB
	minSize    int64

	marked          map[string]*Node
	markOrder       []string
	confirmDelete   bool // two-key delete: Backspace then Enter
	deleteRequested bool
	quitting        bool
	err             error

	// Search state
	searching     bool           // true when in search mode
	searchQuery   string         // current search input
	searchResults []SearchResult // cached search results
	searchCursor  int            // cursor within search results
}

// NewAnalyzeModel starts a scan of roots and returns a model following it.
// The scan's ErrBusy or ErrNoRoots is returned before any UI starts.
func NewAnalyzeModel(ctx context.Context, engine *scan.Engine, roots []config.Root, minSize int64) (AnalyzeModel, error) {
	ctx, cancel := context.WithCancel(ctx)
	updates, err := engine.Scan(ctx, roots)
	if err != nil {
		cancel()
		return AnalyzeModel{}, err
	}
	m := newModel(ctx, cancel, engine, minSize)
	m.updates = updates
	m.scanning = true
	m.status = "Starting scan…"
	return m, nil
}

// NewResultModel opens the explorer on an already completed scan.
func NewResultModel(ctx context.Context, engine *scan.Engine, res *scan.Result, minSize int64) AnalyzeModel {
	ctx, cancel := context.WithCancel(ctx)
	m := newModel(ctx, cancel, engine, minSize)
	m.setResult(res)
	return m
}

func newModel(ctx context.Context, cancel context.CancelFunc, engine *scan.Engine, minSize int64) AnalyzeModel {
	return AnalyzeModel{
		ctx:      ctx,
		cancel:   cancel,
		engine:   engine,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		width:    80,
		height:   24,
		minSize:  minSize,
		marked:   make(map[string]*Node),
	}
}

func (m *AnalyzeModel) setResult(res *scan.Result) {
	m.result = res
	m.root, m.largest = buildTree(res)
	m.current = m.root
	m.cursor, m.offset = 0, 0
	m.breadcrumb = nil
}

// Result is the completed scan, if any.
func (m AnalyzeModel) Result() *scan.Result {
	return m.result
}

// DeleteRequested reports whether the user quit by confirming a delete.
func (m AnalyzeModel) DeleteRequested() bool {
	return m.deleteRequested
}

// Marked returns the queued entries in the order they were marked.
func (m AnalyzeModel) Marked() []scan.Entry {
	out := make([]scan.Entry, 0, len(m.markOrder))
	for _, p := range m.markOrder {
		if n, ok := m.marked[p]; ok {
			out = append(out, n.Entry())
		}
	}
	return out
}

// Err is the last error shown in the footer.
func (m AnalyzeModel) Err() error {
	return m.err
}

func (m AnalyzeModel) Init() tea.Cmd {
	if m.scanning {
		return tea.Batch(waitForUpdate(m.updates), m.spinner.Tick)
	}
	return nil
}

func (m AnalyzeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width-20, 10)
		return m, nil

	case spinner.TickMsg:
		if !m.scanning && !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanUpdateMsg:
		u := msg.update
		m.status = u.Progress.Status
		m.fraction = u.Progress.Fraction
		if u.Done {
			m.scanning = false
			if u.Err != nil {
				m.err = u.Err
			} else if u.Result != nil {
				m.setResult(u.Result)
			}
		}
		return m, waitForUpdate(m.updates)

	case scanClosedMsg:
		m.scanning = false
		return m, nil

	case breakdownMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		msg.node.attach(msg.entries)
		m.enter(msg.node)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case searchTickMsg:
		// Only execute search if query hasn't changed since the tick was scheduled (debounce).
		if m.searching && msg.query == m.searchQuery {
			m.searchResults = SearchTreeBounded(m.root, m.searchQuery, 50)
			// Clamp cursor; results may be shorter than the old list.
			if m.searchCursor >= len(m.searchResults) {
				m.searchCursor = 0
			}
		}
		return m, nil
	}

	return m, nil
}

func (m AnalyzeModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.cancel()
		m.quitting = true
		return m, tea.Quit
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	// If awaiting delete confirmation, only Enter confirms.
	if m.confirmDelete {
		m.confirmDelete = false
		if msg.String() == "enter" {
			if len(m.marked) == 0 {
				return m, nil
			}
			m.deleteRequested = true
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		m.cancel()
		m.quitting = true
		return m, tea.Quit
	}

	// Navigation needs a finished scan.
	if m.root == nil {
		return m, nil
	}

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.ensureVisible()
		}

	case "down", "j":
		if m.cursor < len(m.visibleItems())-1 {
			m.cursor++
			m.ensureVisible()
		}

	case "right", "l", "enter":
		if entry := m.selected(); entry != nil && entry.IsDir && !m.loading {
			if entry.Loaded {
				m.enter(entry)
				return m, nil
			}
			m.loading = true
			m.err = nil
			return m, tea.Batch(loadBreakdown(m.ctx, m.engine, entry), m.spinner.Tick)
		}

	case "left", "h":
		if len(m.breadcrumb) > 0 {
			m.current = m.breadcrumb[len(m.breadcrumb)-1]
			m.breadcrumb = m.breadcrumb[:len(m.breadcrumb)-1]
			m.cursor = 0
			m.offset = 0
		}

	case "t":
		if m.mode == modeTree {
			m.mode = modeLargest
		} else {
			m.mode = modeTree
		}
		m.cursor, m.offset = 0, 0

	case " ":
		if entry := m.selected(); entry != nil {
			m.toggleMark(entry)
		}

	case "backspace", "delete":
		// First key of two-key delete confirmation. With nothing marked the
		// selected entry is queued.
		if len(m.marked) == 0 {
			if entry := m.selected(); entry != nil {
				m.toggleMark(entry)
			}
		}
		m.confirmDelete = len(m.marked) > 0

	case "L":
		m.largeOnly = !m.largeOnly
		m.cursor = 0
		m.offset = 0

	case "/":
		m.searching = true
		m.searchQuery = ""
		m.searchResults = nil
		m.searchCursor = 0
	}
	return m, nil
}

func (m AnalyzeModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.resetSearch()
	case tea.KeyEnter:
		if m.searchCursor >= 0 && m.searchCursor < len(m.searchResults) {
			m.navigateToEntry(m.searchResults[m.searchCursor].Entry)
			m.resetSearch()
		}
	case tea.KeyUp:
		if m.searchCursor > 0 {
			m.searchCursor--
		}
	case tea.KeyDown:
		if m.searchCursor < len(m.searchResults)-1 {
			m.searchCursor++
		}
	case tea.KeyBackspace:
		if len(m.searchQuery) > 0 {
			_, size := utf8.DecodeLastRuneInString(m.searchQuery)
			m.searchQuery = m.searchQuery[:len(m.searchQuery)-size]
			m.searchCursor = 0
			return m, m.debounceSearch()
		}
	case tea.KeyRunes, tea.KeySpace:
		m.searchQuery += string(msg.Runes)
		m.searchCursor = 0
		return m, m.debounceSearch()
	}
	return m, nil
}

func (m AnalyzeModel) debounceSearch() tea.Cmd {
	q := m.searchQuery
	return tea.Tick(searchDebounce, func(time.Time) tea.Msg {
		return searchTickMsg{query: q}
	})
}

func (m *AnalyzeModel) resetSearch() {
	m.searching = false
	m.searchQuery = ""
	m.searchResults = nil
	m.searchCursor = 0
}

// View delegates to view.go renderView.
func (m AnalyzeModel) View() string {
	return m.renderView()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (m *AnalyzeModel) enter(n *Node) {
	m.mode = modeTree
	m.breadcrumb = append(m.breadcrumb, m.current)
	m.current = n
	m.cursor = 0
	m.offset = 0
}

func (m *AnalyzeModel) toggleMark(n *Node) {
	if _, ok := m.marked[n.Path]; ok {
		delete(m.marked, n.Path)
		return
	}
	if !n.Markable() {
		m.err = errors.New(n.Name + " cannot be deleted: " + markRefusal(n))
		return
	}
	m.err = nil
	m.marked[n.Path] = n
	m.markOrder = append(m.markOrder, n.Path)
}

func markRefusal(n *Node) string {
	if !n.Graded {
		return "scan roots are never deleted"
	}
	return n.Reason
}

func (m AnalyzeModel) selected() *Node {
	items := m.visibleItems()
	if m.cursor >= 0 && m.cursor < len(items) {
		return items[m.cursor]
	}
	return nil
}

func (m *AnalyzeModel) ensureVisible() {
	vh := m.viewportHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+vh {
		m.offset = m.cursor - vh + 1
	}
}

func (m *AnalyzeModel) viewportHeight() int {
	h := m.height - 8 // header (4) + footer (3) + padding
	if h < 1 {
		h = 1
	}
	return h
}

// visibleItems returns the rows for the current mode after the size
// filters.
func (m AnalyzeModel) visibleItems() []*Node {
	var src []*Node
	switch {
	case m.mode == modeLargest:
		src = m.largest
	case m.current != nil:
		src = m.current.Children
	}

	var out []*Node
	for _, c := range src {
		if m.minSize > 0 && c.Size < m.minSize {
			continue
		}
		if m.largeOnly && c.Size < largeThreshold {
			continue
		}
		out = append(out, c)
	}
	return out
}

// navigateToEntry builds a breadcrumb trail to the given entry's parent and
// sets the cursor to the entry. Used when selecting a search result.
func (m *AnalyzeModel) navigateToEntry(entry *Node) {
	var trail []*Node
	current := entry.Parent
	for current != nil && current != m.root {
		trail = append([]*Node{current}, trail...)
		current = current.Parent
	}

	m.mode = modeTree
	m.breadcrumb = append([]*Node{m.root}, trail...)
	if entry.Parent != nil {
		m.current = entry.Parent
		m.breadcrumb = m.breadcrumb[:len(m.breadcrumb)-1]
	} else {
		m.current = m.root
		m.breadcrumb = nil
	}

	m.cursor = 0
	for i, child := range m.visibleItems() {
		if child == entry {
			m.cursor = i
			break
		}
	}
	m.offset = 0
	m.ensureVisible()
}

// Forget removes deleted paths from the tree and the largest list, for
// reopening the explorer after a deletion.
func (m *AnalyzeModel) Forget(paths []string) {
	gone := make(map[string]bool, len(paths))
	for _, p := range paths {
		gone[p] = true
		delete(m.marked, p)
	}
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range append([]*Node(nil), n.Children...) {
			if gone[c.Path] {
				n.remove(c.Path)
				continue
			}
			walk(c)
		}
	}
	if m.root != nil {
		walk(m.root)
	}

	kept := m.largest[:0]
	for _, n := range m.largest {
		if !gone[n.Path] {
			kept = append(kept, n)
		}
	}
	m.largest = kept
	m.deleteRequested = false
	m.quitting = false
	m.loading = false
	m.err = nil
}
