// Package status renders a live capacity dashboard for mounted volumes and
// the configured scan roots.
package status

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/volume"
)

// ─── Tab enumeration ─────────────────────────────────────────────────────────

// Tab identifies one of the dashboard sections.
type Tab int

const (
	TabVolumes Tab = iota
	TabRoots
)

// TabNames is the display label for each tab.
var TabNames = []string{"Volumes", "Roots"}

// ─── Data ────────────────────────────────────────────────────────────────────

// RootVolume is the capacity of the filesystem holding one scan root.
type RootVolume struct {
	Root     config.Root     `json:"root" yaml:"root"`
	Capacity volume.Capacity `json:"capacity" yaml:"capacity"`
	Err      string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Snapshot is one collection pass.
type Snapshot struct {
	Volumes []volume.Capacity `json:"volumes" yaml:"volumes"`
	Roots   []RootVolume      `json:"roots" yaml:"roots"`
	At      time.Time         `json:"at" yaml:"at"`
}

// Source supplies capacity data. The defaults query the OS.
type Source struct {
	List  func(ctx context.Context) ([]volume.Capacity, error)
	Usage func(ctx context.Context, path string) (volume.Capacity, error)
}

// OSSource reads live data through gopsutil.
var OSSource = Source{List: volume.List, Usage: volume.Usage}

// Collect gathers volumes and per-root capacity. A root whose volume
// cannot be read carries the error instead of failing the snapshot.
func Collect(ctx context.Context, src Source, roots []config.Root) (*Snapshot, error) {
	vols, err := src.List(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Volumes: vols, At: time.Now()}
	for _, r := range roots {
		rv := RootVolume{Root: r}
		c, err := src.Usage(ctx, r.Path)
		if err != nil {
			rv.Err = err.Error()
		} else {
			rv.Capacity = c
		}
		snap.Roots = append(snap.Roots, rv)
	}
	return snap, nil
}

// ─── Messages ────────────────────────────────────────────────────────────────

type tickMsg time.Time

type snapshotMsg struct {
	snap *Snapshot
	err  error
}

// ─── Model ───────────────────────────────────────────────────────────────────

// StatusModel is the bubbletea Model for the capacity dashboard.
type StatusModel struct {
	Snapshot        *Snapshot
	Tab             Tab
	Width           int
	Height          int
	refreshInterval time.Duration
	quitting        bool
	Err             error

	src   Source
	roots []config.Root

	// UsedHistory is a ring of the first volume's used percent (last 60
	// readings).
	UsedHistory []float64
}

// NewStatusModel creates a StatusModel with the given refresh cadence.
func NewStatusModel(src Source, roots []config.Root, refreshInterval time.Duration) StatusModel {
	if refreshInterval <= 0 {
		refreshInterval = 2 * time.Second
	}
	return StatusModel{
		Width:           80,
		Height:          24,
		refreshInterval: refreshInterval,
		src:             src,
		roots:           roots,
	}
}

func (m StatusModel) doTick() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m StatusModel) collect() tea.Cmd {
	src, roots := m.src, m.roots
	return func() tea.Msg {
		snap, err := Collect(context.Background(), src, roots)
		return snapshotMsg{snap: snap, err: err}
	}
}

// ─── tea.Model interface ─────────────────────────────────────────────────────

func (m StatusModel) Init() tea.Cmd {
	// The first snapshotMsg starts the tick loop, so collection and display
	// stay strictly sequential.
	return m.collect()
}

func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "tab", "shift+tab":
			m.Tab = (m.Tab + 1) % Tab(len(TabNames))
		case "1":
			m.Tab = TabVolumes
		case "2":
			m.Tab = TabRoots
		case "r":
			return m, m.collect()
		}
		return m, nil

	case tickMsg:
		return m, m.collect()

	case snapshotMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, m.doTick()
		}
		m.Err = nil
		m.Snapshot = msg.snap
		if len(msg.snap.Volumes) > 0 {
			m.UsedHistory = appendF64(m.UsedHistory, msg.snap.Volumes[0].UsedPercent, 60)
		}
		return m, m.doTick()
	}

	return m, nil
}

func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}
	return m.renderView()
}

// ─── History helpers ─────────────────────────────────────────────────────────

func appendF64(h []float64, v float64, maxLen int) []float64 {
	h = append(h, v)
	if len(h) > maxLen {
		h = h[1:]
	}
	return h
}
