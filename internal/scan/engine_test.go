package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/walk"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func newEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	w := walk.New(walk.Options{Concurrency: 4}, zerolog.Nop())
	return New(w, safety.New(t.TempDir()), opts, zerolog.Nop())
}

// fixture builds two roots: A with files sized 10, 20, 30 and B with 5, 500.
func fixture(t *testing.T) []config.Root {
	t.Helper()
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	writeFile(t, filepath.Join(a, "ten"), 10)
	writeFile(t, filepath.Join(a, "nested", "twenty"), 20)
	writeFile(t, filepath.Join(a, "nested", "deep", "thirty"), 30)
	writeFile(t, filepath.Join(b, "five"), 5)
	writeFile(t, filepath.Join(b, "big.mov"), 500)
	return []config.Root{{Name: "A", Path: a}, {Name: "B", Path: b}}
}

func TestScan_TotalsAndLargest(t *testing.T) {
	e := newEngine(t, Options{TopN: 3})
	roots := fixture(t)

	var progress []float64
	res, err := e.Run(context.Background(), roots, func(p Progress) {
		progress = append(progress, p.Fraction)
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	require.Len(t, res.Folders, 2)
	assert.Equal(t, FolderSummary{Name: "A", Path: roots[0].Path, Size: 60, Items: 3}, res.Folders[0])
	assert.Equal(t, FolderSummary{Name: "B", Path: roots[1].Path, Size: 505, Items: 2}, res.Folders[1])
	assert.Equal(t, int64(565), res.TotalSize())

	require.Len(t, res.Largest, 3)
	assert.Equal(t, []int64{500, 30, 20}, []int64{res.Largest[0].Size, res.Largest[1].Size, res.Largest[2].Size})
	for _, en := range res.Largest {
		g, reason := e.classifier.Classify(en.Path, en.IsDir)
		assert.Equal(t, g, en.Grade)
		assert.Equal(t, reason, en.Reason)
	}

	// Monotonic, one step per root but the last, ending on exactly 1.
	require.Equal(t, []float64{0, 0.5, 1}, progress)

	last, ok := e.Last()
	require.True(t, ok)
	assert.Same(t, res, last)
	assert.False(t, e.Busy())
}

func TestScan_DefaultTopN(t *testing.T) {
	root := t.TempDir()
	for i := range 30 {
		writeFile(t, filepath.Join(root, fmt.Sprintf("f%02d", i)), i+1)
	}
	e := newEngine(t, Options{})

	res, err := e.Run(context.Background(), []config.Root{{Name: "R", Path: root}}, nil)
	require.NoError(t, err)
	require.Len(t, res.Largest, config.DefaultTopN)
	assert.Equal(t, int64(30), res.Largest[0].Size)
	assert.Equal(t, int64(11), res.Largest[config.DefaultTopN-1].Size)
}

func TestScan_NoRoots(t *testing.T) {
	e := newEngine(t, Options{})
	_, err := e.Scan(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRoots)
	assert.False(t, e.Busy())
}

func TestScan_MissingRootIsEmpty(t *testing.T) {
	e := newEngine(t, Options{})
	res, err := e.Run(context.Background(), []config.Root{
		{Name: "gone", Path: filepath.Join(t.TempDir(), "gone")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Folders[0].Size)
	assert.Equal(t, int64(1), res.Skipped)
	assert.Empty(t, res.Largest)
}

func TestScan_SecondCallWhileRunningIsRejected(t *testing.T) {
	e := newEngine(t, Options{Workers: 1})
	roots := fixture(t)

	entered := make(chan struct{}, len(roots))
	release := make(chan struct{})
	e.rootHook = func(config.Root) {
		entered <- struct{}{}
		<-release
	}

	updates, err := e.Scan(context.Background(), roots)
	require.NoError(t, err)
	<-entered
	assert.True(t, e.Busy())

	_, err = e.Scan(context.Background(), roots[:1])
	assert.ErrorIs(t, err, ErrBusy)
	_, err = e.Breakdown(context.Background(), roots[0].Path)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	var final Update
	for u := range updates {
		final = u
	}
	require.True(t, final.Done)
	require.NoError(t, final.Err)
	assert.Len(t, final.Result.Folders, 2, "rejected call must not alter the running session")
	assert.Equal(t, int64(505), final.Result.Folders[1].Size)

	e.rootHook = nil
	_, err = e.Run(context.Background(), roots[:1], nil)
	assert.NoError(t, err)
}

func TestScan_NewSessionClearsPrevious(t *testing.T) {
	e := newEngine(t, Options{})
	roots := fixture(t)
	_, err := e.Run(context.Background(), roots, nil)
	require.NoError(t, err)

	release := make(chan struct{})
	e.rootHook = func(config.Root) { <-release }
	updates, err := e.Scan(context.Background(), roots)
	require.NoError(t, err)

	_, ok := e.Last()
	assert.False(t, ok)

	close(release)
	for range updates {
	}
	_, ok = e.Last()
	assert.True(t, ok)
}

func TestScan_Cancelled(t *testing.T) {
	e := newEngine(t, Options{Workers: 1})
	roots := fixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	e.rootHook = func(config.Root) { cancel() }

	_, err := e.Run(ctx, roots, nil)
	assert.ErrorIs(t, err, context.Canceled)
	_, ok := e.Last()
	assert.False(t, ok)
	assert.False(t, e.Busy())
}

func TestScan_CancelledProgressNeverDecreases(t *testing.T) {
	e := newEngine(t, Options{Workers: 1})
	roots := fixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.rootHook = func(r config.Root) {
		if r.Name == "B" {
			cancel()
		}
	}

	updates, err := e.Scan(ctx, roots)
	require.NoError(t, err)
	var progress []float64
	var final Update
	for u := range updates {
		progress = append(progress, u.Progress.Fraction)
		final = u
	}

	require.True(t, final.Done)
	assert.ErrorIs(t, final.Err, context.Canceled)
	assert.Nil(t, final.Result)
	for i := 1; i < len(progress); i++ {
		assert.GreaterOrEqual(t, progress[i], progress[i-1], "progress %v", progress)
	}
	assert.Less(t, final.Progress.Fraction, 1.0)
}

func TestBreakdown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.mov"), 300)
	writeFile(t, filepath.Join(root, "sub", "a"), 100)
	writeFile(t, filepath.Join(root, "sub", "b", "c"), 900)
	writeFile(t, filepath.Join(root, ".hidden"), 5000)

	e := newEngine(t, Options{})
	entries, err := e.RunBreakdown(context.Background(), root, nil)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, filepath.Join(root, "sub"), entries[0].Path)
	assert.Equal(t, int64(1000), entries[0].Size)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, int64(300), entries[1].Size)
	for _, en := range entries {
		assert.NotEmpty(t, en.Reason)
	}
	assert.False(t, e.Busy())
}

func TestBreakdown_Missing(t *testing.T) {
	e := newEngine(t, Options{})
	_, err := e.RunBreakdown(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)

	// The guard is released after a failure.
	require.Eventually(t, func() bool { return !e.Busy() }, time.Second, 10*time.Millisecond)
}
