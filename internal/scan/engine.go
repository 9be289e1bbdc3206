// Package scan walks the configured roots, totals each one and reports the
// largest items with their safety grade.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/safety"
	"github.com/lakshaymaurya-felt/macmole/internal/walk"
)

var (
	// ErrBusy is returned when a scan or breakdown is already running on
	// the engine. The running pass is not affected.
	ErrBusy = errors.New("a scan is already in progress")

	// ErrNoRoots is returned when Scan is given an empty root set.
	ErrNoRoots = errors.New("no scan roots configured")
)

// Options tunes an Engine.
type Options struct {
	// Workers is the number of roots walked at once. Zero means 4.
	Workers int

	// TopN is how many of the largest items are classified. Zero means
	// config.DefaultTopN.
	TopN int
}

// Engine runs at most one scan or breakdown at a time.
type Engine struct {
	walker     *walk.Walker
	classifier *safety.Classifier
	workers    int
	topN       int
	log        zerolog.Logger

	running atomic.Bool

	mu   sync.Mutex
	last *Result

	// rootHook runs at the start of each root walk. Tests use it to hold
	// a pass open.
	rootHook func(config.Root)
}

// New creates a scan engine.
func New(w *walk.Walker, c *safety.Classifier, opts Options, log zerolog.Logger) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = config.DefaultTopN
	}
	return &Engine{
		walker:     w,
		classifier: c,
		workers:    workers,
		topN:       topN,
		log:        log,
	}
}

// Last returns the result of the most recent completed scan.
func (e *Engine) Last() (*Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.last != nil
}

func (e *Engine) setLast(r *Result) {
	e.mu.Lock()
	e.last = r
	e.mu.Unlock()
}

// Busy reports whether a pass is in flight.
func (e *Engine) Busy() bool {
	return e.running.Load()
}

// rootResult is what a worker reports back for one finished root.
type rootResult struct {
	index   int
	summary FolderSummary
	top     []walk.Item
}

// Scan starts a pass over roots and returns its update stream. Progress is
// reported once per finished root as completed/total and never decreases.
// The final update carries the result at exactly 1, or ctx.Err() at the last
// reported fraction if the pass was cancelled.
func (e *Engine) Scan(ctx context.Context, roots []config.Root) (<-chan Update, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		e.running.Store(false)
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	// A new session invalidates whatever the previous one produced.
	e.setLast(nil)

	updates := make(chan Update, len(roots)+2)
	go e.coordinate(ctx, pool, roots, updates)
	return updates, nil
}

// coordinate is the only goroutine that touches session state. Workers hand
// their per-root results over a channel.
func (e *Engine) coordinate(ctx context.Context, pool *ants.Pool, roots []config.Root, updates chan<- Update) {
	defer close(updates)

	started := time.Now()
	skippedBefore := e.walker.Skipped()
	log := e.log.With().Int("roots", len(roots)).Logger()
	log.Info().Msg("scan started")

	updates <- Update{Progress: Progress{Fraction: 0, Status: "Scanning " + roots[0].Name}}

	done := make(chan rootResult, len(roots))
	for i, r := range roots {
		if err := pool.Submit(func() { done <- e.walkRoot(ctx, i, r) }); err != nil {
			log.Warn().Err(err).Str("root", r.Path).Msg("worker pool rejected root")
			done <- rootResult{index: i, summary: FolderSummary{Name: r.Name, Path: r.Path}}
		}
	}

	// Only the final update with a result reaches 1; a cancelled pass stays
	// at the fraction it last reported.
	var fraction float64
	folders := make([]FolderSummary, len(roots))
	var candidates []walk.Item
	for completed := 1; completed <= len(roots); completed++ {
		res := <-done
		folders[res.index] = res.summary
		candidates = append(candidates, res.top...)
		if completed == len(roots) || ctx.Err() != nil {
			continue
		}
		fraction = float64(completed) / float64(len(roots))
		updates <- Update{Progress: Progress{Fraction: fraction, Status: "Scanned " + res.summary.Name}}
	}
	pool.Release()

	if err := ctx.Err(); err != nil {
		log.Info().Err(err).Msg("scan cancelled")
		e.running.Store(false)
		updates <- Update{Progress: Progress{Fraction: fraction, Status: "Scan cancelled"}, Err: err, Done: true}
		return
	}

	result := &Result{
		Folders:  folders,
		Largest:  e.classifyTop(candidates),
		Skipped:  e.walker.Skipped() - skippedBefore,
		Started:  started,
		Finished: time.Now(),
	}
	e.setLast(result)
	log.Info().
		Int64("bytes", result.TotalSize()).
		Int64("skipped", result.Skipped).
		Dur("elapsed", result.Finished.Sub(started)).
		Msg("scan finished")

	// Clear the guard before the final update so a consumer reacting to
	// Done can start the next pass straight away.
	e.running.Store(false)
	updates <- Update{
		Progress: Progress{Fraction: 1, Status: "Scan complete"},
		Result:   result,
		Done:     true,
	}
}

// walkRoot runs on a pool worker. It only touches its own locals.
func (e *Engine) walkRoot(ctx context.Context, index int, r config.Root) rootResult {
	if e.rootHook != nil {
		e.rootHook(r)
	}

	sum := FolderSummary{Name: r.Name, Path: r.Path}
	var top []walk.Item
	for it := range e.walker.Walk(ctx, r.Path) {
		sum.Size += it.Size
		sum.Items++
		top = append(top, it)
		if len(top) >= 2*e.topN {
			top = largest(top, e.topN)
		}
	}
	return rootResult{index: index, summary: sum, top: largest(top, e.topN)}
}

// largest sorts items and keeps the first n.
func largest(items []walk.Item, n int) []walk.Item {
	walk.SortBySize(items)
	if len(items) > n {
		items = items[:n]
	}
	return items
}

// classifyTop picks the overall top N and grades only those.
func (e *Engine) classifyTop(items []walk.Item) []Entry {
	items = largest(items, e.topN)
	out := make([]Entry, len(items))
	for i, it := range items {
		out[i] = e.entry(it)
	}
	return out
}

func (e *Engine) entry(it walk.Item) Entry {
	grade, reason := e.classifier.Classify(it.Path, it.IsDir)
	return Entry{Path: it.Path, Size: it.Size, IsDir: it.IsDir, Grade: grade, Reason: reason}
}

// Breakdown lists the immediate children of folder, each sized and
// classified, largest first. It shares the single-flight guard with Scan.
func (e *Engine) Breakdown(ctx context.Context, folder string) (<-chan Update, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}

	folder = filepath.Clean(folder)
	updates := make(chan Update, 2)
	go func() {
		defer close(updates)
		updates <- Update{Progress: Progress{Status: "Listing " + folder}}

		items, err := e.walker.Children(ctx, folder)
		if err != nil {
			e.log.Warn().Err(err).Str("folder", folder).Msg("breakdown failed")
			e.running.Store(false)
			updates <- Update{Progress: Progress{Status: "Breakdown failed"}, Err: err, Done: true}
			return
		}

		entries := make([]Entry, len(items))
		for i, it := range items {
			entries[i] = e.entry(it)
		}

		e.running.Store(false)
		updates <- Update{
			Progress: Progress{Fraction: 1, Status: fmt.Sprintf("%d items in %s", len(entries), folder)},
			Entries:  entries,
			Done:     true,
		}
	}()
	return updates, nil
}

// Run scans roots and blocks until the pass ends, forwarding progress to
// onProgress when non-nil.
func (e *Engine) Run(ctx context.Context, roots []config.Root, onProgress func(Progress)) (*Result, error) {
	updates, err := e.Scan(ctx, roots)
	if err != nil {
		return nil, err
	}
	var result *Result
	for u := range updates {
		if onProgress != nil {
			onProgress(u.Progress)
		}
		if u.Done {
			if u.Err != nil {
				return nil, u.Err
			}
			result = u.Result
		}
	}
	return result, nil
}

// RunBreakdown is the blocking form of Breakdown.
func (e *Engine) RunBreakdown(ctx context.Context, folder string, onProgress func(Progress)) ([]Entry, error) {
	updates, err := e.Breakdown(ctx, folder)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for u := range updates {
		if onProgress != nil {
			onProgress(u.Progress)
		}
		if u.Done {
			if u.Err != nil {
				return nil, u.Err
			}
			entries = u.Entries
		}
	}
	return entries, nil
}
