// Package dupes finds files with identical content across the scan roots.
package dupes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
	"github.com/lakshaymaurya-felt/macmole/internal/hash"
	"github.com/lakshaymaurya-felt/macmole/internal/scan"
	"github.com/lakshaymaurya-felt/macmole/internal/walk"
)

var (
	// ErrBusy is returned when a duplicate pass is already running.
	ErrBusy = errors.New("a duplicate search is already in progress")

	// ErrNoRoots is returned when Find is given an empty root set.
	ErrNoRoots = errors.New("no scan roots configured")
)

// Group is a set of at least two distinct paths with the same size and the
// same content digest. Paths are sorted; the first is the suggested keeper.
type Group struct {
	Size  int64    `json:"size" yaml:"size"`
	Hash  string   `json:"hash" yaml:"hash"`
	Paths []string `json:"paths" yaml:"paths"`
}

// Extras returns every member except the keeper.
func (g Group) Extras() []string {
	if len(g.Paths) < 2 {
		return nil
	}
	return g.Paths[1:]
}

// Wasted is the space freed by keeping only one copy.
func (g Group) Wasted() int64 {
	return g.Size * int64(len(g.Paths)-1)
}

// TotalWasted sums Wasted over groups.
func TotalWasted(groups []Group) int64 {
	return lo.SumBy(groups, Group.Wasted)
}

// Update is one message on a duplicate pass's stream.
type Update struct {
	Progress scan.Progress
	Groups   []Group
	Err      error
	Done     bool
}

// Options tunes an Engine.
type Options struct {
	// Workers bounds concurrent walks and hashes. Zero means 4.
	Workers int

	// PrefixFilter enables the cheap leading-bytes filter between the size
	// and full-digest phases.
	PrefixFilter bool
}

// Engine runs at most one duplicate pass at a time.
type Engine struct {
	walker  *walk.Walker
	workers int
	prefix  bool
	log     zerolog.Logger

	running atomic.Bool

	mu   sync.Mutex
	last []Group

	// rootHook runs at the start of each root walk.
	rootHook func(config.Root)
}

// New creates a duplicate engine.
func New(w *walk.Walker, opts Options, log zerolog.Logger) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{walker: w, workers: workers, prefix: opts.PrefixFilter, log: log}
}

// Last returns the groups from the most recent completed pass.
func (e *Engine) Last() ([]Group, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.last != nil
}

// Busy reports whether a pass is in flight.
func (e *Engine) Busy() bool {
	return e.running.Load()
}

// Find starts a duplicate pass and returns its update stream. The walk
// phase reports progress from 0 to 0.5 by finished roots; hashing reports
// from 0.5 to 1 by hashed files.
func (e *Engine) Find(ctx context.Context, roots []config.Root) (<-chan Update, error) {
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

	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()

	updates := make(chan Update, 64)
	go e.coordinate(ctx, pool, roots, updates)
	return updates, nil
}

// Run is the blocking form of Find.
func (e *Engine) Run(ctx context.Context, roots []config.Root, onProgress func(scan.Progress)) ([]Group, error) {
	updates, err := e.Find(ctx, roots)
	if err != nil {
		return nil, err
	}
	var groups []Group
	for u := range updates {
		if onProgress != nil {
			onProgress(u.Progress)
		}
		if u.Done {
			if u.Err != nil {
				return nil, u.Err
			}
			groups = u.Groups
		}
	}
	return groups, nil
}

// reporter sends progress that never decreases. Intermediate steps stay
// below 1; only the final update with groups reaches it.
type reporter struct {
	updates chan<- Update
	last    float64
}

func (r *reporter) report(fraction float64, status string) {
	fraction = min(max(fraction, r.last), maxStep)
	r.last = fraction
	r.updates <- Update{Progress: scan.Progress{Fraction: fraction, Status: status}}
}

// maxStep is the highest fraction an intermediate update may carry.
const maxStep = 0.99

func (e *Engine) coordinate(ctx context.Context, pool *ants.Pool, roots []config.Root, updates chan<- Update) {
	defer close(updates)
	defer pool.Release()

	started := time.Now()
	rep := &reporter{updates: updates}
	fail := func(err error) {
		e.log.Info().Err(err).Msg("duplicate search cancelled")
		e.running.Store(false)
		updates <- Update{
			Progress: scan.Progress{Fraction: rep.last, Status: "Duplicate search cancelled"},
			Err:      err,
			Done:     true,
		}
	}

	rep.report(0, "Collecting files")

	// Phase 1: bucket by exact size.
	buckets := e.collect(ctx, pool, roots, rep)
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}
	candidates := multiMember(buckets)

	// Phase 2: drop members whose leading bytes are unique in their bucket.
	if e.prefix && len(candidates) > 0 {
		rep.report(0.5, "Comparing file heads")
		candidates = e.prefixFilter(ctx, pool, candidates)
		if err := ctx.Err(); err != nil {
			fail(err)
			return
		}
	}

	// Phase 3: confirm with a full digest.
	groups := e.confirm(ctx, pool, candidates, rep)
	if err := ctx.Err(); err != nil {
		fail(err)
		return
	}

	e.mu.Lock()
	e.last = groups
	e.mu.Unlock()
	e.log.Info().
		Int("groups", len(groups)).
		Int64("wasted", TotalWasted(groups)).
		Dur("elapsed", time.Since(started)).
		Msg("duplicate search finished")

	e.running.Store(false)
	updates <- Update{
		Progress: scan.Progress{Fraction: 1, Status: fmt.Sprintf("%d duplicate groups", len(groups))},
		Groups:   groups,
		Done:     true,
	}
}

type file struct {
	path string
	size int64
}

// collect walks every root on the pool and merges the files into size
// buckets. Directories, packages and empty files never enter a bucket.
func (e *Engine) collect(ctx context.Context, pool *ants.Pool, roots []config.Root, rep *reporter) map[int64][]file {
	done := make(chan []file, len(roots))
	for _, r := range roots {
		if err := pool.Submit(func() { done <- e.walkRoot(ctx, r) }); err != nil {
			e.log.Warn().Err(err).Str("root", r.Path).Msg("worker pool rejected root")
			done <- nil
		}
	}

	buckets := make(map[int64][]file)
	seen := make(map[string]bool)
	for completed := 1; completed <= len(roots); completed++ {
		for _, f := range <-done {
			// Overlapping roots would otherwise report a file as its own twin.
			if seen[f.path] {
				continue
			}
			seen[f.path] = true
			buckets[f.size] = append(buckets[f.size], f)
		}
		if ctx.Err() == nil {
			rep.report(0.5*float64(completed)/float64(len(roots)),
				fmt.Sprintf("Collected %d of %d roots", completed, len(roots)))
		}
	}
	return buckets
}

func (e *Engine) walkRoot(ctx context.Context, r config.Root) []file {
	if e.rootHook != nil {
		e.rootHook(r)
	}
	var files []file
	for it := range e.walker.Walk(ctx, r.Path) {
		if it.IsDir || it.Size <= 0 {
			continue
		}
		files = append(files, file{path: it.Path, size: it.Size})
	}
	return files
}

type inode struct {
	dev, ino uint64
	path     string
}

// multiMember keeps buckets that still have two or more members after hard
// links to the same inode are collapsed.
func multiMember(buckets map[int64][]file) [][]file {
	var out [][]file
	for _, files := range buckets {
		if len(files) < 2 {
			continue
		}
		files = lo.UniqBy(files, func(f file) inode {
			if dev, ino, ok := walk.FileID(f.path); ok {
				return inode{dev: dev, ino: ino}
			}
			return inode{path: f.path}
		})
		if len(files) >= 2 {
			out = append(out, files)
		}
	}
	return out
}

type result[T any] struct {
	file file
	val  T
	ok   bool
}

// runJobs applies fn to every file on the pool and gathers the results on
// the calling goroutine. tick is called after each result.
func runJobs[T any](ctx context.Context, pool *ants.Pool, files []file, fn func(file) (T, bool), tick func(done int)) []result[T] {
	out := make(chan result[T], len(files))
	for _, f := range files {
		err := pool.Submit(func() {
			if ctx.Err() != nil {
				out <- result[T]{file: f}
				return
			}
			v, ok := fn(f)
			out <- result[T]{file: f, val: v, ok: ok}
		})
		if err != nil {
			out <- result[T]{file: f}
		}
	}

	results := make([]result[T], 0, len(files))
	for i := range files {
		results = append(results, <-out)
		if tick != nil {
			tick(i + 1)
		}
	}
	return results
}

func (e *Engine) prefixFilter(ctx context.Context, pool *ants.Pool, buckets [][]file) [][]file {
	type key struct {
		size int64
		sum  uint64
	}
	results := runJobs(ctx, pool, lo.Flatten(buckets), func(f file) (uint64, bool) {
		sum, err := hash.Prefix(f.path, hash.DefaultPrefixSize)
		if err != nil {
			e.log.Debug().Err(err).Str("path", f.path).Msg("excluding unreadable file")
			return 0, false
		}
		return sum, true
	}, nil)

	byPrefix := lo.GroupBy(lo.Filter(results, func(r result[uint64], _ int) bool { return r.ok }),
		func(r result[uint64]) key { return key{size: r.file.size, sum: r.val} })

	var out [][]file
	for _, rs := range byPrefix {
		if len(rs) < 2 {
			continue
		}
		out = append(out, lo.Map(rs, func(r result[uint64], _ int) file { return r.file }))
	}
	return out
}

func (e *Engine) confirm(ctx context.Context, pool *ants.Pool, buckets [][]file, rep *reporter) []Group {
	files := lo.Flatten(buckets)
	total := len(files)
	step := max(total/100, 1)

	results := runJobs(ctx, pool, files, func(f file) (hash.Digest, bool) {
		d, n, err := hash.File(f.path)
		if err != nil {
			e.log.Debug().Err(err).Str("path", f.path).Msg("excluding unreadable file")
			return hash.Digest{}, false
		}
		if n != f.size {
			// Changed since the walk; its bucket no longer describes it.
			e.log.Debug().Str("path", f.path).Int64("expected", f.size).Int64("read", n).Msg("excluding file that changed size")
			return hash.Digest{}, false
		}
		return d, true
	}, func(done int) {
		if ctx.Err() == nil && (done%step == 0 || done == total) {
			rep.report(0.5+0.5*float64(done)/float64(total), fmt.Sprintf("Hashed %d of %d files", done, total))
		}
	})

	type key struct {
		size int64
		sum  hash.Digest
	}
	byDigest := lo.GroupBy(lo.Filter(results, func(r result[hash.Digest], _ int) bool { return r.ok }),
		func(r result[hash.Digest]) key { return key{size: r.file.size, sum: r.val} })

	groups := make([]Group, 0)
	for k, rs := range byDigest {
		if len(rs) < 2 {
			continue
		}
		paths := lo.Map(rs, func(r result[hash.Digest], _ int) string { return r.file.path })
		sort.Strings(paths)
		groups = append(groups, Group{Size: k.size, Hash: k.sum.String(), Paths: paths})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Size != groups[j].Size {
			return groups[i].Size > groups[j].Size
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})
	return groups
}
