// Package walk enumerates directory trees for size accounting and duplicate
// detection.
package walk

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

// Item is one entry produced by a walk.
type Item struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"is_dir"`
}

// Options configures a Walker.
type Options struct {
	// Concurrency bounds simultaneous directory reads. Zero means 8.
	Concurrency int

	// Exclude holds doublestar patterns matched against the full slash path
	// and the base name of every entry.
	Exclude []string

	// OneFilesystem keeps traversal on the starting directory's device.
	OneFilesystem bool
}

// packageExts are directories presented as a single document by the OS.
// They are sized as one unit and never descended into as leaf content.
var packageExts = map[string]bool{
	".app":           true,
	".appex":         true,
	".bundle":        true,
	".framework":     true,
	".kext":          true,
	".plugin":        true,
	".prefpane":      true,
	".xpc":           true,
	".pkg":           true,
	".mpkg":          true,
	".photoslibrary": true,
	".musiclibrary":  true,
	".tvlibrary":     true,
	".fcpbundle":     true,
	".imovielibrary": true,
	".logicx":        true,
	".band":          true,
	".xcarchive":     true,
	".sparsebundle":  true,
	".rtfd":          true,
	".pages":         true,
	".numbers":       true,
	".key":           true,
}

// IsPackage reports whether a directory named name is an opaque package.
func IsPackage(name string) bool {
	return packageExts[strings.ToLower(filepath.Ext(name))]
}

// IsHidden reports whether name is a dot-file.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Walker traverses directory trees with bounded I/O concurrency. A Walker
// is safe for concurrent use; each Walk call is independent.
type Walker struct {
	sem     chan struct{}
	exclude []string
	oneFS   bool
	log     zerolog.Logger
	skipped atomic.Int64
}

// New creates a walker. Invalid exclude patterns are dropped with a warning.
func New(opts Options, log zerolog.Logger) *Walker {
	n := opts.Concurrency
	if n <= 0 {
		n = 8
	}
	var exclude []string
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			log.Warn().Str("pattern", p).Msg("ignoring invalid exclude pattern")
			continue
		}
		exclude = append(exclude, p)
	}
	return &Walker{
		sem:     make(chan struct{}, n),
		exclude: exclude,
		oneFS:   opts.OneFilesystem,
		log:     log,
	}
}

// Skipped returns how many entries were skipped because they could not be
// read, across all walks so far.
func (w *Walker) Skipped() int64 {
	return w.skipped.Load()
}

// Walk returns a lazy sequence of every regular file beneath root, plus
// every package directory as a single item sized by DirSize. Hidden
// entries, symlinks and special files are skipped. Unreadable entries are
// skipped and counted; they never end the walk. Items arrive in no
// particular order. Stopping the iteration early cancels the traversal.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[Item] {
	return func(yield func(Item) bool) {
		root = filepath.Clean(root)
		info, err := os.Lstat(root)
		if err != nil {
			w.skip(root, err)
			return
		}
		if !info.IsDir() {
			if info.Mode().IsRegular() {
				yield(Item{Path: root, Size: info.Size()})
			}
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		dev, _ := deviceID(root)
		out := make(chan Item, 256)
		var wg sync.WaitGroup
		wg.Add(1)
		go w.walkDir(ctx, root, dev, out, &wg)
		go func() {
			wg.Wait()
			close(out)
		}()

		for it := range out {
			if !yield(it) {
				cancel()
				for range out {
				}
				return
			}
		}
	}
}

// walkDir lists one directory and fans out into its subdirectories. The
// semaphore is held only during ReadDir so nested goroutines cannot
// deadlock waiting on each other.
func (w *Walker) walkDir(ctx context.Context, dir string, dev uint64, out chan<- Item, wg *sync.WaitGroup) {
	defer wg.Done()

	entries, ok := w.readDir(ctx, dir)
	if !ok {
		return
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		if IsHidden(name) || w.excluded(path, name) {
			continue
		}

		typ := e.Type()
		switch {
		case typ&os.ModeSymlink != 0:
			// Never followed: cycle risk, and the target is counted where
			// it really lives.
			continue

		case e.IsDir():
			if !w.sameDevice(path, dev) {
				continue
			}
			if IsPackage(name) {
				size := w.dirSize(ctx, path, dev)
				if !send(ctx, out, Item{Path: path, Size: size, IsDir: true}) {
					return
				}
				continue
			}
			wg.Add(1)
			go w.walkDir(ctx, path, dev, out, wg)

		case typ.IsRegular():
			info, err := e.Info()
			if err != nil {
				w.skip(path, err)
				continue
			}
			if !send(ctx, out, Item{Path: path, Size: info.Size()}) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- Item, it Item) bool {
	select {
	case out <- it:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *Walker) readDir(ctx context.Context, dir string) ([]os.DirEntry, bool) {
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, false
	}
	entries, err := os.ReadDir(dir)
	<-w.sem

	if err != nil {
		w.skip(dir, err)
		// ReadDir returns the entries read before the error; keep them.
		return entries, len(entries) > 0
	}
	return entries, true
}

func (w *Walker) excluded(path, name string) bool {
	if len(w.exclude) == 0 {
		return false
	}
	slashed := filepath.ToSlash(path)
	for _, p := range w.exclude {
		if ok, _ := doublestar.Match(p, slashed); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (w *Walker) sameDevice(path string, dev uint64) bool {
	if !w.oneFS {
		return true
	}
	d, ok := deviceID(path)
	return !ok || d == dev
}

func (w *Walker) skip(path string, err error) {
	w.skipped.Add(1)
	w.log.Debug().Err(err).Str("path", path).Msg("skipping unreadable entry")
}
