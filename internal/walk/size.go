package walk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirSize returns the recursive sum of regular-file sizes beneath dir,
// applying the same skip rules as Walk. Symlinks and special files
// contribute nothing.
func (w *Walker) DirSize(ctx context.Context, dir string) int64 {
	dir = filepath.Clean(dir)
	dev, _ := deviceID(dir)
	return w.dirSize(ctx, dir, dev)
}

func (w *Walker) dirSize(ctx context.Context, dir string, dev uint64) int64 {
	entries, ok := w.readDir(ctx, dir)
	if !ok {
		return 0
	}

	var total int64
	for _, e := range entries {
		if ctx.Err() != nil {
			return total
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		if IsHidden(name) || w.excluded(path, name) {
			continue
		}
		typ := e.Type()
		switch {
		case typ&os.ModeSymlink != 0:
			continue
		case e.IsDir():
			if w.sameDevice(path, dev) {
				total += w.dirSize(ctx, path, dev)
			}
		case typ.IsRegular():
			info, err := e.Info()
			if err != nil {
				w.skip(path, err)
				continue
			}
			total += info.Size()
		}
	}
	return total
}

// Children lists the immediate, non-hidden children of dir. Regular files
// carry their own size; directories carry their DirSize, computed
// concurrently. Results are sorted by size descending, then by path.
// Unlike Walk, an unreadable dir is reported as an error because the
// caller asked about that folder specifically.
func (w *Walker) Children(ctx context.Context, dir string) ([]Item, error) {
	dir = filepath.Clean(dir)
	select {
	case w.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	entries, err := os.ReadDir(dir)
	<-w.sem
	if err != nil && len(entries) == 0 {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if err != nil {
		w.skip(dir, err)
	}

	dev, _ := deviceID(dir)
	results := make(chan Item)
	pending := 0

	var items []Item
	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)
		if IsHidden(name) || w.excluded(path, name) {
			continue
		}
		typ := e.Type()
		switch {
		case typ&os.ModeSymlink != 0:
			continue
		case e.IsDir():
			if !w.sameDevice(path, dev) {
				continue
			}
			pending++
			go func(p string) {
				results <- Item{Path: p, Size: w.dirSize(ctx, p, dev), IsDir: true}
			}(path)
		case typ.IsRegular():
			info, err := e.Info()
			if err != nil {
				w.skip(path, err)
				continue
			}
			items = append(items, Item{Path: path, Size: info.Size()})
		}
	}

	for ; pending > 0; pending-- {
		items = append(items, <-results)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	SortBySize(items)
	return items, nil
}

// SortBySize orders items by size descending, breaking ties by path so the
// order is stable across runs.
func SortBySize(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Size != items[j].Size {
			return items[i].Size > items[j].Size
		}
		return items[i].Path < items[j].Path
	})
}
