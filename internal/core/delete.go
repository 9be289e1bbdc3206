// Package core holds the low-level filesystem helpers shared by the engines
// and the UI.
package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lakshaymaurya-felt/macmole/internal/config"
)

// ErrProtectedPath is returned for paths that are never removed, whatever
// their grade.
var ErrProtectedPath = errors.New("refusing to delete protected path")

// Deleter removes files and directories, refusing a fixed set of critical
// locations.
type Deleter struct {
	never map[string]bool
}

// NewDeleter builds a deleter whose hard-coded refusals are relative to
// home.
func NewDeleter(home string) *Deleter {
	never := make(map[string]bool)
	for _, p := range config.NeverDeletePaths(home) {
		never[filepath.Clean(p)] = true
	}
	return &Deleter{never: never}
}

// Check reports whether path may be removed at all.
func (d *Deleter) Check(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s is not absolute", ErrProtectedPath, path)
	}
	if d.never[filepath.Clean(path)] {
		return fmt.Errorf("%w: %s", ErrProtectedPath, path)
	}
	return nil
}

// SafeDelete removes path, recursively for directories, and returns the
// number of bytes freed. With dryRun nothing is removed and the return
// value is what would have been freed. Symlinks are removed, never
// followed.
func (d *Deleter) SafeDelete(path string, dryRun bool) (int64, error) {
	if err := d.Check(path); err != nil {
		return 0, err
	}
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}

	freed := info.Size()
	if info.IsDir() {
		freed = treeSize(path)
	}
	if dryRun {
		return freed, nil
	}

	if info.IsDir() {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		return 0, fmt.Errorf("remove %s: %w", path, err)
	}
	return freed, nil
}

// Remove deletes path. It satisfies the gate's Remover.
func (d *Deleter) Remove(path string, _ bool) error {
	_, err := d.SafeDelete(path, false)
	return err
}

// treeSize counts every regular file, hidden ones included, since all of
// them go away with the directory.
func treeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if e.Type().IsRegular() {
			if info, err := e.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
