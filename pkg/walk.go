package dupeprune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WalkOptions configures traversal filtering
type WalkOptions struct {
	Ignore    *IgnoreManager
	MinSize   int64 // files smaller than this are not recorded
	SkipEmpty bool  // do not record zero-byte files
}

// Walker turns search and reference roots into file records
type Walker struct {
	opts WalkOptions
}

// NewWalker creates a walker
func NewWalker(opts WalkOptions) *Walker {
	return &Walker{opts: opts}
}

// Inventory is the result of a walk: every regular file found, at most once
// per path, plus the directories and entries that could not be read.
type Inventory struct {
	index   *recordIndex
	Skipped []Skipped
}

// Records yields the inventory in path order. It may be iterated repeatedly.
func (inv *Inventory) Records() iter.Seq[FileRecord] {
	return inv.index.All()
}

// Len returns the number of records
func (inv *Inventory) Len() int {
	return inv.index.Length()
}

// Stats returns how many records came from search and reference roots
func (inv *Inventory) Stats() (search, reference int) {
	return inv.index.Stats()
}

// ResolveRoots turns the given directories into absolute paths with symlinks
// resolved, and checks each one can be listed. Any failure wraps
// ErrRootUnreadable.
func ResolveRoots(paths []string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		absPath, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, p, err)
		}
		absPath, err = filepath.EvalSymlinks(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, p, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, p, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s: not a directory", ErrRootUnreadable, p)
		}

		dir, err := os.Open(absPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, p, err)
		}
		_, err = dir.Readdirnames(1)
		dir.Close()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, p, err)
		}

		resolved = append(resolved, absPath)
	}
	return resolved, nil
}

// Walk traverses every root and collects regular files. Reference roots are
// walked first; a file reachable from both kinds of root is recorded as a
// reference file.
func (w *Walker) Walk(ctx context.Context, searchRoots, referenceRoots []string) (*Inventory, error) {
	defer VerboseEnter()()

	search, err := ResolveRoots(searchRoots)
	if err != nil {
		return nil, err
	}
	reference, err := ResolveRoots(referenceRoots)
	if err != nil {
		return nil, err
	}

	if patterns := w.opts.Ignore.Patterns(); len(patterns) > 0 {
		VerboseLog(2, "Excluding paths matching %s", strings.Join(patterns, ", "))
	}

	inv := &Inventory{index: newRecordIndex(16)}

	for _, root := range deduplicatePaths(reference) {
		if err := w.walkRoot(ctx, root, ReferenceRoot, inv); err != nil {
			return nil, err
		}
	}
	for _, root := range deduplicatePaths(search) {
		if err := w.walkRoot(ctx, root, SearchRoot, inv); err != nil {
			return nil, err
		}
	}

	sortSkipped(inv.Skipped)
	searchCount, referenceCount := inv.Stats()
	VerboseLog(1, "Collected %d files (%d search, %d reference), %d entries skipped",
		inv.Len(), searchCount, referenceCount, len(inv.Skipped))
	return inv, nil
}

// walkRoot walks one root breadth-first. Unreadable directories and entries
// are recorded as skipped and the walk carries on.
func (w *Walker) walkRoot(ctx context.Context, root string, kind RootKind, inv *Inventory) error {
	DebugLog(DebugWalk, "walking %s root %s", kind, root)
	dirQueue := []string{root}

	for len(dirQueue) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("walk interrupted: %w", err)
		}

		currentDir := dirQueue[0]
		dirQueue = dirQueue[1:]

		entries, err := os.ReadDir(currentDir)
		if err != nil {
			inv.Skipped = append(inv.Skipped, newSkipped(currentDir, StageWalk, err))
			Warnf("cannot read directory %s: %v", currentDir, err)
			// ReadDir may return the entries it managed to read
			if len(entries) == 0 {
				continue
			}
		}

		for _, entry := range entries {
			fullPath := filepath.Join(currentDir, entry.Name())
			relPath, err := filepath.Rel(root, fullPath)
			if err != nil {
				continue
			}

			// Symlinks are never followed or recorded
			if entry.Type()&fs.ModeSymlink != 0 {
				DebugLog(DebugWalk, "skipping symlink %s", fullPath)
				continue
			}

			if entry.IsDir() {
				if w.opts.Ignore.ShouldIgnore(relPath + "/") {
					DebugLog(DebugWalk, "ignoring directory %s", fullPath)
					continue
				}
				dirQueue = append(dirQueue, fullPath)
				continue
			}

			if !entry.Type().IsRegular() {
				continue
			}
			if w.opts.Ignore.ShouldIgnore(relPath) {
				DebugLog(DebugWalk, "ignoring file %s", fullPath)
				continue
			}

			info, err := entry.Info()
			if err != nil {
				inv.Skipped = append(inv.Skipped, newSkipped(fullPath, StageWalk, err))
				continue
			}

			size := info.Size()
			if size == 0 && w.opts.SkipEmpty {
				continue
			}
			if size < w.opts.MinSize {
				continue
			}

			VerboseLog(2, "%s - %d", fullPath, size)
			inv.index.Add(FileRecord{
				Path:    fullPath,
				Size:    size,
				Kind:    kind,
				Root:    root,
				ModTime: info.ModTime(),
			})
		}
	}

	return nil
}

// deduplicatePaths sorts paths and removes any that are subdirectories of others
// Example: ["/home/user/docs", "/home/user/docs/old", "/home/user/photos"]
//
//	-> ["/home/user/docs", "/home/user/photos"]
func deduplicatePaths(paths []string) []string {
	if len(paths) <= 1 {
		return paths
	}

	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var deduplicated []string
	for _, path := range sorted {
		redundant := false
		for _, kept := range deduplicated {
			if path == kept || isPathUnder(path, kept) {
				redundant = true
				break
			}
		}
		if !redundant {
			deduplicated = append(deduplicated, path)
		}
	}
	return deduplicated
}

// isPathUnder checks if childPath is strictly under parentPath
func isPathUnder(childPath, parentPath string) bool {
	childPath = filepath.Clean(childPath)
	parentPath = filepath.Clean(parentPath)

	if childPath == parentPath {
		return false
	}

	parentWithSep := parentPath
	if !strings.HasSuffix(parentWithSep, string(filepath.Separator)) {
		parentWithSep += string(filepath.Separator)
	}
	return strings.HasPrefix(childPath, parentWithSep)
}
