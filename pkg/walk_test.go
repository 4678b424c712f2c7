package dupeprune

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

// writeTestFile creates path and any missing parent directories
func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func inventoryPaths(inv *Inventory) []string {
	var paths []string
	for r := range inv.Records() {
		paths = append(paths, r.Path)
	}
	return paths
}

func TestResolveRoots(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	writeTestFile(t, file, "x")

	resolved, err := ResolveRoots([]string{dir + "/./"})
	if err != nil {
		t.Fatalf("ResolveRoots failed: %v", err)
	}
	if len(resolved) != 1 || resolved[0] != filepath.Clean(dir) {
		t.Errorf("ResolveRoots = %v, expected [%s]", resolved, dir)
	}

	empty := filepath.Join(dir, "empty")
	os.Mkdir(empty, 0755)
	if _, err := ResolveRoots([]string{empty}); err != nil {
		t.Errorf("An empty directory is a valid root, got %v", err)
	}

	for _, bad := range []string{filepath.Join(dir, "missing"), file} {
		if _, err := ResolveRoots([]string{bad}); !errors.Is(err, ErrRootUnreadable) {
			t.Errorf("ResolveRoots(%s) error = %v, expected ErrRootUnreadable", bad, err)
		}
	}
}

func TestResolveRootsFollowsSymlinks(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	resolved, err := ResolveRoots([]string{link, target})
	if err != nil {
		t.Fatalf("ResolveRoots failed: %v", err)
	}
	if !slices.Equal(resolved, []string{target, target}) {
		t.Errorf("ResolveRoots = %v, expected both roots to resolve to %s", resolved, target)
	}
}

func TestWalkCollectsRegularFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "hello")
	writeTestFile(t, filepath.Join(root, "sub", "b.txt"), "hello")
	writeTestFile(t, filepath.Join(root, "sub", "deeper", "c.txt"), "hi")
	writeTestFile(t, filepath.Join(root, "empty"), "")
	if err := os.Symlink(filepath.Join(root, "a.txt"), filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}

	inv, err := NewWalker(WalkOptions{}).Walk(context.Background(), []string{root}, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	expected := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "empty"),
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "deeper", "c.txt"),
	}
	if got := inventoryPaths(inv); !slices.Equal(got, expected) {
		t.Errorf("Walk records = %v, expected %v", got, expected)
	}
	for r := range inv.Records() {
		if r.Kind != SearchRoot || r.Root != root {
			t.Errorf("Unexpected kind/root for %s: %s %s", r.Path, r.Kind, r.Root)
		}
	}
}

func TestWalkFilters(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "big.bin"), "0123456789")
	writeTestFile(t, filepath.Join(root, "small.bin"), "01")
	writeTestFile(t, filepath.Join(root, "empty"), "")
	writeTestFile(t, filepath.Join(root, "scratch.tmp"), "0123456789")
	writeTestFile(t, filepath.Join(root, "cache", "big.bin"), "0123456789")

	ignore, err := NewIgnoreManager(`\.tmp$`, `^cache/$`)
	if err != nil {
		t.Fatal(err)
	}

	testCases := []struct {
		name     string
		opts     WalkOptions
		expected []string
	}{
		{"ignore patterns", WalkOptions{Ignore: ignore}, []string{"big.bin", "empty", "small.bin"}},
		{"min size", WalkOptions{Ignore: ignore, MinSize: 5}, []string{"big.bin"}},
		{"skip empty", WalkOptions{Ignore: ignore, SkipEmpty: true}, []string{"big.bin", "small.bin"}},
		{"no filters", WalkOptions{}, []string{"big.bin", "cache/big.bin", "empty", "scratch.tmp", "small.bin"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			inv, err := NewWalker(tc.opts).Walk(context.Background(), []string{root}, nil)
			if err != nil {
				t.Fatalf("Walk failed: %v", err)
			}
			var rel []string
			for _, p := range inventoryPaths(inv) {
				r, _ := filepath.Rel(root, p)
				rel = append(rel, filepath.ToSlash(r))
			}
			if !slices.Equal(rel, tc.expected) {
				t.Errorf("Walk records = %v, expected %v", rel, tc.expected)
			}
		})
	}
}

func TestWalkOverlappingRoots(t *testing.T) {
	base := t.TempDir()
	ref := filepath.Join(base, "ref")
	writeTestFile(t, filepath.Join(base, "top.txt"), "top")
	writeTestFile(t, filepath.Join(ref, "kept.txt"), "kept")

	// The search root contains the reference root and is listed twice
	inv, err := NewWalker(WalkOptions{}).Walk(context.Background(), []string{base, base, ref}, []string{ref})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if inv.Len() != 2 {
		t.Fatalf("Expected each path once, got %v", inventoryPaths(inv))
	}
	for r := range inv.Records() {
		wantRef := r.Path == filepath.Join(ref, "kept.txt")
		if r.IsReference() != wantRef {
			t.Errorf("%s: IsReference = %v, expected %v", r.Path, r.IsReference(), wantRef)
		}
	}

	search, reference := inv.Stats()
	if search != 1 || reference != 1 {
		t.Errorf("Stats() = (%d, %d), expected (1, 1)", search, reference)
	}
}

func TestWalkRootErrors(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	walker := NewWalker(WalkOptions{})

	if _, err := walker.Walk(context.Background(), []string{missing}, nil); !errors.Is(err, ErrRootUnreadable) {
		t.Errorf("Missing search root: expected ErrRootUnreadable, got %v", err)
	}
	if _, err := walker.Walk(context.Background(), []string{dir}, []string{missing}); !errors.Is(err, ErrRootUnreadable) {
		t.Errorf("Missing reference root: expected ErrRootUnreadable, got %v", err)
	}
}

func TestWalkUnreadableSubdirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	captureLogs(t, 0, "")

	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "ok.txt"), "ok")
	locked := filepath.Join(root, "locked")
	writeTestFile(t, filepath.Join(locked, "hidden.txt"), "hidden")
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	inv, err := NewWalker(WalkOptions{}).Walk(context.Background(), []string{root}, nil)
	if err != nil {
		t.Fatalf("An unreadable subdirectory should not fail the walk: %v", err)
	}
	if inv.Len() != 1 {
		t.Errorf("Expected only ok.txt, got %v", inventoryPaths(inv))
	}
	if len(inv.Skipped) != 1 || inv.Skipped[0].Path != locked || inv.Skipped[0].Stage != StageWalk {
		t.Errorf("Expected locked directory in Skipped, got %+v", inv.Skipped)
	}
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a"), "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewWalker(WalkOptions{}).Walk(ctx, []string{root}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestDeduplicatePaths(t *testing.T) {
	testCases := []struct {
		input    []string
		expected []string
	}{
		{[]string{"/a"}, []string{"/a"}},
		{[]string{"/home/user/docs", "/home/user/docs/old", "/home/user/photos"}, []string{"/home/user/docs", "/home/user/photos"}},
		{[]string{"/b", "/a", "/b"}, []string{"/a", "/b"}},
		{[]string{"/data/ab", "/data/a"}, []string{"/data/a", "/data/ab"}},
	}

	for _, tc := range testCases {
		if got := deduplicatePaths(tc.input); !slices.Equal(got, tc.expected) {
			t.Errorf("deduplicatePaths(%v) = %v, expected %v", tc.input, got, tc.expected)
		}
	}
}
