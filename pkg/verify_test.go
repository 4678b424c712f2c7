package dupeprune

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

// fakeFingerprintGroup builds a group whose members share a made-up
// fingerprint, simulating a collision when contents differ
func fakeFingerprintGroup(t *testing.T, dir string, contents map[string]string) FingerprintGroup {
	t.Helper()
	bucket := makeBucket(t, dir, contents)
	return FingerprintGroup{Fingerprint: "collision", Size: bucket.Size, Records: bucket.Records}
}

func groupNames(dir string, group DuplicateGroup) string {
	var names []string
	for _, r := range group.Records {
		rel, _ := filepath.Rel(dir, r.Path)
		names = append(names, rel)
	}
	return strings.Join(names, ",")
}

func TestVerifyIdenticalGroup(t *testing.T) {
	dir := t.TempDir()
	fg := fakeFingerprintGroup(t, dir, map[string]string{"a": "same!", "b": "same!", "c": "same!"})

	groups, skipped, err := newVerifier(newFilePool(2, nil), 2).Verify(context.Background(), fg)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("Expected no skipped files, got %+v", skipped)
	}
	if len(groups) != 1 || groupNames(dir, groups[0]) != "a,b,c" {
		t.Fatalf("Expected one group a,b,c, got %+v", groups)
	}
	if groups[0].Fingerprint != "collision" || groups[0].Size != 5 {
		t.Errorf("Group should keep fingerprint and size, got %+v", groups[0])
	}
}

func TestVerifySplitsCollision(t *testing.T) {
	captureLogs(t, 0, "")
	dir := t.TempDir()
	fg := fakeFingerprintGroup(t, dir, map[string]string{
		"a": "aaaaa",
		"b": "bbbbb",
		"c": "aaaaa",
		"d": "bbbbb",
		"e": "eeeee",
	})

	groups, skipped, err := newVerifier(newFilePool(4, nil), 0).Verify(context.Background(), fg)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(skipped) != 0 {
		t.Errorf("Expected no skipped files, got %+v", skipped)
	}
	if len(groups) != 2 {
		t.Fatalf("Expected the collision to split into 2 groups, got %d", len(groups))
	}
	if got := groupNames(dir, groups[0]); got != "a,c" {
		t.Errorf("First group = %s, expected a,c", got)
	}
	if got := groupNames(dir, groups[1]); got != "b,d" {
		t.Errorf("Second group = %s, expected b,d", got)
	}
}

func TestVerifyAllDifferent(t *testing.T) {
	captureLogs(t, 0, "")
	dir := t.TempDir()
	fg := fakeFingerprintGroup(t, dir, map[string]string{"a": "one", "b": "two"})

	groups, _, err := newVerifier(newFilePool(2, nil), 0).Verify(context.Background(), fg)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Files with different content must not be grouped, got %+v", groups)
	}
}

func TestVerifyReadFailures(t *testing.T) {
	captureLogs(t, 0, "")

	testCases := []struct {
		name     string
		failing  string
		expected string
	}{
		{"representative", "a", "b,c"},
		{"candidate", "b", "a,c"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			fg := fakeFingerprintGroup(t, dir, map[string]string{"a": "same", "b": "same", "c": "same"})
			failing := filepath.Join(dir, tc.failing)

			verifier := newVerifier(newFilePool(2, failingOpener(failing)), 0)
			groups, skipped, err := verifier.Verify(context.Background(), fg)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if len(skipped) != 1 || skipped[0].Path != failing || skipped[0].Stage != StageVerify {
				t.Errorf("Expected %s skipped at verify stage, got %+v", failing, skipped)
			}
			if len(groups) != 1 || groupNames(dir, groups[0]) != tc.expected {
				t.Errorf("Expected group %s, got %+v", tc.expected, groups)
			}
		})
	}
}

func TestVerifyRepresentativeFailsAfterCandidateSkipped(t *testing.T) {
	captureLogs(t, 0, "")
	dir := t.TempDir()
	fg := fakeFingerprintGroup(t, dir, map[string]string{"a": "same", "b": "same", "c": "same", "d": "same"})
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")

	// b never opens; a opens once and then starts failing
	opensOfA := 0
	opener := func(path string) (io.ReadCloser, error) {
		if path == a {
			opensOfA++
		}
		if path == b || (path == a && opensOfA > 1) {
			return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}
		}
		return os.Open(path)
	}

	verifier := newVerifier(newFilePool(2, opener), 0)
	groups, skipped, err := verifier.Verify(context.Background(), fg)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	var skippedPaths []string
	for _, s := range skipped {
		skippedPaths = append(skippedPaths, s.Path)
	}
	if !slices.Equal(skippedPaths, []string{b, a}) {
		t.Errorf("Expected b then a skipped once each, got %v", skippedPaths)
	}
	if len(groups) != 1 || groupNames(dir, groups[0]) != "c,d" {
		t.Errorf("Expected group c,d, got %+v", groups)
	}
}

func TestCompareReaders(t *testing.T) {
	testCases := []struct {
		a, b  string
		equal bool
	}{
		{"", "", true},
		{"abc", "abc", true},
		{"abcdefgh", "abcdefgh", true},
		{"abcdefgh", "abcdefgX", false},
		{"abc", "abcd", false},
		{"abcd", "abc", false},
	}

	for _, tc := range testCases {
		equal, err := compareReaders(context.Background(), strings.NewReader(tc.a), strings.NewReader(tc.b), "a", "b", 3)
		if err != nil {
			t.Errorf("compareReaders(%q, %q) failed: %v", tc.a, tc.b, err)
			continue
		}
		if equal != tc.equal {
			t.Errorf("compareReaders(%q, %q) = %v, expected %v", tc.a, tc.b, equal, tc.equal)
		}
	}
}
