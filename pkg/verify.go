package dupeprune

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
)

// DuplicateGroup is a set of two or more files verified to have identical
// size and content
type DuplicateGroup struct {
	Fingerprint string       `json:"fingerprint" yaml:"fingerprint"`
	Size        int64        `json:"size" yaml:"size"`
	Records     []FileRecord `json:"files" yaml:"files"`
}

// Verifier confirms fingerprint groups by direct byte comparison
type Verifier struct {
	pool       *filePool
	bufferSize int
}

func newVerifier(pool *filePool, bufferSize int) *Verifier {
	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}
	return &Verifier{pool: pool, bufferSize: bufferSize}
}

// readFailure identifies which side of a comparison could not be read
type readFailure struct {
	path string
	err  error
}

func (rf *readFailure) Error() string { return fmt.Sprintf("%s: %v", rf.path, rf.err) }
func (rf *readFailure) Unwrap() error { return rf.err }

// Verify compares every member of the group against a representative. Members
// that differ are partitioned again by content, so a fingerprint collision
// yields separate groups instead of a false duplicate. Files that cannot be
// read are returned as skipped.
func (v *Verifier) Verify(ctx context.Context, group FingerprintGroup) ([]DuplicateGroup, []Skipped, error) {
	var verified []DuplicateGroup
	var skipped []Skipped
	unreadable := make(map[string]bool)

	remaining := group.Records
	for len(remaining) >= 2 {
		representative := remaining[0]
		members := []FileRecord{representative}
		var differing []FileRecord
		representativeFailed := false

		for i, candidate := range remaining[1:] {
			equal, err := v.compare(ctx, representative.Path, candidate.Path)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, fmt.Errorf("verification interrupted: %w", ctx.Err())
				}
				var rf *readFailure
				if errors.As(err, &rf) && rf.path == representative.Path {
					Warnf("skipping %s: %v", representative.Path, rf.err)
					skipped = append(skipped, newSkipped(representative.Path, StageVerify, rf.err))
					// Start over with the next readable member as representative
					remaining = slices.DeleteFunc(slices.Clone(remaining[1:]), func(r FileRecord) bool {
						return unreadable[r.Path]
					})
					representativeFailed = true
					break
				}
				Warnf("skipping %s: %v", candidate.Path, err)
				skipped = append(skipped, newSkipped(candidate.Path, StageVerify, unwrapReadFailure(err)))
				unreadable[candidate.Path] = true
				continue
			}

			if equal {
				members = append(members, candidate)
			} else {
				DebugLog(DebugVerify, "fingerprint collision: %s differs from %s", candidate.Path, representative.Path)
				differing = append(differing, remaining[1+i])
			}
		}

		if representativeFailed {
			continue
		}

		if len(members) >= 2 {
			verified = append(verified, DuplicateGroup{
				Fingerprint: group.Fingerprint,
				Size:        group.Size,
				Records:     members,
			})
		}
		if len(differing) > 0 {
			Warnf("fingerprint %s shared by files with different content; splitting group", group.Fingerprint)
		}
		remaining = differing
	}

	return verified, skipped, nil
}

func unwrapReadFailure(err error) error {
	var rf *readFailure
	if errors.As(err, &rf) {
		return rf.err
	}
	return err
}

// compare reports whether two files have identical content
func (v *Verifier) compare(ctx context.Context, pathA, pathB string) (bool, error) {
	release, err := v.pool.acquire(ctx, 2)
	if err != nil {
		return false, err
	}
	defer release()

	fileA, err := v.pool.opener(pathA)
	if err != nil {
		return false, &readFailure{path: pathA, err: err}
	}
	defer fileA.Close()

	fileB, err := v.pool.opener(pathB)
	if err != nil {
		return false, &readFailure{path: pathB, err: err}
	}
	defer fileB.Close()

	return compareReaders(ctx, fileA, fileB, pathA, pathB, v.bufferSize)
}

// compareReaders reads both streams in lockstep and stops at the first
// difference
func compareReaders(ctx context.Context, a, b io.Reader, pathA, pathB string, bufferSize int) (bool, error) {
	bufA := make([]byte, bufferSize)
	bufB := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		nA, errA := io.ReadFull(a, bufA)
		if errA != nil && errA != io.EOF && errA != io.ErrUnexpectedEOF {
			return false, &readFailure{path: pathA, err: errA}
		}
		nB, errB := io.ReadFull(b, bufB)
		if errB != nil && errB != io.EOF && errB != io.ErrUnexpectedEOF {
			return false, &readFailure{path: pathB, err: errB}
		}

		if nA != nB || !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}

		// A short read means both streams ended at the same offset
		if errA != nil || errB != nil {
			return errA != nil && errB != nil, nil
		}
	}
}
