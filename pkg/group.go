package dupeprune

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Opener opens a file for reading. Tests substitute it to inject failures.
type Opener func(path string) (io.ReadCloser, error)

func openFile(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// FingerprintGroup holds the records of one size bucket that share a
// fingerprint. Membership is not yet verified byte for byte.
type FingerprintGroup struct {
	Fingerprint string
	Size        int64
	Records     []FileRecord
}

// filePool bounds the number of files open at once across hashing and
// verification
type filePool struct {
	sem    *semaphore.Weighted
	limit  int
	opener Opener
}

func newFilePool(limit int, opener Opener) *filePool {
	if limit < 1 {
		limit = 1
	}
	if opener == nil {
		opener = openFile
	}
	return &filePool{
		sem:    semaphore.NewWeighted(int64(limit)),
		limit:  limit,
		opener: opener,
	}
}

// acquire reserves n slots, clamped to the pool size
func (p *filePool) acquire(ctx context.Context, n int) (func(), error) {
	n = min(n, p.limit)
	if err := p.sem.Acquire(ctx, int64(n)); err != nil {
		return nil, err
	}
	return func() { p.sem.Release(int64(n)) }, nil
}

// HashGrouper computes content fingerprints and partitions size buckets
type HashGrouper struct {
	algorithm  *HashAlgorithm
	bufferSize int
	pool       *filePool
}

// newHashGrouper creates a grouper that shares the given pool
func newHashGrouper(algorithm *HashAlgorithm, bufferSize int, pool *filePool) *HashGrouper {
	return &HashGrouper{algorithm: algorithm, bufferSize: bufferSize, pool: pool}
}

// hashResult is one worker's output, stored by input index
type hashResult struct {
	fingerprint string
	err         error
}

// GroupBucket fingerprints every record in the bucket and returns the groups
// with two or more members, ordered by fingerprint. Records that cannot be
// read are returned as skipped. Only cancellation is returned as an error.
func (hg *HashGrouper) GroupBucket(ctx context.Context, bucket SizeBucket) ([]FingerprintGroup, []Skipped, error) {
	results := make([]hashResult, len(bucket.Records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hg.pool.limit)
	for i := range bucket.Records {
		g.Go(func() error {
			release, err := hg.pool.acquire(gctx, 1)
			if err != nil {
				return err
			}
			defer release()

			path := bucket.Records[i].Path
			DebugLog(DebugHash, "hashing %s", path)
			results[i].fingerprint, results[i].err = hg.hashOne(gctx, path)
			if results[i].err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("hashing size group %d: %w", bucket.Size, err)
	}

	// Reduce by value; worker completion order never reaches the output
	var skipped []Skipped
	byFingerprint := make(map[string][]FileRecord)
	for i, record := range bucket.Records {
		if results[i].err != nil {
			Warnf("skipping %s: %v", record.Path, results[i].err)
			skipped = append(skipped, newSkipped(record.Path, StageHash, results[i].err))
			continue
		}
		byFingerprint[results[i].fingerprint] = append(byFingerprint[results[i].fingerprint], record)
	}

	var groups []FingerprintGroup
	for fingerprint, members := range byFingerprint {
		if len(members) < 2 {
			continue
		}
		sortRecords(members)
		groups = append(groups, FingerprintGroup{
			Fingerprint: fingerprint,
			Size:        bucket.Size,
			Records:     members,
		})
	}
	slices.SortFunc(groups, func(a, b FingerprintGroup) int {
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})

	DebugLog(DebugHash, "size %d: %d files, %d fingerprint groups, %d skipped",
		bucket.Size, len(bucket.Records), len(groups), len(skipped))
	return groups, skipped, nil
}

func (hg *HashGrouper) hashOne(ctx context.Context, path string) (string, error) {
	return hashFile(ctx, hg.pool.opener, path, hg.algorithm, hg.bufferSize)
}
