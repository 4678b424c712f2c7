package dupeprune

import (
	"cmp"
	"context"
	"iter"
	"slices"

	"golang.org/x/sync/errgroup"
)

// FinderOptions configures duplicate detection
type FinderOptions struct {
	Algorithm  *HashAlgorithm // nil selects DefaultHashAlgorithm
	Workers    int            // bound on concurrently open files
	BufferSize int            // read buffer for hashing and comparison
	Opener     Opener         // nil opens files with os.Open
}

// Detection is the output of the detection pipeline
type Detection struct {
	Groups          []DuplicateGroup
	Skipped         []Skipped
	FilesConsidered int // files in size buckets with two or more members
}

// Finder runs size bucketing, fingerprint grouping and verification
type Finder struct {
	grouper  *HashGrouper
	verifier *Verifier
	workers  int
}

// NewFinder creates a finder
func NewFinder(opts FinderOptions) (*Finder, error) {
	algorithm := opts.Algorithm
	if algorithm == nil {
		var err error
		if algorithm, err = GetHashAlgorithm(DefaultHashAlgorithm); err != nil {
			return nil, err
		}
	}

	workers := max(1, opts.Workers)
	pool := newFilePool(workers, opts.Opener)
	return &Finder{
		grouper:  newHashGrouper(algorithm, opts.BufferSize, pool),
		verifier: newVerifier(pool, opts.BufferSize),
		workers:  workers,
	}, nil
}

type bucketResult struct {
	groups  []DuplicateGroup
	skipped []Skipped
}

// Find turns a sequence of records into verified duplicate groups. Buckets
// are processed concurrently; results are merged by value so the output is
// the same for the same filesystem regardless of scheduling.
func (f *Finder) Find(ctx context.Context, records iter.Seq[FileRecord]) (*Detection, error) {
	defer VerboseEnter()()

	buckets := BucketBySize(records)
	detection := &Detection{}
	for _, b := range buckets {
		detection.FilesConsidered += len(b.Records)
	}
	VerboseLog(1, "Hashing %d files in %d size groups", detection.FilesConsidered, len(buckets))

	results := make([]bucketResult, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, bucket := range buckets {
		g.Go(func() error {
			VerboseLog(2, "Finding duplicates in group of %d files of size %d", len(bucket.Records), bucket.Size)

			groups, skipped, err := f.grouper.GroupBucket(gctx, bucket)
			if err != nil {
				return err
			}
			results[i].skipped = skipped

			for _, fg := range groups {
				verified, verifySkipped, err := f.verifier.Verify(gctx, fg)
				if err != nil {
					return err
				}
				results[i].groups = append(results[i].groups, verified...)
				results[i].skipped = append(results[i].skipped, verifySkipped...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		detection.Groups = append(detection.Groups, r.groups...)
		detection.Skipped = append(detection.Skipped, r.skipped...)
	}
	sortGroups(detection.Groups)
	sortSkipped(detection.Skipped)

	VerboseLog(1, "Found %d duplicate groups, %d files skipped", len(detection.Groups), len(detection.Skipped))
	return detection, nil
}

// sortGroups orders groups largest size first, then by first member path
func sortGroups(groups []DuplicateGroup) {
	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Records[0].Path, b.Records[0].Path)
	})
}
