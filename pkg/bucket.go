package dupeprune

import (
	"cmp"
	"iter"
	"slices"
)

// SizeBucket holds records that share an exact byte length
type SizeBucket struct {
	Size    int64
	Records []FileRecord
}

// BucketBySize groups records by size and drops buckets with a single member,
// which cannot contain a duplicate. Buckets come back largest size first with
// members in path order, independent of the order records were yielded in.
func BucketBySize(records iter.Seq[FileRecord]) []SizeBucket {
	bySize := make(map[int64][]FileRecord)
	for record := range records {
		bySize[record.Size] = append(bySize[record.Size], record)
	}

	buckets := make([]SizeBucket, 0, len(bySize))
	for size, members := range bySize {
		if len(members) < 2 {
			continue
		}
		sortRecords(members)
		buckets = append(buckets, SizeBucket{Size: size, Records: members})
	}

	slices.SortFunc(buckets, func(a, b SizeBucket) int {
		return cmp.Compare(b.Size, a.Size)
	})

	if IsDebugEnabled(DebugHash) {
		for _, b := range buckets {
			DebugLog(DebugHash, "group of %d files of size %d", len(b.Records), b.Size)
		}
	}
	return buckets
}
