package dupeprune

import (
	"iter"
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// recordIndex is the walker's ordered set of file records keyed by path.
// The skiplist context carries the record's root kind so that a path reached
// from both a search and a reference root can be promoted in place.
type recordIndex struct {
	skiplist *zcsl.ZeroCopySkiplist[FileRecord, string, RootKind]
}

// newRecordIndex creates an empty record index
func newRecordIndex(maxLevels int) *recordIndex {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getKeyFromItem := func(record *FileRecord) string {
		return record.Path
	}

	getItemSize := func(record *FileRecord) int {
		return len(record.Path)
	}

	skiplist := zcsl.MakeZeroCopySkiplist[FileRecord, string, RootKind](
		maxLevels,
		getKeyFromItem,
		getItemSize,
		strings.Compare,
	)

	return &recordIndex{skiplist: skiplist}
}

// Add inserts a record. If the path is already present the existing entry is
// kept, except that a reference record always wins over a search record.
// Returns true when the index changed.
func (ri *recordIndex) Add(record FileRecord) bool {
	if existing, kind := ri.skiplist.Find(record.Path); existing != nil {
		if kind == SearchRoot && record.Kind == ReferenceRoot {
			item := existing.Item()
			item.Kind = ReferenceRoot
			item.Root = record.Root
			return ri.skiplist.UpdateContext(record.Path, ReferenceRoot)
		}
		return false
	}

	return ri.skiplist.Insert(&record, record.Kind)
}

// Length returns the number of records in the index
func (ri *recordIndex) Length() int {
	return ri.skiplist.Length()
}

// All yields records in path order. The sequence can be replayed.
func (ri *recordIndex) All() iter.Seq[FileRecord] {
	return func(yield func(FileRecord) bool) {
		for current := ri.skiplist.First(); current != nil; current = current.Next() {
			record := *current.Item()
			record.Kind = current.Context()
			if !yield(record) {
				return
			}
		}
	}
}

// Stats returns how many records came from search and reference roots
func (ri *recordIndex) Stats() (search, reference int) {
	for current := ri.skiplist.First(); current != nil; current = current.Next() {
		if current.Context() == ReferenceRoot {
			reference++
		} else {
			search++
		}
	}
	return search, reference
}
