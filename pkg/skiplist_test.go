package dupeprune

import (
	"slices"
	"testing"
)

func collectRecords(index *recordIndex) []FileRecord {
	var records []FileRecord
	for r := range index.All() {
		records = append(records, r)
	}
	return records
}

func TestRecordIndexOrderAndDeduplication(t *testing.T) {
	index := newRecordIndex(16)

	for _, path := range []string{"/b", "/c", "/a"} {
		if !index.Add(FileRecord{Path: path, Size: 1, Kind: SearchRoot, Root: "/"}) {
			t.Errorf("Add(%s) should change the index", path)
		}
	}
	if index.Add(FileRecord{Path: "/a", Size: 1, Kind: SearchRoot, Root: "/"}) {
		t.Error("Adding a duplicate search record should not change the index")
	}

	if index.Length() != 3 {
		t.Fatalf("Expected 3 records, got %d", index.Length())
	}

	var paths []string
	for _, r := range collectRecords(index) {
		paths = append(paths, r.Path)
	}
	if !slices.Equal(paths, []string{"/a", "/b", "/c"}) {
		t.Errorf("Records not in path order: %v", paths)
	}
}

func TestRecordIndexReferencePromotion(t *testing.T) {
	index := newRecordIndex(0)

	index.Add(FileRecord{Path: "/data/x", Size: 5, Kind: SearchRoot, Root: "/data"})
	if !index.Add(FileRecord{Path: "/data/x", Size: 5, Kind: ReferenceRoot, Root: "/data/ref"}) {
		t.Error("A reference record should promote an existing search record")
	}
	if index.Add(FileRecord{Path: "/data/x", Size: 5, Kind: SearchRoot, Root: "/data"}) {
		t.Error("A search record should not demote a reference record")
	}

	records := collectRecords(index)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !records[0].IsReference() || records[0].Root != "/data/ref" {
		t.Errorf("Expected promoted reference record, got %+v", records[0])
	}

	search, reference := index.Stats()
	if search != 0 || reference != 1 {
		t.Errorf("Stats() = (%d, %d), expected (0, 1)", search, reference)
	}
}

func TestRecordIndexAllStopsEarly(t *testing.T) {
	index := newRecordIndex(16)
	for _, path := range []string{"/1", "/2", "/3"} {
		index.Add(FileRecord{Path: path, Kind: SearchRoot})
	}

	count := 0
	for range index.All() {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Expected iteration to stop after 1 record, got %d", count)
	}
}
