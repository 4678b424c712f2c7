package dupeprune

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestJournalEntryLine(t *testing.T) {
	entry := JournalEntry{
		Time:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Outcome:  JournalDeleted,
		Size:     42,
		Survivor: "/keep/a",
		Victim:   "/drop/tab\there",
	}

	expected := "2024-03-01T12:00:00Z\tdeleted\t42\t\"/keep/a\"\t\"/drop/tab\\there\"\t\"\"\n"
	if got := entry.Line(); got != expected {
		t.Errorf("Line() = %q, expected %q", got, expected)
	}
}

func TestJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")

	for run := 0; run < 2; run++ {
		journal, err := OpenJournal(path)
		if err != nil {
			t.Fatalf("OpenJournal failed: %v", err)
		}
		if journal.Path() != path {
			t.Errorf("Path() = %s, expected %s", journal.Path(), path)
		}
		err = journal.WriteEntries([]JournalEntry{
			{Time: time.Now(), Outcome: JournalDeleted, Size: 1, Survivor: "/s", Victim: fmt.Sprintf("/v%d", run)},
		})
		if err != nil {
			t.Fatalf("WriteEntries failed: %v", err)
		}
		if err := journal.WriteEntries(nil); err != nil {
			t.Errorf("Writing no entries should be a no-op, got %v", err)
		}
		journal.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 journal lines across runs, got %d: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], `"/v0"`) || !strings.Contains(lines[1], `"/v1"`) {
		t.Errorf("Journal lines out of order: %q", lines)
	}
}

func TestJournalManyEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal")
	journal, err := OpenJournal(path)
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()

	// More entries than a single writev accepts
	entries := make([]JournalEntry, maxIovecs+10)
	for i := range entries {
		entries[i] = JournalEntry{Time: time.Now(), Outcome: JournalFailed, Victim: fmt.Sprintf("/v%d", i), Reason: "x"}
	}
	if err := journal.WriteEntries(entries); err != nil {
		t.Fatalf("WriteEntries failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), "\n"); got != len(entries) {
		t.Errorf("Expected %d lines, got %d", len(entries), got)
	}
}

func TestOpenJournalFailure(t *testing.T) {
	if _, err := OpenJournal(filepath.Join(t.TempDir(), "missing", "journal")); err == nil {
		t.Error("Expected error opening journal in a missing directory")
	}
}
