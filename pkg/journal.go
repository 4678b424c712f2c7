package dupeprune

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/vectorio"
)

// Linux UIO_MAXIOV; writev rejects longer vectors
const maxIovecs = 1024

// JournalEntry is one victim outcome written to the deletion journal
type JournalEntry struct {
	Time     time.Time
	Outcome  string // JournalDeleted or JournalFailed
	Size     int64
	Survivor string
	Victim   string
	Reason   string
}

// Line renders the entry as one tab-separated journal line. Paths and
// reasons are quoted so each entry stays on one line.
func (e JournalEntry) Line() string {
	return strings.Join([]string{
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Outcome,
		strconv.FormatInt(e.Size, 10),
		strconv.Quote(e.Survivor),
		strconv.Quote(e.Victim),
		strconv.Quote(e.Reason),
	}, "\t") + "\n"
}

// Journal is an append-only record of live deletions
type Journal struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// OpenJournal opens (or creates) the journal for appending
func OpenJournal(path string) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	return &Journal{path: path, file: file}, nil
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return j.path
}

// WriteEntries appends the entries with vectored writes and syncs the file,
// so a plan's outcomes are durable before the next plan starts
func (j *Journal) WriteEntries(entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	lines := make([][]byte, len(entries))
	iovecs := make([]syscall.Iovec, len(entries))
	total := 0
	for i, entry := range entries {
		lines[i] = []byte(entry.Line())
		iovecs[i] = syscall.Iovec{Base: &lines[i][0]}
		iovecs[i].SetLen(len(lines[i]))
		total += len(lines[i])
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	written := 0
	for offset := 0; offset < len(iovecs); offset += maxIovecs {
		end := min(offset+maxIovecs, len(iovecs))
		nw, err := vectorio.WritevRaw(uintptr(j.file.Fd()), iovecs[offset:end])
		if err != nil {
			return fmt.Errorf("failed to write journal entries: %w", err)
		}
		written += nw
	}
	if written != total {
		return fmt.Errorf("journal write incomplete: wrote %d bytes, expected %d", written, total)
	}

	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Close closes the journal file
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
