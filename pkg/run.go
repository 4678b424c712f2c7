package dupeprune

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunConfig holds everything needed for one end-to-end run
type RunConfig struct {
	SearchRoots    []string
	ReferenceRoots []string
	Mode           Mode

	Algorithm   string
	HashWorkers int
	HashBuffer  int

	DeleteWorkers int
	DeleteRate    float64
	JournalPath   string

	Walk WalkOptions

	// Test hooks; nil uses the filesystem
	Opener  Opener
	Remover Remover
}

// Report is the structured result of a run, handed to a renderer
type Report struct {
	RunID          string         `json:"run_id" yaml:"run_id"`
	Mode           Mode           `json:"mode" yaml:"mode"`
	Algorithm      string         `json:"algorithm" yaml:"algorithm"`
	StartedAt      time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time      `json:"finished_at" yaml:"finished_at"`
	SearchRoots    []string       `json:"search_roots" yaml:"search_roots"`
	ReferenceRoots []string       `json:"reference_roots" yaml:"reference_roots"`
	FilesScanned   int            `json:"files_scanned" yaml:"files_scanned"`
	Groups         []DeletionPlan `json:"groups" yaml:"groups"`
	Skipped        []Skipped      `json:"skipped" yaml:"skipped"`
	Summary        Summary        `json:"summary" yaml:"summary"`
	JournalPath    string         `json:"journal,omitempty" yaml:"journal,omitempty"`
}

// Run walks the roots, detects duplicates, plans and executes deletions.
// Root failures (ErrRootUnreadable) and cancellation before execution return
// an error with no report and no filesystem changes. Cancellation during
// live deletion returns the partial report together with the error.
func Run(ctx context.Context, cfg RunConfig) (*Report, error) {
	defer VerboseEnter()()

	if len(cfg.SearchRoots) == 0 {
		return nil, errors.New("at least one search directory is required")
	}

	algorithmName := cfg.Algorithm
	if algorithmName == "" {
		algorithmName = DefaultHashAlgorithm
	}
	algorithm, err := GetHashAlgorithm(algorithmName)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     uuid.NewString(),
		Mode:      cfg.Mode,
		Algorithm: algorithm.Name,
		StartedAt: time.Now(),
	}
	if report.Mode == "" {
		report.Mode = DryRun
	}

	inventory, err := NewWalker(cfg.Walk).Walk(ctx, cfg.SearchRoots, cfg.ReferenceRoots)
	if err != nil {
		return nil, err
	}
	report.SearchRoots, _ = ResolveRoots(cfg.SearchRoots)
	report.ReferenceRoots, _ = ResolveRoots(cfg.ReferenceRoots)
	report.FilesScanned = inventory.Len()

	finder, err := NewFinder(FinderOptions{
		Algorithm:  algorithm,
		Workers:    ClampWorkers(cfg.HashWorkers),
		BufferSize: cfg.HashBuffer,
		Opener:     cfg.Opener,
	})
	if err != nil {
		return nil, err
	}

	detection, err := finder.Find(ctx, inventory.Records())
	if err != nil {
		return nil, fmt.Errorf("duplicate detection failed: %w", err)
	}

	report.Groups = PlanAll(detection.Groups)
	report.Skipped = append(append([]Skipped{}, inventory.Skipped...), detection.Skipped...)
	sortSkipped(report.Skipped)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted before execution: %w", err)
	}

	var journal *Journal
	if report.Mode == Live && cfg.JournalPath != "" {
		if journal, err = OpenJournal(cfg.JournalPath); err != nil {
			return nil, err
		}
		defer journal.Close()
		report.JournalPath = journal.Path()
	}

	executor := NewExecutor(ExecutorOptions{
		Mode:       report.Mode,
		Workers:    cfg.DeleteWorkers,
		DeleteRate: cfg.DeleteRate,
		Journal:    journal,
		Remover:    cfg.Remover,
	})
	report.Summary, err = executor.Execute(ctx, report.Groups)
	report.FinishedAt = time.Now()
	return report, err
}
