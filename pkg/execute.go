package dupeprune

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Mode selects whether the executor touches the filesystem
type Mode string

const (
	DryRun Mode = "dry-run"
	Live   Mode = "live"
)

// Remover deletes a file
type Remover interface {
	Remove(path string) error
}

type osRemover struct{}

func (osRemover) Remove(path string) error {
	return os.Remove(path)
}

// Failure records a victim that was not deleted
type Failure struct {
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
}

// Summary aggregates the outcome of executing a set of plans
type Summary struct {
	GroupsProcessed  int       `json:"groups_processed" yaml:"groups_processed"`
	FilesDeleted     int       `json:"files_deleted" yaml:"files_deleted"`
	BytesReclaimed   int64     `json:"bytes_reclaimed" yaml:"bytes_reclaimed"`
	BytesReclaimable int64     `json:"bytes_reclaimable" yaml:"bytes_reclaimable"`
	Failures         []Failure `json:"failures" yaml:"failures"`
}

// ExecutorOptions configures an Executor
type ExecutorOptions struct {
	Mode       Mode
	Workers    int     // plans deleted concurrently
	DeleteRate float64 // deletions per second, 0 for unlimited
	Journal    *Journal
	Remover    Remover
	Stat       func(path string) (os.FileInfo, error)
}

// Executor applies deletion plans
type Executor struct {
	mode    Mode
	workers int
	journal *Journal
	remover Remover
	stat    func(path string) (os.FileInfo, error)
	limiter *rate.Limiter
}

// NewExecutor creates an executor
func NewExecutor(opts ExecutorOptions) *Executor {
	e := &Executor{
		mode:    opts.Mode,
		workers: max(1, opts.Workers),
		journal: opts.Journal,
		remover: opts.Remover,
		stat:    opts.Stat,
	}
	if e.mode == "" {
		e.mode = DryRun
	}
	if e.remover == nil {
		e.remover = osRemover{}
	}
	if e.stat == nil {
		e.stat = os.Lstat
	}
	if opts.DeleteRate > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.DeleteRate), 1)
	}
	return e
}

// planOutcome is the result of executing one plan
type planOutcome struct {
	deleted  int
	bytes    int64
	failures []Failure
	journal  []JournalEntry
}

// Execute applies the plans. Dry-run only totals what could be reclaimed.
// Live deletes victims, recording each failure and carrying on. Plans run
// concurrently; victims within a plan are deleted in order. If ctx is
// cancelled, deletions already made stand, victims not yet attempted are
// reported as failures, and the context error is returned with the summary.
func (e *Executor) Execute(ctx context.Context, plans []DeletionPlan) (Summary, error) {
	defer VerboseEnter()()

	summary := Summary{GroupsProcessed: len(plans), Failures: []Failure{}}
	for _, plan := range plans {
		summary.BytesReclaimable += plan.ReclaimableBytes()
	}

	if e.mode != Live {
		VerboseLog(1, "Dry run: %d groups, %s reclaimable", len(plans), FormatSize(summary.BytesReclaimable))
		return summary, nil
	}

	var mu sync.Mutex
	var journalErr error

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for _, plan := range plans {
		g.Go(func() error {
			outcome := e.executePlan(ctx, plan)

			if e.journal != nil {
				if err := e.journal.WriteEntries(outcome.journal); err != nil {
					Warnf("%v", err)
					mu.Lock()
					journalErr = err
					mu.Unlock()
				}
			}

			mu.Lock()
			summary.FilesDeleted += outcome.deleted
			summary.BytesReclaimed += outcome.bytes
			summary.Failures = append(summary.Failures, outcome.failures...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	slices.SortFunc(summary.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Path, b.Path)
	})

	VerboseLog(1, "Deleted %d files, reclaimed %s, %d failures",
		summary.FilesDeleted, FormatSize(summary.BytesReclaimed), len(summary.Failures))

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("deletion interrupted: %w", err)
	}
	if journalErr != nil {
		return summary, journalErr
	}
	return summary, nil
}

type protectedFile struct {
	path string
	info os.FileInfo
}

// executePlan deletes the victims of one plan in order
func (e *Executor) executePlan(ctx context.Context, plan DeletionPlan) planOutcome {
	var out planOutcome
	size := plan.Group.Size

	fail := func(victim FileRecord, err error) {
		DebugLog(DebugExecute, "not deleting %s: %v", victim.Path, err)
		out.failures = append(out.failures, Failure{Path: victim.Path, Reason: err.Error()})
		out.journal = append(out.journal, JournalEntry{
			Time:     time.Now(),
			Outcome:  JournalFailed,
			Size:     size,
			Survivor: plan.Survivor.Path,
			Victim:   victim.Path,
			Reason:   err.Error(),
		})
	}

	if len(plan.Victims) == 0 {
		return out
	}

	survivorInfo, err := e.stat(plan.Survivor.Path)
	if err == nil && (!survivorInfo.Mode().IsRegular() || survivorInfo.Size() != size) {
		err = fmt.Errorf("%s: size %d, expected %d", plan.Survivor.Path, survivorInfo.Size(), size)
	}
	if err != nil {
		for _, victim := range plan.Victims {
			fail(victim, fmt.Errorf("%w: %v", ErrSurvivorChanged, err))
		}
		return out
	}

	// Reference files other than the survivor; a victim reaching one of them
	// through another path is refused
	var protected []protectedFile
	for _, record := range plan.Group.Records {
		if !record.IsReference() || record.Path == plan.Survivor.Path {
			continue
		}
		if info, err := e.stat(record.Path); err == nil {
			protected = append(protected, protectedFile{path: record.Path, info: info})
		}
	}

	for _, victim := range plan.Victims {
		if victim.IsReference() {
			fail(victim, ErrReferenceVictim)
			continue
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				fail(victim, fmt.Errorf("not attempted: %w", err))
				continue
			}
		}
		if err := ctx.Err(); err != nil {
			fail(victim, fmt.Errorf("not attempted: %w", err))
			continue
		}

		victimInfo, err := e.stat(victim.Path)
		if err != nil {
			fail(victim, err)
			continue
		}
		if victimInfo.Size() != size {
			fail(victim, fmt.Errorf("%w: size %d, expected %d", ErrContentChanged, victimInfo.Size(), size))
			continue
		}
		if os.SameFile(survivorInfo, victimInfo) {
			fail(victim, ErrSameFile)
			continue
		}
		if i := slices.IndexFunc(protected, func(p protectedFile) bool {
			return os.SameFile(p.info, victimInfo)
		}); i >= 0 {
			fail(victim, fmt.Errorf("%w: same file as %s", ErrReferenceVictim, protected[i].path))
			continue
		}

		if err := e.remover.Remove(victim.Path); err != nil {
			fail(victim, err)
			continue
		}

		VerboseLog(1, "Deleted %s (duplicate of %s)", victim.Path, plan.Survivor.Path)
		out.deleted++
		out.bytes += size
		out.journal = append(out.journal, JournalEntry{
			Time:     time.Now(),
			Outcome:  JournalDeleted,
			Size:     size,
			Survivor: plan.Survivor.Path,
			Victim:   victim.Path,
		})
	}

	return out
}
