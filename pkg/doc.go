// Package dupeprune finds files with identical content under a set of search
// directories and deletes the redundant copies, keeping one survivor per
// group. Files under reference directories are never deleted and, when
// present in a group, make every search copy of that content redundant.
//
// # Pipeline
//
// A run walks the roots, buckets files by size, fingerprints each bucket and
// confirms every fingerprint group byte for byte before planning deletions:
//
//	report, err := dupeprune.Run(ctx, dupeprune.RunConfig{
//		SearchRoots:    []string{"/data/photos"},
//		ReferenceRoots: []string{"/backup/photos"},
//		Mode:           dupeprune.DryRun,
//	})
//	for _, plan := range report.Groups {
//		fmt.Printf("keep %s, remove %d\n", plan.Survivor.Path, len(plan.Victims))
//	}
//
// The stages are also usable on their own: Walker produces an Inventory,
// Finder turns records into verified DuplicateGroups, PlanGroup chooses the
// survivor and Executor carries the plan out.
//
// # Failure handling
//
// Only an unreadable root (ErrRootUnreadable) or cancellation stops a run.
// Files that cannot be read become Skipped entries and deletions that fail
// become Failures in the Summary; the remaining work continues.
//
// # Configuration
//
// Config loads the INI file, DUPEPRUNE_* environment variables are read by
// LoadEnvOverrides and both feed Config.RunConfig. Diagnostics are controlled
// with SetVerboseLevel and SetDebugFlags:
//
//	dupeprune.SetDebugFlags("hash,verify")
//	dupeprune.SetVerboseLevel(2)
package dupeprune
