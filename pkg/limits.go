package dupeprune

import "golang.org/x/sys/unix"

// openFileLimit returns the soft RLIMIT_NOFILE, or 0 when it is unknown or
// effectively unlimited
func openFileLimit() uint64 {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		return 0
	}
	if rl.Cur >= 1<<40 {
		return 0
	}
	return uint64(rl.Cur)
}

// ClampWorkers bounds a worker count to [1, MaxWorkers] and to a quarter of
// the open-file limit; each verification slot holds two files open.
func ClampWorkers(workers int) int {
	workers = max(1, min(workers, MaxWorkers))
	if limit := openFileLimit(); limit > 0 {
		if ceiling := int(limit / 4); ceiling >= 1 && workers > ceiling {
			VerboseLog(1, "Limiting workers to %d (open file limit %d)", ceiling, limit)
			workers = ceiling
		}
	}
	return workers
}
