package dupeprune

import "errors"

var (
	// ErrRootUnreadable is returned when a required root directory is missing,
	// is not a directory, or cannot be listed. It aborts the run before any
	// file is hashed or deleted.
	ErrRootUnreadable = errors.New("root directory missing or unreadable")

	// ErrSurvivorChanged marks victims left in place because the survivor
	// vanished or changed size after planning.
	ErrSurvivorChanged = errors.New("survivor missing or changed since planning")

	// ErrContentChanged marks a victim whose size changed after it was hashed.
	ErrContentChanged = errors.New("file changed since it was hashed")

	// ErrReferenceVictim is the executor's refusal to delete a reference file.
	ErrReferenceVictim = errors.New("refusing to delete a file under a reference root")

	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
)

// ErrSameFile marks a victim that resolves to the same file as its survivor,
// e.g. the same directory reached through two mount points
var ErrSameFile = errors.New("victim is the same file as the survivor")
