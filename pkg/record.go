package dupeprune

import (
	"cmp"
	"slices"
	"time"
)

// RootKind says whether a file was found under a search or a reference root
type RootKind string

const (
	SearchRoot    RootKind = "search"
	ReferenceRoot RootKind = "reference"
)

// FileRecord describes one regular file yielded by traversal. Records are
// treated as immutable once created.
type FileRecord struct {
	Path    string    `json:"path" yaml:"path"`
	Size    int64     `json:"size" yaml:"size"`
	Kind    RootKind  `json:"root_kind" yaml:"root_kind"`
	Root    string    `json:"root" yaml:"root"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// IsReference reports whether the record lives under a reference root
func (r FileRecord) IsReference() bool {
	return r.Kind == ReferenceRoot
}

// Skipped describes a file or directory that was left out of the run
type Skipped struct {
	Path   string `json:"path" yaml:"path"`
	Stage  string `json:"stage" yaml:"stage"`
	Reason string `json:"reason" yaml:"reason"`
}

func newSkipped(path, stage string, err error) Skipped {
	return Skipped{Path: path, Stage: stage, Reason: err.Error()}
}

// sortRecords orders records by path, the tie-break every stage relies on
func sortRecords(records []FileRecord) {
	slices.SortFunc(records, func(a, b FileRecord) int {
		return cmp.Compare(a.Path, b.Path)
	})
}

func sortSkipped(skipped []Skipped) {
	slices.SortFunc(skipped, func(a, b Skipped) int {
		if c := cmp.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return cmp.Compare(a.Stage, b.Stage)
	})
}
