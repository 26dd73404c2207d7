// Package diff implements the Diff Engine (component L): it partitions two
// token sets, detects renames, classifies semver impact, summarizes the
// result, and recommends a version bump, per §4.11.
package diff

import "github.com/bylapidist/dtifx-sub001/internal/dtif"

// ChangeKind classifies how a pointer's entry differs between the previous
// and next token set.
type ChangeKind string

const (
	KindAdded     ChangeKind = "added"
	KindRemoved   ChangeKind = "removed"
	KindRenamed   ChangeKind = "renamed"
	KindModified  ChangeKind = "modified"
	KindUnchanged ChangeKind = "unchanged"
)

// Impact classifies a Change's semver effect.
type Impact string

const (
	ImpactBreaking    Impact = "breaking"
	ImpactNonBreaking Impact = "non-breaking"
)

// Bump is the recommended semver bump for a Result.
type Bump string

const (
	BumpMajor Bump = "major"
	BumpMinor Bump = "minor"
	BumpPatch Bump = "patch"
	BumpNone  Bump = "none"
)

// Change is one pointer-level finding in a diff.
type Change struct {
	Pointer       string
	PreviousPointer string // non-empty only for Kind == KindRenamed
	Kind          ChangeKind
	Impact        Impact
	ChangedFields []string
	Previous      *dtif.TokenSnapshot
	Next          *dtif.TokenSnapshot
}

// GroupCount is a per-group (or per-type) tally used in Summary.
type GroupCount struct {
	Added     int
	Removed   int
	Renamed   int
	Modified  int
	Unchanged int
}

// Summary aggregates a Result's changes by token type and by top-level
// pointer group (the first pointer segment after "#/").
type Summary struct {
	ByType        map[string]*GroupCount
	ByGroup       map[string]*GroupCount
	ValueChanged  int
	MetadataChanged int
	Unchanged     int
}

// Result is the Diff Engine's overall output.
type Result struct {
	Changes        []Change
	Summary        Summary
	RecommendedBump Bump
}

// RenameStrategy pairs removed entries with added entries it believes are
// the same token under a new pointer.
type RenameStrategy interface {
	// Pair returns, for each match it finds, the (removedPointer, addedPointer)
	// pair. Unmatched entries are left for the next strategy in the chain.
	Pair(removed map[string]*dtif.TokenSnapshot, added map[string]*dtif.TokenSnapshot) [][2]string
}

// ImpactStrategy assigns an Impact to every Change except unchanged ones,
// renames included.
type ImpactStrategy interface {
	Classify(change Change) Impact
}

// Filter restricts a Result to a subset of its Changes, per §4.11's
// filterTokenDiff.
type Filter struct {
	Types   []string
	Groups  []string
	Paths   []string
	Impacts []Impact
	Kinds   []ChangeKind
}
