// Package dtif defines the data model shared by every pipeline stage: the
// Design Token Interchange Format document shape, plan entries, resolved
// token snapshots, and the dependency/transform/formatter result types
// downstream components consume.
package dtif

import "time"

// SourceKind distinguishes the two Source variants. Unknown layer/bad
// config is caught by the planner, not by this type.
type SourceKind string

const (
	SourceKindFile    SourceKind = "file"
	SourceKindVirtual SourceKind = "virtual"
)

// VirtualProducer produces a DTIF document body on demand. Implementations
// are typically backed by a Starlark function evaluated once per plan
// build (see internal/config.StarlarkEvaluator).
type VirtualProducer func() (Document, error)

// Source declares where tokens for a layer come from.
type Source struct {
	ID            string
	Kind          SourceKind
	Layer         string
	PointerPrefix string

	// File-kind fields.
	RootDir string
	Globs   []string
	Ignore  []string

	// Virtual-kind field.
	Produce VirtualProducer
}

// Layer is a named ordering bucket; its Index reflects declaration order in
// the build configuration.
type Layer struct {
	Name    string
	Index   int
	Context map[string]string
}

// Document is a parsed DTIF document: a map from source-local pointer to
// raw token body, prior to any global pointer prefixing.
type Document map[string]RawToken

// RawToken is a token as it appears in its source document, pre-alias,
// pre-prefix.
type RawToken struct {
	Type     string
	Value    any
	Ref      string // non-empty if this token is an alias ($ref)
	Metadata *Metadata
}

// Metadata carries the optional descriptive fields a TokenSnapshot may
// retain from its raw source.
type Metadata struct {
	Description  string
	Tags         []string
	Author       string
	LastModified time.Time
	UsageCount   int
	Deprecated   *Deprecation
	Hash         string
	Extensions   map[string]map[string]any
}

// Deprecation records a token's $deprecated annotation.
type Deprecation struct {
	SupersededBy string
}

// PlanEntry is one resolved source, ready for the resolver. Entries are
// totally ordered by (LayerIndex, SourceID, FileIndex).
type PlanEntry struct {
	ID            string
	Layer         string
	LayerIndex    int
	URI           string
	PointerPrefix string
	Document      Document
	Context       map[string]string

	// FileIndex disambiguates multiple files expanded from one glob-based
	// Source; it is the lexicographic rank of URI within that source.
	FileIndex int
}

// Resolution records how a snapshot's value was derived from its raw,
// possibly-aliased, token.
type Resolution struct {
	Value           any
	References      []string // pointers this snapshot's raw token directly references
	ResolutionPath  []string // a1=snapshot.Pointer, ..., terminal non-alias pointer
	AppliedAliases  []string // pointers visited while dereferencing, in order
}

// Provenance records where a snapshot came from.
type Provenance struct {
	SourceID      string
	Layer         string
	LayerIndex    int
	URI           string
	PointerPrefix string
}

// TokenSnapshot is the unit of resolved data produced by the resolution
// session.
type TokenSnapshot struct {
	Pointer       string // global pointer, after PointerPrefix is applied
	SourcePointer string // pointer as it appeared in the source document
	Token         RawToken
	Resolution    Resolution
	Provenance    Provenance
	Context       map[string]string
	Metadata      *Metadata
}

// DependencySnapshotEntry is one row of a DependencySnapshot.
type DependencySnapshotEntry struct {
	Pointer string `json:"pointer"`
	Hash    string `json:"hash"`
}

// DependencySnapshot is the persisted pointer->hash table.
type DependencySnapshot struct {
	Version     int                       `json:"version"`
	ResolvedAt  time.Time                 `json:"resolvedAt"`
	Entries     []DependencySnapshotEntry `json:"entries"`
}

// DependencyDiff is the result of comparing two DependencySnapshots.
type DependencyDiff struct {
	Changed map[string]struct{}
	Removed map[string]struct{}
}

// CacheStatus reports how a TransformResult's output was obtained.
type CacheStatus string

const (
	CacheHit  CacheStatus = "hit"
	CacheMiss CacheStatus = "miss"
	CacheSkip CacheStatus = "skip"
)

// TransformResult is the outcome of running one transform against one
// snapshot.
type TransformResult struct {
	Transform   string
	Pointer     string
	Snapshot    *TokenSnapshot
	Output      any
	Group       string
	OptionsHash string
	CacheStatus CacheStatus
}

// FormatterOutputConfig configures where and how a formatter's artifacts
// are written.
type FormatterOutputConfig struct {
	Path     string
	Encoding string
	Options  map[string]any
}

// FormatterPlan is constructed once per build from configuration and the
// formatter registry.
type FormatterPlan struct {
	ID       string
	Name     string
	Selector Selector
	Output   FormatterOutputConfig
}

// Selector is a predicate over a TokenSnapshot, used by both transforms and
// formatters to decide membership.
type Selector struct {
	Types    []string
	Pointers []string
}

// Matches reports whether snap satisfies the selector. An empty selector
// matches everything.
func (s Selector) Matches(snap *TokenSnapshot) bool {
	if len(s.Types) == 0 && len(s.Pointers) == 0 {
		return true
	}
	for _, t := range s.Types {
		if t == snap.Token.Type {
			return true
		}
	}
	for _, p := range s.Pointers {
		if p == snap.Pointer {
			return true
		}
	}
	return false
}

// Artifact is a file produced by a formatter.
type Artifact struct {
	Path     string
	Contents []byte
	Encoding string
	Metadata map[string]any
}

// Severity classifies a PolicyViolation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// PolicyViolation is one governance finding against a resolved pointer.
type PolicyViolation struct {
	Pointer  string
	Severity Severity
	Message  string
	Details  map[string]any
	Snapshot *TokenSnapshot
}
