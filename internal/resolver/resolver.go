// Package resolver parses planned documents, builds the token alias graph,
// and resolves each alias to its concrete value, emitting TokenSnapshots
// with full provenance.
package resolver

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Diagnostic mirrors the structured log/diagnostic event shape from §6,
// specialised with the resolver's scope and category.
type Diagnostic struct {
	Level    string
	Scope    string
	Code     string
	Category string
	Pointer  string
	Message  string
}

// DiagnosticsPort receives diagnostics as they are produced. A severity
// "error" diagnostic aborts the run; the caller (Session.Resolve) is
// responsible for checking this after each entry.
type DiagnosticsPort func(Diagnostic)

// DocumentParser turns raw bytes identified by uri into a dtif.Document.
// Wired through the document cache (component A) by the session.
type DocumentParser func(uri string) (dtif.Document, error)

// ResolvedEntry pairs a plan entry with the snapshots produced from it.
type ResolvedEntry struct {
	PlanEntry dtif.PlanEntry
	Tokens    []*dtif.TokenSnapshot
}

// ResolvedPlan is the Resolution Session's output.
type ResolvedPlan struct {
	Entries     []ResolvedEntry
	Diagnostics []Diagnostic
	ResolvedAt  time.Time
	ParseMs     float64
}

// Session resolves a planner.Plan into a ResolvedPlan.
type Session struct {
	docs        *cache.DocumentCache
	parse       DocumentParser
	diagnostics DiagnosticsPort
}

// NewSession constructs a resolution Session. docs may be nil to disable
// document memoisation (every entry already carries a parsed dtif.Document,
// so parse is typically a no-op re-fetch used only when a plan entry needs
// re-parsing, e.g. after a cache miss upstream).
func NewSession(docs *cache.DocumentCache, parse DocumentParser, diagnostics DiagnosticsPort) *Session {
	return &Session{docs: docs, parse: parse, diagnostics: diagnostics}
}

func (s *Session) emit(d Diagnostic) {
	if s.diagnostics != nil {
		s.diagnostics(d)
	}
}

// Resolve walks every plan entry, per §4.5.
func (s *Session) Resolve(entries []dtif.PlanEntry) (*ResolvedPlan, error) {
	result := &ResolvedPlan{ResolvedAt: time.Now()}

	var totalParseMs float64
	for _, entry := range entries {
		start := time.Now()
		doc := entry.Document
		if doc == nil && s.parse != nil {
			parsed, err := s.resolveDocument(entry.URI)
			if err != nil {
				return nil, dtifxerr.Wrap(dtifxerr.ClassResolution, dtifxerr.CodeResolverFailure,
					fmt.Sprintf("failed to parse %s", entry.URI), err)
			}
			doc = parsed
		}
		totalParseMs += float64(time.Since(start).Microseconds()) / 1000.0

		snapshots, diags, err := s.resolveEntry(entry, doc)
		result.Diagnostics = append(result.Diagnostics, diags...)
		for _, d := range diags {
			s.emit(d)
		}
		if err != nil {
			return nil, err
		}

		result.Entries = append(result.Entries, ResolvedEntry{PlanEntry: entry, Tokens: snapshots})
	}

	result.ParseMs = totalParseMs
	return result, nil
}

func (s *Session) resolveDocument(uri string) (dtif.Document, error) {
	if s.docs != nil {
		return s.docs.GetOrLoad(uri, func(u string) (dtif.Document, error) { return s.parse(u) })
	}
	return s.parse(uri)
}

// resolveEntry builds pre-alias snapshots for one document, applies the
// pointer template, then resolves every alias to a concrete value.
func (s *Session) resolveEntry(entry dtif.PlanEntry, doc dtif.Document) ([]*dtif.TokenSnapshot, []Diagnostic, error) {
	byPointer := make(map[string]*dtif.TokenSnapshot, len(doc))
	var ordered []*dtif.TokenSnapshot

	for sourcePointer, raw := range doc {
		globalPointer := applyPointerTemplate(entry.PointerPrefix, sourcePointer)
		snap := &dtif.TokenSnapshot{
			Pointer:       globalPointer,
			SourcePointer: sourcePointer,
			Token:         raw,
			Metadata:      raw.Metadata,
			Context:       entry.Context,
			Provenance: dtif.Provenance{
				SourceID:      entry.ID,
				Layer:         entry.Layer,
				LayerIndex:    entry.LayerIndex,
				URI:           entry.URI,
				PointerPrefix: entry.PointerPrefix,
			},
		}
		if raw.Ref != "" {
			snap.Resolution.References = []string{applyPointerTemplate(entry.PointerPrefix, raw.Ref)}
		}
		byPointer[globalPointer] = snap
		ordered = append(ordered, snap)
	}

	var diags []Diagnostic
	for _, snap := range ordered {
		if len(snap.Resolution.References) == 0 {
			// Non-alias token: resolves to itself.
			snap.Resolution.Value = snap.Token.Value
			snap.Resolution.ResolutionPath = []string{snap.Pointer}
			snap.Resolution.AppliedAliases = []string{snap.Pointer}
			continue
		}

		path, err := resolveAliasChain(snap.Pointer, byPointer)
		if err != nil {
			diags = append(diags, Diagnostic{
				Level:    "error",
				Scope:    "resolver",
				Code:     dtifxerr.CodeAliasCycle,
				Category: "token-source.session",
				Pointer:  snap.Pointer,
				Message:  err.Error(),
			})
			return nil, diags, dtifxerr.Wrap(dtifxerr.ClassResolution, dtifxerr.CodeAliasCycle, err.Error(), err).WithPointer(snap.Pointer)
		}

		terminal := byPointer[path[len(path)-1]]
		if terminal == nil {
			diags = append(diags, Diagnostic{
				Level:    "error",
				Scope:    "resolver",
				Code:     dtifxerr.CodeMissingAliasTarget,
				Category: "token-source.session",
				Pointer:  snap.Pointer,
				Message:  fmt.Sprintf("alias target %s does not exist", path[len(path)-1]),
			})
			return nil, diags, dtifxerr.New(dtifxerr.ClassResolution, dtifxerr.CodeMissingAliasTarget,
				fmt.Sprintf("missing alias target %s", path[len(path)-1])).WithPointer(snap.Pointer)
		}

		snap.Resolution.Value = terminal.Token.Value
		snap.Resolution.ResolutionPath = path
		snap.Resolution.AppliedAliases = path
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Pointer < ordered[j].Pointer })
	return ordered, diags, nil
}

func applyPointerTemplate(prefix, sourcePointer string) string {
	if prefix == "" {
		return sourcePointer
	}
	trimmedPrefix := strings.TrimSuffix(prefix, "/")
	trimmedPointer := strings.TrimPrefix(sourcePointer, "#")
	return trimmedPrefix + trimmedPointer
}

// resolveAliasChain walks the $ref chain starting at start, returning the
// full path [start, ..., terminal]. A back-edge (a pointer revisited while
// still on the current walk) is a cycle; a reference to an unknown pointer
// is reported by the caller once the walk returns.
func resolveAliasChain(start string, byPointer map[string]*dtif.TokenSnapshot) ([]string, error) {
	visited := make(map[string]bool)
	var path []string

	current := start
	for {
		if visited[current] {
			cycle := append(append([]string{}, path...), current)
			return nil, fmt.Errorf("alias cycle detected: %s", strings.Join(cycle, " -> "))
		}
		visited[current] = true
		path = append(path, current)

		snap, ok := byPointer[current]
		if !ok {
			// Unresolved target; return the path so far so the caller can
			// report which pointer is missing.
			return path, nil
		}
		if len(snap.Resolution.References) == 0 {
			return path, nil
		}
		current = snap.Resolution.References[0]
	}
}
