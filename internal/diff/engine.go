package diff

import (
	"reflect"
	"sort"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// Engine runs the partition/modify/rename/impact/summary/bump pipeline.
type Engine struct {
	RenameStrategies []RenameStrategy
	ImpactStrategy   ImpactStrategy
}

// NewEngine constructs an Engine with the default structural rename
// strategy (IncludeExtensions: true) and default impact policy.
func NewEngine() *Engine {
	return &Engine{
		RenameStrategies: []RenameStrategy{StructuralRenameStrategy{IncludeExtensions: true}},
		ImpactStrategy:   DefaultImpactStrategy{},
	}
}

// Run diffs previous against next.
func (e *Engine) Run(previous, next map[string]*dtif.TokenSnapshot) Result {
	// 1. Partition.
	added := make(map[string]*dtif.TokenSnapshot)
	removed := make(map[string]*dtif.TokenSnapshot)
	common := make(map[string]*dtif.TokenSnapshot)

	for p, snap := range next {
		if _, ok := previous[p]; !ok {
			added[p] = snap
		} else {
			common[p] = snap
		}
	}
	for p, snap := range previous {
		if _, ok := next[p]; !ok {
			removed[p] = snap
		}
	}

	var changes []Change

	// 2. Modification detection over common pointers.
	for _, p := range sortedKeys(common) {
		fields := changedFields(previous[p], next[p])
		kind := KindUnchanged
		if len(fields) > 0 {
			kind = KindModified
		}
		changes = append(changes, Change{
			Pointer: p, Kind: kind, ChangedFields: fields,
			Previous: previous[p], Next: next[p],
		})
	}

	// 3. Rename detection: chain each configured strategy over the
	// remaining unpaired removed/added sets.
	renamedRemoved := make(map[string]bool)
	renamedAdded := make(map[string]bool)
	var renamePairs [][2]string

	remainingRemoved := removed
	remainingAdded := added
	for _, strategy := range e.RenameStrategies {
		pairs := strategy.Pair(remainingRemoved, remainingAdded)
		if len(pairs) == 0 {
			continue
		}
		nextRemoved := make(map[string]*dtif.TokenSnapshot, len(remainingRemoved))
		for p, s := range remainingRemoved {
			nextRemoved[p] = s
		}
		nextAdded := make(map[string]*dtif.TokenSnapshot, len(remainingAdded))
		for p, s := range remainingAdded {
			nextAdded[p] = s
		}
		for _, pair := range pairs {
			renamedRemoved[pair[0]] = true
			renamedAdded[pair[1]] = true
			renamePairs = append(renamePairs, pair)
			delete(nextRemoved, pair[0])
			delete(nextAdded, pair[1])
		}
		remainingRemoved, remainingAdded = nextRemoved, nextAdded
	}

	for _, pair := range renamePairs {
		from, to := pair[0], pair[1]
		changes = append(changes, Change{
			Pointer: to, PreviousPointer: from, Kind: KindRenamed,
			Previous: removed[from], Next: added[to],
		})
	}

	for _, p := range sortedKeys(remainingAdded) {
		changes = append(changes, Change{Pointer: p, Kind: KindAdded, Next: added[p]})
	}
	for _, p := range sortedKeys(remainingRemoved) {
		changes = append(changes, Change{Pointer: p, Kind: KindRemoved, Previous: removed[p]})
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Pointer < changes[j].Pointer })

	// 4. Impact classification.
	for i := range changes {
		if changes[i].Kind == KindUnchanged {
			continue
		}
		changes[i].Impact = e.ImpactStrategy.Classify(changes[i])
	}

	// 5. Summary.
	summary := summarize(changes)

	// 6. Recommended bump.
	bump := recommendBump(changes)

	return Result{Changes: changes, Summary: summary, RecommendedBump: bump}
}

// changedFields compares the fixed list of fields §4.11 names and returns
// the ones that differ, in the order listed there.
func changedFields(prev, next *dtif.TokenSnapshot) []string {
	var fields []string
	check := func(name string, equal bool) {
		if !equal {
			fields = append(fields, name)
		}
	}
	check("value", reflect.DeepEqual(prev.Resolution.Value, next.Resolution.Value))
	check("raw", reflect.DeepEqual(prev.Token.Value, next.Token.Value))
	check("ref", prev.Token.Ref == next.Token.Ref)
	check("type", prev.Token.Type == next.Token.Type)
	check("description", descriptionOf(prev) == descriptionOf(next))
	check("extensions", reflect.DeepEqual(extensionsOf(prev), extensionsOf(next)))
	check("deprecated", reflect.DeepEqual(deprecationOf(prev), deprecationOf(next)))
	check("references", reflect.DeepEqual(prev.Resolution.References, next.Resolution.References))
	check("resolutionPath", reflect.DeepEqual(prev.Resolution.ResolutionPath, next.Resolution.ResolutionPath))
	check("appliedAliases", reflect.DeepEqual(prev.Resolution.AppliedAliases, next.Resolution.AppliedAliases))
	return fields
}

func descriptionOf(snap *dtif.TokenSnapshot) string {
	if snap.Token.Metadata == nil {
		return ""
	}
	return snap.Token.Metadata.Description
}

func deprecationOf(snap *dtif.TokenSnapshot) *dtif.Deprecation {
	if snap.Token.Metadata == nil {
		return nil
	}
	return snap.Token.Metadata.Deprecated
}

func groupOf(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "#/")
	if idx := strings.Index(trimmed, "/"); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}

func typeOf(change Change) string {
	if change.Next != nil {
		return change.Next.Token.Type
	}
	if change.Previous != nil {
		return change.Previous.Token.Type
	}
	return ""
}

func summarize(changes []Change) Summary {
	summary := Summary{ByType: map[string]*GroupCount{}, ByGroup: map[string]*GroupCount{}}

	bump := func(m map[string]*GroupCount, key string, field func(*GroupCount) *int) {
		gc, ok := m[key]
		if !ok {
			gc = &GroupCount{}
			m[key] = gc
		}
		*field(gc)++
	}

	for _, c := range changes {
		t := typeOf(c)
		g := groupOf(c.Pointer)

		var field func(*GroupCount) *int
		switch c.Kind {
		case KindAdded:
			field = func(gc *GroupCount) *int { return &gc.Added }
		case KindRemoved:
			field = func(gc *GroupCount) *int { return &gc.Removed }
		case KindRenamed:
			field = func(gc *GroupCount) *int { return &gc.Renamed }
		case KindModified:
			field = func(gc *GroupCount) *int { return &gc.Modified }
		default:
			field = func(gc *GroupCount) *int { return &gc.Unchanged }
		}
		bump(summary.ByType, t, field)
		bump(summary.ByGroup, g, field)

		switch c.Kind {
		case KindUnchanged:
			summary.Unchanged++
		case KindModified:
			if containsAny(c.ChangedFields, "value", "raw", "ref", "type", "references", "resolutionPath", "appliedAliases") {
				summary.ValueChanged++
			} else {
				summary.MetadataChanged++
			}
		}
	}
	return summary
}

func containsAny(fields []string, candidates ...string) bool {
	set := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		set[c] = true
	}
	for _, f := range fields {
		if set[f] {
			return true
		}
	}
	return false
}

// recommendBump implements §4.11 step 6: major if any breaking change,
// else minor if any addition, else patch if any metadata-only
// modification, else none.
func recommendBump(changes []Change) Bump {
	hasAddition := false
	hasMetadataOnly := false

	for _, c := range changes {
		if c.Kind == KindUnchanged {
			continue
		}
		if c.Impact == ImpactBreaking {
			return BumpMajor
		}
		if c.Kind == KindAdded {
			hasAddition = true
		}
		if c.Kind == KindModified && !containsAny(c.ChangedFields, "value", "raw", "ref", "type", "references", "resolutionPath", "appliedAliases") {
			hasMetadataOnly = true
		}
	}
	if hasAddition {
		return BumpMinor
	}
	if hasMetadataOnly {
		return BumpPatch
	}
	return BumpNone
}
