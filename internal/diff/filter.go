package diff

import "strings"

// FilterResult restricts result to changes matching every non-empty
// category in f (conjunctive across categories, disjunctive within one),
// per §4.11's filterTokenDiff, and recomputes the summary over the
// restricted set.
func FilterResult(result Result, f Filter) Result {
	var filtered []Change
	for _, c := range result.Changes {
		if matchesFilter(c, f) {
			filtered = append(filtered, c)
		}
	}
	return Result{
		Changes:         filtered,
		Summary:         summarize(filtered),
		RecommendedBump: recommendBump(filtered),
	}
}

func matchesFilter(c Change, f Filter) bool {
	if len(f.Types) > 0 && !matchesAnyCaseInsensitive(typeOf(c), f.Types) {
		return false
	}
	if len(f.Groups) > 0 && !matchesAnyCaseInsensitive(groupOf(c.Pointer), f.Groups) {
		return false
	}
	if len(f.Paths) > 0 && !matchesAnyPathPrefix(c.Pointer, f.Paths) {
		return false
	}
	if len(f.Impacts) > 0 && !matchesAnyImpact(c.Impact, f.Impacts) {
		return false
	}
	if len(f.Kinds) > 0 && !matchesAnyKind(c.Kind, f.Kinds) {
		return false
	}
	return true
}

func matchesAnyCaseInsensitive(value string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}

func matchesAnyPathPrefix(pointer string, prefixes []string) bool {
	trimmedPointer := strings.TrimPrefix(strings.TrimPrefix(pointer, "#"), "/")
	for _, p := range prefixes {
		trimmedPrefix := strings.TrimPrefix(strings.TrimPrefix(p, "#"), "/")
		if strings.HasPrefix(trimmedPointer, trimmedPrefix) {
			return true
		}
	}
	return false
}

func matchesAnyImpact(impact Impact, candidates []Impact) bool {
	for _, c := range candidates {
		if impact == c {
			return true
		}
	}
	return false
}

func matchesAnyKind(kind ChangeKind, candidates []ChangeKind) bool {
	for _, c := range candidates {
		if kind == c {
			return true
		}
	}
	return false
}
