package diff

import (
	"reflect"
	"sort"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// StructuralRenameStrategy is the default RenameStrategy: it pairs a
// removed entry with an added entry when they share the same resolved
// value and token type (and, when IncludeExtensions is set, the same
// $extensions map) — see DESIGN.md's Open Question 2 decision.
type StructuralRenameStrategy struct {
	IncludeExtensions bool
}

func (s StructuralRenameStrategy) Pair(removed, added map[string]*dtif.TokenSnapshot) [][2]string {
	removedPointers := sortedKeys(removed)
	addedPointers := sortedKeys(added)
	usedAdded := make(map[string]bool, len(added))

	var pairs [][2]string
	for _, rp := range removedPointers {
		rSnap := removed[rp]
		for _, ap := range addedPointers {
			if usedAdded[ap] {
				continue
			}
			aSnap := added[ap]
			if s.equivalent(rSnap, aSnap) {
				pairs = append(pairs, [2]string{rp, ap})
				usedAdded[ap] = true
				break
			}
		}
	}
	return pairs
}

func (s StructuralRenameStrategy) equivalent(a, b *dtif.TokenSnapshot) bool {
	if a.Token.Type != b.Token.Type {
		return false
	}
	if !reflect.DeepEqual(a.Resolution.Value, b.Resolution.Value) {
		return false
	}
	if !s.IncludeExtensions {
		return true
	}
	return reflect.DeepEqual(extensionsOf(a), extensionsOf(b))
}

func extensionsOf(snap *dtif.TokenSnapshot) map[string]map[string]any {
	if snap.Token.Metadata == nil {
		return nil
	}
	return snap.Token.Metadata.Extensions
}

func sortedKeys(m map[string]*dtif.TokenSnapshot) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultImpactStrategy implements §4.11 step 4's default impact policy.
type DefaultImpactStrategy struct{}

func (DefaultImpactStrategy) Classify(change Change) Impact {
	switch change.Kind {
	case KindAdded:
		return ImpactNonBreaking
	case KindRemoved, KindRenamed:
		return ImpactBreaking
	case KindModified:
		for _, field := range change.ChangedFields {
			switch field {
			case "value", "raw", "ref", "type", "deprecated", "resolutionPath":
				return ImpactBreaking
			}
		}
		return ImpactNonBreaking
	default:
		return ImpactNonBreaking
	}
}
