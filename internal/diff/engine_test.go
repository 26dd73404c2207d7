package diff

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func colorSnap(pointer, hex string) *dtif.TokenSnapshot {
	return &dtif.TokenSnapshot{
		Pointer:    pointer,
		Token:      dtif.RawToken{Type: "color", Value: hex},
		Resolution: dtif.Resolution{Value: hex},
	}
}

func TestRenameExclusivity(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{"#/a": colorSnap("#/a", "#000")}
	next := map[string]*dtif.TokenSnapshot{"#/b": colorSnap("#/b", "#000")}

	result := NewEngine().Run(previous, next)

	seen := make(map[string]ChangeKind)
	for _, c := range result.Changes {
		if existing, ok := seen[c.Pointer]; ok {
			t.Fatalf("pointer %s appears under both %s and %s", c.Pointer, existing, c.Kind)
		}
		seen[c.Pointer] = c.Kind
	}
	if result.Changes[0].Kind != KindRenamed {
		t.Fatalf("expected a rename pairing #/a -> #/b, got %+v", result.Changes)
	}
}

func TestRenameWithDifferentExtensionsDefaultStrategy(t *testing.T) {
	primary := colorSnap("#/color/primary", "#000")
	flagship := colorSnap("#/color/flagship", "#000")
	flagship.Token.Metadata = &dtif.Metadata{Extensions: map[string]map[string]any{"com.example": {"flag": true}}}

	previous := map[string]*dtif.TokenSnapshot{"#/color/primary": primary}
	next := map[string]*dtif.TokenSnapshot{"#/color/flagship": flagship}

	// Default strategy (IncludeExtensions: true) treats the differing
	// $extensions as disqualifying, so the pair is reported as added/removed.
	result := NewEngine().Run(previous, next)
	var hasAdded, hasRemoved bool
	for _, c := range result.Changes {
		if c.Kind == KindAdded {
			hasAdded = true
		}
		if c.Kind == KindRemoved {
			hasRemoved = true
		}
	}
	if !hasAdded || !hasRemoved {
		t.Fatalf("expected added+removed by default when extensions differ, got %+v", result.Changes)
	}

	// Explicitly setting includeExtensions: false ignores the differing
	// extensions, so the pair is reported as a single rename.
	lenient := &Engine{RenameStrategies: []RenameStrategy{StructuralRenameStrategy{IncludeExtensions: false}}, ImpactStrategy: DefaultImpactStrategy{}}
	result2 := lenient.Run(previous, next)
	if len(result2.Changes) != 1 || result2.Changes[0].Kind != KindRenamed {
		t.Fatalf("expected exactly one renamed entry, got %+v", result2.Changes)
	}
	if result2.Changes[0].PreviousPointer != "#/color/primary" || result2.Changes[0].Pointer != "#/color/flagship" {
		t.Fatalf("unexpected rename pairing: %+v", result2.Changes[0])
	}
}

func TestBumpRecommendationMajorOnValueChange(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{"#/color/primary": colorSnap("#/color/primary", "#000000")}
	next := map[string]*dtif.TokenSnapshot{"#/color/primary": colorSnap("#/color/primary", "#111111")}

	result := NewEngine().Run(previous, next)
	if result.RecommendedBump != BumpMajor {
		t.Fatalf("expected major bump for a value change, got %s", result.RecommendedBump)
	}
}

func TestBumpRecommendationMinorOnAddition(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{}
	next := map[string]*dtif.TokenSnapshot{"#/size/medium": colorSnap("#/size/medium", "16px")}

	result := NewEngine().Run(previous, next)
	if result.RecommendedBump != BumpMinor {
		t.Fatalf("expected minor bump for an addition, got %s", result.RecommendedBump)
	}
}

func TestBumpRecommendationPatchOnMetadataOnlyChange(t *testing.T) {
	a := colorSnap("#/color/primary", "#000")
	a.Token.Metadata = &dtif.Metadata{Description: "old"}
	b := colorSnap("#/color/primary", "#000")
	b.Token.Metadata = &dtif.Metadata{Description: "new"}

	previous := map[string]*dtif.TokenSnapshot{"#/color/primary": a}
	next := map[string]*dtif.TokenSnapshot{"#/color/primary": b}

	result := NewEngine().Run(previous, next)
	if result.RecommendedBump != BumpPatch {
		t.Fatalf("expected patch bump for a description-only change, got %s", result.RecommendedBump)
	}
}

func TestBumpRecommendationNoneWhenUnchanged(t *testing.T) {
	snap := colorSnap("#/color/primary", "#000")
	previous := map[string]*dtif.TokenSnapshot{"#/color/primary": snap}
	next := map[string]*dtif.TokenSnapshot{"#/color/primary": snap}

	result := NewEngine().Run(previous, next)
	if result.RecommendedBump != BumpNone {
		t.Fatalf("expected no bump when nothing changed, got %s", result.RecommendedBump)
	}
}

func TestFilterMonotonicity(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{
		"#/color/a": colorSnap("#/color/a", "#000"),
	}
	next := map[string]*dtif.TokenSnapshot{
		"#/color/a": colorSnap("#/color/a", "#000"),
		"#/color/b": colorSnap("#/color/b", "#111"),
		"#/size/c":  {Pointer: "#/size/c", Token: dtif.RawToken{Type: "dimension", Value: "4px"}, Resolution: dtif.Resolution{Value: "4px"}},
	}

	result := NewEngine().Run(previous, next)
	filtered := FilterResult(result, Filter{Types: []string{"color"}})

	totalAdded := func(s Summary) int {
		sum := 0
		for _, gc := range s.ByType {
			sum += gc.Added
		}
		return sum
	}
	if totalAdded(filtered.Summary) > totalAdded(result.Summary) {
		t.Fatalf("filtered added count %d exceeds unfiltered %d", totalAdded(filtered.Summary), totalAdded(result.Summary))
	}
}
