package diff

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func TestFilterByPathPrefix(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{}
	next := map[string]*dtif.TokenSnapshot{
		"#/color/a": colorSnap("#/color/a", "#000"),
		"#/size/b":  colorSnap("#/size/b", "4px"),
	}
	result := NewEngine().Run(previous, next)

	filtered := FilterResult(result, Filter{Paths: []string{"color"}})
	if len(filtered.Changes) != 1 || filtered.Changes[0].Pointer != "#/color/a" {
		t.Fatalf("expected only the color pointer to survive the path filter, got %+v", filtered.Changes)
	}
}

func TestFilterByImpactAndKindAreConjunctive(t *testing.T) {
	previous := map[string]*dtif.TokenSnapshot{
		"#/color/a": colorSnap("#/color/a", "#000"),
	}
	next := map[string]*dtif.TokenSnapshot{
		"#/color/a": colorSnap("#/color/a", "#111"),
		"#/color/b": colorSnap("#/color/b", "#222"),
	}
	result := NewEngine().Run(previous, next)

	filtered := FilterResult(result, Filter{Impacts: []Impact{ImpactNonBreaking}, Kinds: []ChangeKind{KindModified}})
	for _, c := range filtered.Changes {
		if c.Impact != ImpactNonBreaking || c.Kind != KindModified {
			t.Fatalf("expected only non-breaking modifications, got %+v", c)
		}
	}
}
