package policy

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func colorSnap(pointer string, hex string) *dtif.TokenSnapshot {
	return &dtif.TokenSnapshot{
		Pointer:    pointer,
		Token:      dtif.RawToken{Type: "color"},
		Resolution: dtif.Resolution{Value: hex},
	}
}

func TestRequireOwnerFlagsMissingAuthor(t *testing.T) {
	rules, err := requireOwnerFactory(Entry{Name: "governance.requireOwner"}, FactoryContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := colorSnap("#/a", "#000")
	violations, err := rules[0].Run(Context{Snapshots: []*dtif.TokenSnapshot{snap}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation for missing owner, got %d", len(violations))
	}
}

func TestRequireOwnerPassesWithAuthor(t *testing.T) {
	rules, _ := requireOwnerFactory(Entry{Name: "governance.requireOwner"}, FactoryContext{})
	snap := colorSnap("#/a", "#000")
	snap.Token.Metadata = &dtif.Metadata{Author: "design-team"}
	violations, _ := rules[0].Run(Context{Snapshots: []*dtif.TokenSnapshot{snap}})
	if len(violations) != 0 {
		t.Fatalf("expected no violations, got %d", len(violations))
	}
}

func TestRequireOwnerRejectsUnknownOption(t *testing.T) {
	_, err := requireOwnerFactory(Entry{Name: "governance.requireOwner", Options: map[string]any{"bogus": true}}, FactoryContext{})
	if err == nil {
		t.Fatalf("expected error for unknown option")
	}
}

func TestDeprecationHasReplacementRequiresExistingTarget(t *testing.T) {
	rules, _ := deprecationHasReplacementFactory(Entry{Name: "governance.deprecationHasReplacement"}, FactoryContext{})
	snap := colorSnap("#/old", "#000")
	snap.Token.Metadata = &dtif.Metadata{Deprecated: &dtif.Deprecation{SupersededBy: "#/new"}}
	violations, err := rules[0].Run(Context{Snapshots: []*dtif.TokenSnapshot{snap}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation for missing replacement target, got %d", len(violations))
	}
}

func TestRequireTagMissingTag(t *testing.T) {
	rules, err := requireTagFactory(Entry{Name: "governance.requireTag", Options: map[string]any{"tag": "stable"}}, FactoryContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := colorSnap("#/a", "#000")
	violations, _ := rules[0].Run(Context{Snapshots: []*dtif.TokenSnapshot{snap}})
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation for missing tag, got %d", len(violations))
	}
}

func TestRequireTagMissingRequiredOption(t *testing.T) {
	_, err := requireTagFactory(Entry{Name: "governance.requireTag"}, FactoryContext{})
	if err == nil {
		t.Fatalf("expected error for missing required 'tag' option")
	}
}

func TestContrastRatioBlackOnWhite(t *testing.T) {
	ratio, err := contrastRatio("#000000", "#ffffff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ratio < 20.9 || ratio > 21.1 {
		t.Fatalf("expected black-on-white ratio near 21:1, got %f", ratio)
	}
}

func TestWcagContrastFlagsLowContrast(t *testing.T) {
	rules, err := wcagContrastFactory(Entry{Name: "governance.wcagContrast", Options: map[string]any{
		"foreground": "#/fg", "background": "#/bg", "minimumRatio": 4.5,
	}}, FactoryContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snaps := []*dtif.TokenSnapshot{colorSnap("#/fg", "#777777"), colorSnap("#/bg", "#808080")}
	violations, err := rules[0].Run(Context{Snapshots: snaps})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 low-contrast violation, got %d", len(violations))
	}
}
