package dependency

import (
	"path/filepath"
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func snapshot(pointer string, value any) *dtif.TokenSnapshot {
	return &dtif.TokenSnapshot{
		Pointer:    pointer,
		Token:      dtif.RawToken{Type: "color", Value: value},
		Resolution: dtif.Resolution{Value: value},
	}
}

func TestSnapshotHashStableAcrossKeyOrder(t *testing.T) {
	a := snapshot("#/color/primary", map[string]any{"b": 2, "a": 1})
	b := snapshot("#/color/primary", map[string]any{"a": 1, "b": 2})

	ha, err := SnapshotHash(a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hb, err := SnapshotHash(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ha != hb {
		t.Fatalf("expected identical hashes regardless of map key order, got %s vs %s", ha, hb)
	}
}

func TestSnapshotHashChangesWithValue(t *testing.T) {
	a := snapshot("#/color/primary", "#000000")
	b := snapshot("#/color/primary", "#111111")

	ha, _ := SnapshotHash(a)
	hb, _ := SnapshotHash(b)
	if ha == hb {
		t.Fatalf("expected different hashes for different values")
	}
}

func TestSnapshotHashChangesWithMetadataSubset(t *testing.T) {
	a := snapshot("#/color/primary", "#000000")
	b := snapshot("#/color/primary", "#000000")
	b.Metadata = &dtif.Metadata{Description: "brand primary"}

	ha, _ := SnapshotHash(a)
	hb, _ := SnapshotHash(b)
	if ha == hb {
		t.Fatalf("expected hash to change with description metadata")
	}
}

func TestTrackerEvaluateAndCommit(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewDependencyStore(filepath.Join(dir, "snapshot.json"))
	tracker := NewTracker(store)

	snaps := []*dtif.TokenSnapshot{snapshot("#/a", 1), snapshot("#/b", 2)}
	next, diff, err := tracker.Evaluate(snaps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Changed) != 2 {
		t.Fatalf("expected both pointers changed on first run, got %d", len(diff.Changed))
	}
	if err := tracker.Commit(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, diff2, err := tracker.Evaluate(snaps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff2.Changed) != 0 {
		t.Fatalf("expected no changes on second run with identical snapshots, got %d", len(diff2.Changed))
	}
}
