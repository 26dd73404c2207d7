package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), Config{Path: path})
	if err != nil {
		t.Fatalf("unexpected error opening store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGetRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Millisecond)

	run := &Run{
		ID:               "run-1",
		Status:           "completed",
		StartedAt:        started,
		DurationMs:       125.5,
		PlanEntryCount:   3,
		SnapshotCount:    10,
		TransformCount:   10,
		ArtifactCount:    2,
		CacheHits:        8,
		CacheMisses:      2,
		ViolationCount:   1,
		StageDurationsMs: map[string]float64{"plan": 1.2, "resolve": 3.4},
		CreatedAt:        started,
	}
	if err := store.RecordRun(ctx, run); err != nil {
		t.Fatalf("unexpected error recording run: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error getting run: %v", err)
	}
	if got.PlanEntryCount != 3 || got.CacheHits != 8 || got.CacheMisses != 2 {
		t.Fatalf("expected round-tripped counts, got %+v", got)
	}
	if got.StageDurationsMs["resolve"] != 3.4 {
		t.Fatalf("expected stage durations to round-trip, got %v", got.StageDurationsMs)
	}
}

func TestRecordRunUpsertsById(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	if err := store.RecordRun(ctx, &Run{ID: "run-1", Status: "running", StartedAt: started, CreatedAt: started}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RecordRun(ctx, &Run{ID: "run-1", Status: "completed", StartedAt: started, CreatedAt: started, SnapshotCount: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != "completed" || got.SnapshotCount != 5 {
		t.Fatalf("expected upsert to overwrite status and counts, got %+v", got)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error listing runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected exactly 1 run after upsert, got %d", len(runs))
	}
}

func TestListRunsOrdersNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	if err := store.RecordRun(ctx, &Run{ID: "old", Status: "completed", StartedAt: older, CreatedAt: older}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RecordRun(ctx, &Run{ID: "new", Status: "completed", StartedAt: newer, CreatedAt: newer}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "old" {
		t.Fatalf("expected newest-first ordering, got %+v", runs)
	}
}

func TestDeleteRunsBeforeCutoff(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := time.Now().UTC().Add(-48 * time.Hour)
	newer := time.Now().UTC()

	if err := store.RecordRun(ctx, &Run{ID: "old", Status: "completed", StartedAt: older, CreatedAt: older}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RecordRun(ctx, &Run{ID: "new", Status: "completed", StartedAt: newer, CreatedAt: newer}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err := store.DeleteRunsBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 row deleted, got %d", deleted)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "new" {
		t.Fatalf("expected only the newer run to survive, got %+v", runs)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetRun(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing run")
	}
}
