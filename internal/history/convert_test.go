package history

import (
	"errors"
	"testing"
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/pipeline"
	"github.com/bylapidist/dtifx-sub001/internal/planner"
	"github.com/bylapidist/dtifx-sub001/internal/policy"
)

func TestFromPipelineResultCountsCacheOutcomes(t *testing.T) {
	started := time.Now().UTC()
	result := &pipeline.Result{
		RunID:    "run-1",
		Plan:     &planner.Plan{Entries: []dtif.PlanEntry{{ID: "a"}, {ID: "b"}}},
		Snapshots: []*dtif.TokenSnapshot{{Pointer: "#/a"}, {Pointer: "#/b"}},
		TransformResults: []dtif.TransformResult{
			{Pointer: "#/a", CacheStatus: dtif.CacheHit},
			{Pointer: "#/b", CacheStatus: dtif.CacheMiss},
		},
		Duration: 50 * time.Millisecond,
	}

	run := FromPipelineResult(result, started, nil)
	if run.ID != "run-1" || run.Status != "completed" {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.PlanEntryCount != 2 || run.SnapshotCount != 2 || run.TransformCount != 2 {
		t.Fatalf("expected counts derived from result, got %+v", run)
	}
	if run.CacheHits != 1 || run.CacheMisses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", run.CacheHits, run.CacheMisses)
	}
	if run.AuditStatus != nil {
		t.Fatalf("expected nil audit status when no policy result given")
	}
}

func TestFromPipelineResultIncludesAuditStatus(t *testing.T) {
	started := time.Now().UTC()
	result := &pipeline.Result{
		RunID: "run-2",
		Plan:  &planner.Plan{},
	}
	audit := &policy.Result{Summary: policy.Summary{ViolationCount: 2, Severity: map[policy.Severity]int{policy.SeverityError: 1}}}

	run := FromPipelineResult(result, started, audit)
	if run.ViolationCount != 2 {
		t.Fatalf("expected violation count 2, got %d", run.ViolationCount)
	}
	if run.AuditStatus == nil || *run.AuditStatus != string(policy.AuditStatusError) {
		t.Fatalf("expected audit status error, got %v", run.AuditStatus)
	}
}

func TestFromFailureRecordsError(t *testing.T) {
	started := time.Now().UTC()
	ended := started.Add(10 * time.Millisecond)
	run := FromFailure("run-3", started, ended, errors.New("boom"))
	if run.Status != "failed" || run.Error == nil || *run.Error != "boom" {
		t.Fatalf("unexpected run: %+v", run)
	}
}
