package history

import (
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/pipeline"
	"github.com/bylapidist/dtifx-sub001/internal/policy"
)

// FromPipelineResult builds the history row for a successful run. audit is
// nil for a plain `dtifx build` (no policy evaluation requested).
func FromPipelineResult(result *pipeline.Result, startedAt time.Time, audit *policy.Result) *Run {
	run := &Run{
		ID:             result.RunID,
		Status:         "completed",
		StartedAt:      startedAt,
		DurationMs:     float64(result.Duration.Microseconds()) / 1000,
		PlanEntryCount: len(result.Plan.Entries),
		SnapshotCount:  len(result.Snapshots),
		TransformCount: len(result.TransformResults),
		CreatedAt:      startedAt,
	}
	ended := startedAt.Add(result.Duration)
	run.EndedAt = &ended

	if result.FormatterResult != nil {
		run.ArtifactCount = len(result.FormatterResult.Artifacts)
	}
	for _, tr := range result.TransformResults {
		switch tr.CacheStatus {
		case dtif.CacheHit:
			run.CacheHits++
		case dtif.CacheMiss:
			run.CacheMisses++
		}
	}
	if audit != nil {
		run.ViolationCount = audit.Summary.ViolationCount
		status := string(audit.Status())
		run.AuditStatus = &status
	}
	return run
}

// FromFailure builds the history row for a run that failed before
// completion. startedAt/endedAt bound the attempted duration.
func FromFailure(runID string, startedAt, endedAt time.Time, cause error) *Run {
	msg := cause.Error()
	return &Run{
		ID:         runID,
		Status:     "failed",
		StartedAt:  startedAt,
		EndedAt:    &endedAt,
		DurationMs: float64(endedAt.Sub(startedAt).Microseconds()) / 1000,
		Error:      &msg,
		CreatedAt:  startedAt,
	}
}
