// Package pipeline implements the Pipeline Orchestrator (component M): it
// sequences the Source Planner, Resolution Session, dependency tracking,
// Transformation Executor, and Formatter Executor stages under a single
// root span, per §4.12.
package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bylapidist/dtifx-sub001/internal/dependency"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/planner"
	"github.com/bylapidist/dtifx-sub001/internal/resolver"
	"github.com/bylapidist/dtifx-sub001/internal/telemetry"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

// Options configures one pipeline run.
type Options struct {
	IncludeTransforms bool
	IncludeFormatters bool
	TransformDefs     []*transform.Definition
	FormatterPlans    []dtif.FormatterPlan
}

// Result is the fully assembled output of one run, per §4.12's stage
// sequence: plan, resolve, flatten, metrics, dependency evaluate,
// transform, format, dependency commit.
type Result struct {
	RunID            string
	Plan             *planner.Plan
	Resolved         *resolver.ResolvedPlan
	Snapshots        []*dtif.TokenSnapshot
	DependencyDiff   dtif.DependencyDiff
	TransformResults []dtif.TransformResult
	FormatterResult  *formatter.Result
	Duration         time.Duration
}

// Orchestrator wires every stage together.
type Orchestrator struct {
	Planner    *planner.Planner
	Resolver   *resolver.Session
	Tracker    *dependency.Tracker
	Transforms *transform.Executor
	Formatters *formatter.Executor
	Telemetry  *telemetry.Telemetry
}

// Run executes one full pipeline run under a `dtifx.pipeline.run` root
// span. Stage order is fixed and stages after a failure never execute;
// dependency commit only happens once every prior stage has succeeded.
func (o *Orchestrator) Run(ctx context.Context, cfg planner.Config, opts Options) (*Result, error) {
	runID := uuid.New().String()
	start := time.Now()

	ctx, rootSpan := o.Telemetry.StartOperation(ctx, telemetry.SpanPipelineRun, map[string]any{
		"run.id":             runID,
		"includeTransforms":  opts.IncludeTransforms,
		"includeFormatters":  opts.IncludeFormatters,
	})
	logger := o.Telemetry.Logger.WithRunID(runID)
	mode := "build"
	o.Telemetry.Metrics.RecordRunStarted(mode)
	o.Telemetry.Bus.Publish(telemetry.Event{Name: telemetry.EventRunStarted, Payload: map[string]any{"runId": runID}})

	result, err := o.run(ctx, runID, cfg, opts, logger)
	duration := time.Since(start)
	status := "ok"
	if err != nil {
		status = "error"
		rootSpan.End("error", map[string]any{"error": err.Error()})
		o.Telemetry.Bus.Publish(telemetry.Event{Name: telemetry.EventRunFailed, Payload: map[string]any{"runId": runID, "error": err.Error()}})
		o.Telemetry.Metrics.RecordError(errorClass(err))
	} else {
		rootSpan.End("ok", map[string]any{"snapshotCount": len(result.Snapshots)})
		o.Telemetry.Bus.Publish(telemetry.Event{Name: telemetry.EventRunCompleted, Payload: map[string]any{"runId": runID}})
	}
	o.Telemetry.Metrics.RecordRunCompleted(status, duration)
	if flushErr := o.Telemetry.Tracer.Flush(context.Background()); flushErr != nil {
		logger.Warn("failed to flush telemetry spans", map[string]any{"error": flushErr.Error()})
	}

	if err != nil {
		return nil, err
	}
	result.Duration = duration
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, runID string, cfg planner.Config, opts Options, logger telemetry.Logger) (*Result, error) {
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	// Stage: plan. Stages are siblings under the root span, not nested
	// under one another, per the fixed span tree shape.
	_, planSpan := o.Telemetry.StartOperation(ctx, telemetry.SpanPipelinePlan, nil)
	stageStart := time.Now()
	plan, err := o.Planner.Build(cfg)
	if err != nil {
		planSpan.End("error", map[string]any{"error": err.Error()})
		o.Telemetry.Metrics.RecordStageDuration("plan", time.Since(stageStart))
		return nil, err
	}
	planSpan.End("ok", map[string]any{"entryCount": len(plan.Entries)})
	o.Telemetry.Metrics.RecordStageDuration("plan", time.Since(stageStart))

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	// Stage: resolve.
	_, resolveSpan := o.Telemetry.StartOperation(ctx, telemetry.SpanPipelineResolve, nil)
	stageStart = time.Now()
	resolved, err := o.Resolver.Resolve(plan.Entries)
	if err != nil {
		resolveSpan.End("error", map[string]any{"error": err.Error()})
		o.Telemetry.Metrics.RecordStageDuration("resolve", time.Since(stageStart))
		return nil, err
	}
	resolveSpan.End("ok", map[string]any{"diagnosticCount": len(resolved.Diagnostics)})
	o.Telemetry.Metrics.RecordStageDuration("resolve", time.Since(stageStart))

	// Stage: flatten (memory-only) + collect metrics.
	snapshots := flatten(resolved)

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	// Stage: dependency evaluate.
	snapshot, diff, err := o.Tracker.Evaluate(snapshots)
	if err != nil {
		return nil, err
	}

	var transformResults []dtif.TransformResult
	if opts.IncludeTransforms {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		transformCtx, transformSpan := o.Telemetry.StartOperation(ctx, telemetry.SpanPipelineTransform, nil)
		stageStart = time.Now()
		changed := make(map[string]struct{}, len(diff.Changed))
		for p := range diff.Changed {
			changed[p] = struct{}{}
		}
		transformResults, err = o.Transforms.Run(transformCtx, opts.TransformDefs, snapshots, changed)
		if err != nil {
			transformSpan.End("error", map[string]any{"error": err.Error()})
			o.Telemetry.Metrics.RecordStageDuration("transform", time.Since(stageStart))
			return nil, err
		}
		for _, tr := range transformResults {
			if tr.CacheStatus == dtif.CacheHit {
				o.Telemetry.Metrics.RecordCacheHit("transform")
			} else if tr.CacheStatus == dtif.CacheMiss {
				o.Telemetry.Metrics.RecordCacheMiss("transform")
			}
		}
		transformSpan.End("ok", map[string]any{"resultCount": len(transformResults)})
		o.Telemetry.Metrics.RecordStageDuration("transform", time.Since(stageStart))
	}

	var formatterResult *formatter.Result
	if opts.IncludeFormatters {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		_, formatSpan := o.Telemetry.StartOperation(ctx, telemetry.SpanPipelineFormat, nil)
		stageStart = time.Now()
		formatterResult, err = o.Formatters.Run(opts.FormatterPlans, snapshots, transformResults)
		if err != nil {
			formatSpan.End("error", map[string]any{"error": err.Error()})
			o.Telemetry.Metrics.RecordStageDuration("format", time.Since(stageStart))
			return nil, err
		}
		formatSpan.End("ok", map[string]any{"artifactCount": len(formatterResult.Artifacts)})
		o.Telemetry.Metrics.RecordStageDuration("format", time.Since(stageStart))
	}

	// Stage: dependency commit. Only reached once every prior stage
	// succeeded, per §4.12's "NOT called" rule on failure.
	if err := o.Tracker.Commit(snapshot); err != nil {
		return nil, err
	}

	return &Result{
		RunID:            runID,
		Plan:             plan,
		Resolved:         resolved,
		Snapshots:        snapshots,
		DependencyDiff:   diff,
		TransformResults: transformResults,
		FormatterResult:  formatterResult,
	}, nil
}

// checkCancelled reports a cancellation-class error if ctx has been
// cancelled or its deadline exceeded, so a stage boundary never starts
// work that the caller has already abandoned. Per §4.12, a stage that
// never started leaves dependency commit uncalled, same as a stage that
// failed outright.
func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dtifxerr.Wrap(dtifxerr.ClassCancelled, dtifxerr.CodeCancelled, "pipeline run cancelled", err)
	}
	return nil
}

func flatten(resolved *resolver.ResolvedPlan) []*dtif.TokenSnapshot {
	var snapshots []*dtif.TokenSnapshot
	for i := range resolved.Entries {
		for j := range resolved.Entries[i].Tokens {
			snapshots = append(snapshots, resolved.Entries[i].Tokens[j])
		}
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Pointer < snapshots[j].Pointer })
	return snapshots
}

// errorClass extracts a metrics-friendly class label from err, falling
// back to "unknown" for errors that don't carry one of our classes.
func errorClass(err error) string {
	switch {
	case dtifxerr.IsConfiguration(err):
		return string(dtifxerr.ClassConfiguration)
	case dtifxerr.IsValidation(err):
		return string(dtifxerr.ClassValidation)
	case dtifxerr.IsResolution(err):
		return string(dtifxerr.ClassResolution)
	case dtifxerr.IsStageFailure(err):
		return string(dtifxerr.ClassStageFailure)
	case dtifxerr.IsPolicyRule(err):
		return string(dtifxerr.ClassPolicyRule)
	case dtifxerr.IsDiffStrategy(err):
		return string(dtifxerr.ClassDiffStrategy)
	case dtifxerr.IsCancelled(err):
		return string(dtifxerr.ClassCancelled)
	default:
		return "unknown"
	}
}
