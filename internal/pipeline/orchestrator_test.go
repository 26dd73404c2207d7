package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dependency"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/planner"
	"github.com/bylapidist/dtifx-sub001/internal/resolver"
	"github.com/bylapidist/dtifx-sub001/internal/telemetry"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func noopGlobs(paths map[string][]string) planner.GlobExpander {
	return func(src dtif.Source) ([]string, error) { return paths[src.ID], nil }
}

func loaderFor(docs map[string]dtif.Document) planner.FileLoader {
	return func(path string) (dtif.Document, error) {
		doc, ok := docs[path]
		if !ok {
			return nil, errors.New("no such file: " + path)
		}
		return doc, nil
	}
}

func testTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	tp := sdktrace.NewTracerProvider()
	tracer := telemetry.NewTracer(tp)
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error constructing metrics: %v", err)
	}
	logger := telemetry.NewLogger(nil, false, 0)
	return telemetry.New(telemetry.DefaultConfig(), tracer, metrics, logger)
}

func newOrchestrator(t *testing.T, dependencyPath string, transforms *transform.Executor, formatters *formatter.Executor) (*Orchestrator, planner.Config) {
	t.Helper()
	cfg := planner.Config{
		Layers: []dtif.Layer{{Name: "base", Index: 0}},
		Sources: []dtif.Source{
			{ID: "base-colors", Kind: dtif.SourceKindFile, Layer: "base", RootDir: "."},
		},
	}
	globs := noopGlobs(map[string][]string{"base-colors": {"base.json"}})
	load := loaderFor(map[string]dtif.Document{
		"base.json": {
			"#/color/primary": {Type: "color", Value: "#000000"},
		},
	})

	o := &Orchestrator{
		Planner:    planner.New(globs, load, nil),
		Resolver:   resolver.NewSession(cache.NewDocumentCache(), nil, nil),
		Tracker:    dependency.NewTracker(cache.NewDependencyStore(dependencyPath)),
		Transforms: transforms,
		Formatters: formatters,
		Telemetry:  testTelemetry(t),
	}
	return o, cfg
}

func TestRunIsDeterministicAcrossEmptyCaches(t *testing.T) {
	dir := t.TempDir()
	o1, cfg1 := newOrchestrator(t, filepath.Join(dir, "run1.json"), nil, nil)
	o2, cfg2 := newOrchestrator(t, filepath.Join(dir, "run2.json"), nil, nil)

	r1, err := o1.Run(context.Background(), cfg1, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := o2.Run(context.Background(), cfg2, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r1.Snapshots) != len(r2.Snapshots) {
		t.Fatalf("expected equal snapshot counts, got %d and %d", len(r1.Snapshots), len(r2.Snapshots))
	}
	for i := range r1.Snapshots {
		a, b := r1.Snapshots[i], r2.Snapshots[i]
		if a.Pointer != b.Pointer || a.Resolution.Value != b.Resolution.Value {
			t.Fatalf("expected byte-equal snapshots at index %d, got %+v and %+v", i, a, b)
		}
	}
}

func TestRunTransformCacheHitOnUnchangedPointer(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	def := &transform.Definition{
		ID:       "css.color",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run: func(snap *dtif.TokenSnapshot, options map[string]any) (any, error) {
			calls++
			return snap.Resolution.Value, nil
		},
	}
	executor := transform.NewExecutor(cache.NewTransformCache(""), 2)
	depPath := filepath.Join(dir, "snapshot.json")

	o, cfg := newOrchestrator(t, depPath, executor, nil)
	_, err := o.Run(context.Background(), cfg, Options{IncludeTransforms: true, TransformDefs: []*transform.Definition{def}})
	if err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}

	// Second run over an orchestrator sharing the same dependency store path
	// and the same transform executor (so its transform cache persists).
	o2, cfg2 := newOrchestrator(t, depPath, executor, nil)
	result2, err := o2.Run(context.Background(), cfg2, Options{IncludeTransforms: true, TransformDefs: []*transform.Definition{def}})
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if len(result2.TransformResults) != 1 {
		t.Fatalf("expected 1 transform result, got %d", len(result2.TransformResults))
	}
	if result2.TransformResults[0].CacheStatus != dtif.CacheHit {
		t.Fatalf("expected cache hit on unchanged pointer, got %s", result2.TransformResults[0].CacheStatus)
	}
	if calls != 1 {
		t.Fatalf("expected transform run exactly once across both runs, got %d", calls)
	}
}

// failingFormatterExecutor-backed run: the commit must not happen when a
// downstream stage fails after dependency evaluate.
func TestCommitNotCalledOnDownstreamFailure(t *testing.T) {
	dir := t.TempDir()
	depPath := filepath.Join(dir, "snapshot.json")

	failDef := &formatter.Definition{
		ID:       "css",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run: func(formatter.RunInput) ([]dtif.Artifact, error) {
			return nil, errors.New("formatter boom")
		},
	}
	formatters := formatter.NewExecutor([]*formatter.Definition{failDef}, nil, "dist")

	o, cfg := newOrchestrator(t, depPath, nil, formatters)
	plans := []dtif.FormatterPlan{{ID: "css", Selector: dtif.Selector{Types: []string{"color"}}}}

	_, err := o.Run(context.Background(), cfg, Options{IncludeFormatters: true, FormatterPlans: plans})
	if err == nil {
		t.Fatalf("expected error from failing formatter stage")
	}

	// The dependency store file must not exist: Commit was never called.
	store := cache.NewDependencyStore(depPath)
	diff, evalErr := store.Evaluate(dtif.DependencySnapshot{Version: 1})
	if evalErr != nil {
		t.Fatalf("unexpected error evaluating against persisted snapshot: %v", evalErr)
	}
	if len(diff.Removed) != 0 {
		t.Fatalf("expected no committed entries to have been removed (none should exist), got %v", diff.Removed)
	}

	o2, cfg2 := newOrchestrator(t, depPath, nil, nil)
	result, err := o2.Run(context.Background(), cfg2, Options{})
	if err != nil {
		t.Fatalf("unexpected error on recovery run: %v", err)
	}
	if len(result.DependencyDiff.Changed) != len(result.Snapshots) {
		t.Fatalf("expected every pointer to still read as changed since nothing was ever committed, got %v", result.DependencyDiff.Changed)
	}
}

func TestRunSkipsTransformAndFormatStagesWhenNotIncluded(t *testing.T) {
	dir := t.TempDir()
	o, cfg := newOrchestrator(t, filepath.Join(dir, "snapshot.json"), nil, nil)

	result, err := o.Run(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TransformResults != nil {
		t.Fatalf("expected no transform results when IncludeTransforms is false")
	}
	if result.FormatterResult != nil {
		t.Fatalf("expected no formatter result when IncludeFormatters is false")
	}
}

func TestRunPropagatesAliasResolutionIntoFlattenedSnapshots(t *testing.T) {
	dir := t.TempDir()
	cfg := planner.Config{
		Layers: []dtif.Layer{{Name: "base", Index: 0}},
		Sources: []dtif.Source{
			{ID: "base-colors", Kind: dtif.SourceKindFile, Layer: "base", RootDir: "."},
		},
	}
	globs := noopGlobs(map[string][]string{"base-colors": {"base.json"}})
	load := loaderFor(map[string]dtif.Document{
		"base.json": {
			"#/color/brand":   {Type: "color", Ref: "#/color/primary"},
			"#/color/primary": {Type: "color", Value: "#111111"},
		},
	})
	o := &Orchestrator{
		Planner:    planner.New(globs, load, nil),
		Resolver:   resolver.NewSession(cache.NewDocumentCache(), nil, nil),
		Tracker:    dependency.NewTracker(cache.NewDependencyStore(filepath.Join(dir, "snapshot.json"))),
		Telemetry:  testTelemetry(t),
	}

	result, err := o.Run(context.Background(), cfg, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var brand *dtif.TokenSnapshot
	for _, s := range result.Snapshots {
		if s.Pointer == "#/color/brand" {
			brand = s
		}
	}
	if brand == nil {
		t.Fatalf("expected #/color/brand in flattened snapshots")
	}
	if brand.Resolution.Value != "#111111" {
		t.Fatalf("expected alias-resolved value, got %v", brand.Resolution.Value)
	}
	want := []string{"#/color/brand", "#/color/primary"}
	if len(brand.Resolution.AppliedAliases) != len(want) {
		t.Fatalf("expected applied alias chain %v, got %v", want, brand.Resolution.AppliedAliases)
	}
	for i, p := range want {
		if brand.Resolution.AppliedAliases[i] != p {
			t.Fatalf("expected applied alias chain %v, got %v", want, brand.Resolution.AppliedAliases)
		}
	}
}

func TestRunFailsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	o, cfg := newOrchestrator(t, filepath.Join(dir, "snapshot.json"), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, cfg, Options{})
	if err == nil {
		t.Fatalf("expected error for a pre-cancelled context")
	}
}
