// Package transform runs registered transforms against resolved snapshots,
// consulting the transform cache and bounding parallelism per §4.7.
package transform

import (
	"context"
	"encoding/json"
	"runtime"
	"sort"
	"sync"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Func computes a transform's output for one snapshot.
type Func func(snap *dtif.TokenSnapshot, options map[string]any) (any, error)

// Definition is one registered transform.
type Definition struct {
	ID       string
	Selector dtif.Selector
	Options  map[string]any
	Run      Func
}

// Executor runs every registered transform against every snapshot.
type Executor struct {
	cache       *cache.TransformCache
	parallelism int
}

// NewExecutor constructs an Executor. parallelism <= 0 defaults to the
// number of available cores, per §4.7's max(1, available_cores) bound.
func NewExecutor(c *cache.TransformCache, parallelism int) *Executor {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	if parallelism < 1 {
		parallelism = 1
	}
	return &Executor{cache: c, parallelism: parallelism}
}

type job struct {
	transform *Definition
	snapshot  *dtif.TokenSnapshot
}

// Run executes every (transform, snapshot) pair. changedPointers comes from
// the dependency tracker's diff; a pointer absent from it is eligible for a
// cache hit.
func (e *Executor) Run(ctx context.Context, transforms []*Definition, snapshots []*dtif.TokenSnapshot, changedPointers map[string]struct{}) ([]dtif.TransformResult, error) {
	var jobs []job
	for _, t := range transforms {
		for _, snap := range snapshots {
			jobs = append(jobs, job{transform: t, snapshot: snap})
		}
	}

	results := make([]dtif.TransformResult, len(jobs))
	errs := make([]error, len(jobs))

	sem := make(chan struct{}, e.parallelism)
	var wg sync.WaitGroup
	var firstErrOnce sync.Once
	var firstErr error

	for i, j := range jobs {
		select {
		case <-ctx.Done():
			return nil, dtifxerr.New(dtifxerr.ClassCancelled, dtifxerr.CodeCancelled, "transform execution cancelled").WithCause(ctx.Err())
		default:
		}

		i, j := i, j
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := e.runOne(j, changedPointers)
			results[i] = result
			if err != nil {
				errs[i] = err
				firstErrOnce.Do(func() { firstErr = err })
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeTransformFailure, "transform execution failed", firstErr)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Transform != results[j].Transform {
			return results[i].Transform < results[j].Transform
		}
		return results[i].Pointer < results[j].Pointer
	})
	return results, nil
}

func (e *Executor) runOne(j job, changedPointers map[string]struct{}) (dtif.TransformResult, error) {
	base := dtif.TransformResult{
		Transform: j.transform.ID,
		Pointer:   j.snapshot.Pointer,
		Snapshot:  j.snapshot,
	}

	if !j.transform.Selector.Matches(j.snapshot) {
		base.CacheStatus = dtif.CacheSkip
		return base, nil
	}

	optionsHash := hashOptions(j.transform.Options)
	base.OptionsHash = optionsHash

	_, changed := changedPointers[j.snapshot.Pointer]
	inputHash := hashOptions(j.snapshot.Resolution.Value)
	key := cache.TransformCacheKey(j.transform.ID, j.snapshot.Pointer, inputHash, optionsHash)
	if !changed {
		if cached, ok := e.cache.Get(key); ok {
			base.Output = cached
			base.CacheStatus = dtif.CacheHit
			return base, nil
		}
	}

	output, err := j.transform.Run(j.snapshot, j.transform.Options)
	if err != nil {
		return base, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeTransformFailure, "transform run failed", err).
			WithPointer(j.snapshot.Pointer).WithContext("transform", j.transform.ID)
	}
	if err := e.cache.Set(key, output); err != nil {
		return base, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeTransformFailure, "transform cache write failed", err).
			WithPointer(j.snapshot.Pointer)
	}

	base.Output = output
	base.CacheStatus = dtif.CacheMiss
	return base, nil
}

// hashOptions produces a stable string form of any JSON-marshalable value,
// used both for a transform's options hash and a snapshot's input hash.
func hashOptions(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
