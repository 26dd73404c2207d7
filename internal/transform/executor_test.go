package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func colorSnapshot(pointer, value string) *dtif.TokenSnapshot {
	return &dtif.TokenSnapshot{
		Pointer:    pointer,
		Token:      dtif.RawToken{Type: "color", Value: value},
		Resolution: dtif.Resolution{Value: value},
	}
}

func TestExecutorCacheMissThenHit(t *testing.T) {
	c := cache.NewTransformCache("")
	calls := 0
	def := &Definition{
		ID:       "css.color",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run: func(snap *dtif.TokenSnapshot, options map[string]any) (any, error) {
			calls++
			return snap.Resolution.Value, nil
		},
	}
	e := NewExecutor(c, 2)
	snaps := []*dtif.TokenSnapshot{colorSnapshot("#/a", "#000")}

	results, err := e.Run(context.Background(), []*Definition{def}, snaps, map[string]struct{}{"#/a": {}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].CacheStatus != dtif.CacheMiss {
		t.Fatalf("expected miss on first (changed) run, got %s", results[0].CacheStatus)
	}

	results2, err := e.Run(context.Background(), []*Definition{def}, snaps, map[string]struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results2[0].CacheStatus != dtif.CacheHit {
		t.Fatalf("expected hit on second (unchanged) run, got %s", results2[0].CacheStatus)
	}
	if calls != 1 {
		t.Fatalf("expected transform run exactly once, got %d", calls)
	}
}

func TestExecutorSkipsNonMatchingSelector(t *testing.T) {
	c := cache.NewTransformCache("")
	def := &Definition{
		ID:       "css.dimension",
		Selector: dtif.Selector{Types: []string{"dimension"}},
		Run:      func(*dtif.TokenSnapshot, map[string]any) (any, error) { return nil, nil },
	}
	e := NewExecutor(c, 1)
	results, err := e.Run(context.Background(), []*Definition{def}, []*dtif.TokenSnapshot{colorSnapshot("#/a", "#000")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].CacheStatus != dtif.CacheSkip {
		t.Fatalf("expected skip for non-matching selector, got %s", results[0].CacheStatus)
	}
}

func TestExecutorPropagatesFirstError(t *testing.T) {
	c := cache.NewTransformCache("")
	boom := errors.New("boom")
	def := &Definition{
		ID:       "css.color",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run:      func(*dtif.TokenSnapshot, map[string]any) (any, error) { return nil, boom },
	}
	e := NewExecutor(c, 4)
	_, err := e.Run(context.Background(), []*Definition{def}, []*dtif.TokenSnapshot{colorSnapshot("#/a", "#000")}, map[string]struct{}{"#/a": {}})
	if err == nil {
		t.Fatalf("expected propagated error")
	}
}

func TestExecutorDeterministicOrdering(t *testing.T) {
	c := cache.NewTransformCache("")
	def := &Definition{
		ID:       "css.color",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run:      func(snap *dtif.TokenSnapshot, options map[string]any) (any, error) { return snap.Resolution.Value, nil },
	}
	e := NewExecutor(c, 8)
	snaps := []*dtif.TokenSnapshot{
		colorSnapshot("#/z", "#111"),
		colorSnapshot("#/a", "#000"),
		colorSnapshot("#/m", "#222"),
	}
	changed := map[string]struct{}{"#/z": {}, "#/a": {}, "#/m": {}}
	results, err := e.Run(context.Background(), []*Definition{def}, snaps, changed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Pointer != "#/a" || results[1].Pointer != "#/m" || results[2].Pointer != "#/z" {
		t.Fatalf("expected results sorted by pointer, got %v, %v, %v", results[0].Pointer, results[1].Pointer, results[2].Pointer)
	}
}
