package formatter

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func snap(pointer string) *dtif.TokenSnapshot {
	return &dtif.TokenSnapshot{
		Pointer:    pointer,
		Token:      dtif.RawToken{Type: "color"},
		Resolution: dtif.Resolution{Value: "#000"},
	}
}

func TestExecutorJoinsTransformOutputs(t *testing.T) {
	var captured []Token
	def := &Definition{
		ID:       "css",
		Name:     "CSS Variables",
		Selector: dtif.Selector{Types: []string{"color"}},
		Run: func(input RunInput) ([]dtif.Artifact, error) {
			captured = input.Tokens
			return []dtif.Artifact{{Path: "tokens.css", Contents: []byte(":root{}")}}, nil
		},
	}
	e := NewExecutor([]*Definition{def}, nil, "dist")

	plans := []dtif.FormatterPlan{{ID: "css", Name: "CSS Variables", Selector: dtif.Selector{Types: []string{"color"}}}}
	snapshots := []*dtif.TokenSnapshot{snap("#/a")}
	transforms := []dtif.TransformResult{{Transform: "css.color", Pointer: "#/a", Output: "rgb(0,0,0)", CacheStatus: dtif.CacheMiss}}

	result, err := e.Run(plans, snapshots, transforms)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(captured) != 1 || captured[0].Transforms["css.color"] != "rgb(0,0,0)" {
		t.Fatalf("expected joined transform output, got %+v", captured)
	}
	if len(result.Artifacts) != 1 {
		t.Fatalf("expected 1 artifact, got %d", len(result.Artifacts))
	}
}

func TestExecutorRejectsUnknownOptions(t *testing.T) {
	def := &Definition{
		ID:     "css",
		Schema: OptionSchema{"indent": {}},
		Run:    func(RunInput) ([]dtif.Artifact, error) { return nil, nil },
	}
	e := NewExecutor([]*Definition{def}, nil, "dist")
	plans := []dtif.FormatterPlan{{
		ID:     "css",
		Output: dtif.FormatterOutputConfig{Options: map[string]any{"unknownKey": true}},
	}}
	_, err := e.Run(plans, nil, nil)
	if err == nil {
		t.Fatalf("expected error for unknown option key")
	}
}

func TestExecutorWritesArtifacts(t *testing.T) {
	var writtenPath string
	var writtenContents []byte
	def := &Definition{
		ID: "css",
		Run: func(RunInput) ([]dtif.Artifact, error) {
			return []dtif.Artifact{{Path: "out.css", Contents: []byte("body{}")}}, nil
		},
	}
	writer := func(path string, contents []byte) error {
		writtenPath = path
		writtenContents = contents
		return nil
	}
	e := NewExecutor([]*Definition{def}, writer, "dist")
	plans := []dtif.FormatterPlan{{ID: "css"}}
	result, err := e.Run(plans, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if writtenPath == "" || string(writtenContents) != "body{}" {
		t.Fatalf("expected artifact written, got path=%q contents=%q", writtenPath, writtenContents)
	}
	if len(result.Writes) != 1 {
		t.Fatalf("expected 1 tracked write, got %d", len(result.Writes))
	}
}

func TestExecutorDetectsPathCollision(t *testing.T) {
	defA := &Definition{ID: "a", Run: func(RunInput) ([]dtif.Artifact, error) {
		return []dtif.Artifact{{Path: "out.css"}}, nil
	}}
	defB := &Definition{ID: "b", Run: func(RunInput) ([]dtif.Artifact, error) {
		return []dtif.Artifact{{Path: "out.css"}}, nil
	}}
	e := NewExecutor([]*Definition{defA, defB}, nil, "dist")
	plans := []dtif.FormatterPlan{{ID: "a"}, {ID: "b"}}
	_, err := e.Run(plans, nil, nil)
	if err == nil {
		t.Fatalf("expected error for colliding artifact paths")
	}
}
