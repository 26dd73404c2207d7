package policy

import (
	"errors"
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func TestEngineAggregatesViolationsAndSummary(t *testing.T) {
	registry := NewRegistry()
	if err := RegisterBuiltins(registry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := []Entry{
		{Name: "governance.requireOwner"},
		{Name: "governance.requireTag", Options: map[string]any{"tag": "stable"}},
	}
	rules, err := registry.Build(entries, FactoryContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine := NewEngine(entries, rules)

	snap := colorSnap("#/a", "#000")
	result := engine.Run([]*dtif.TokenSnapshot{snap}, nil, nil)

	if result.Summary.PolicyCount != 2 {
		t.Fatalf("expected 2 policies evaluated, got %d", result.Summary.PolicyCount)
	}
	if result.Summary.ViolationCount != 2 {
		t.Fatalf("expected 2 violations (missing owner + missing tag), got %d", result.Summary.ViolationCount)
	}
	if result.Status() != AuditStatusError {
		t.Fatalf("expected audit status error, got %s", result.Status())
	}
}

func TestEngineRuleErrorBecomesViolationAndDoesNotAbort(t *testing.T) {
	boom := errors.New("boom")
	rules := []Rule{
		{ID: "custom.failing", Run: func(Context) ([]Violation, error) { return nil, boom }},
		{ID: "custom.passing", Run: func(Context) ([]Violation, error) { return nil, nil }},
	}
	engine := NewEngine(nil, rules)
	result := engine.Run(nil, nil, nil)

	if result.Summary.PolicyCount != 2 {
		t.Fatalf("expected both policies counted despite one erroring, got %d", result.Summary.PolicyCount)
	}
	if result.Summary.Severity[SeverityError] != 1 {
		t.Fatalf("expected 1 error-severity violation from the failing rule, got %d", result.Summary.Severity[SeverityError])
	}
}

func TestResultStatusOK(t *testing.T) {
	result := Result{Summary: Summary{Severity: map[Severity]int{}}}
	if result.Status() != AuditStatusOK {
		t.Fatalf("expected ok status for zero violations, got %s", result.Status())
	}
}

func TestResultStatusWarn(t *testing.T) {
	result := Result{Summary: Summary{Severity: map[Severity]int{SeverityWarning: 1}}}
	if result.Status() != AuditStatusWarn {
		t.Fatalf("expected warn status, got %s", result.Status())
	}
}
