package policy

import (
	"fmt"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// Engine runs a fixed set of constructed Rules against a snapshot set and
// aggregates their violations, per §4.10's Engine.run.
type Engine struct {
	rules []namedRule
}

type namedRule struct {
	policy string
	rule   Rule
}

// NewEngine constructs an Engine from rules built by Registry.Build,
// grouping them by the policy entry that produced each (a factory may
// expand one entry into several rules sharing the entry's name).
func NewEngine(entries []Entry, rules []Rule) *Engine {
	// rules are built in entry order, one-to-many; Registry.Build does not
	// track which entry produced which rule, so policy.Rule.ID (set to the
	// entry name by every built-in factory) is what groups them.
	return &Engine{rules: namedRulesFrom(rules)}
}

func namedRulesFrom(rules []Rule) []namedRule {
	out := make([]namedRule, len(rules))
	for i, r := range rules {
		out[i] = namedRule{policy: r.ID, rule: r}
	}
	return out
}

// Run executes every rule, aggregating violations per policy name and an
// overall summary. A rule that returns an error is itself reported as a
// severity-error violation against a synthetic pointer and does not abort
// the remaining rules.
func (e *Engine) Run(snapshots []*dtif.TokenSnapshot, config map[string]any, diagnostics func(string)) Result {
	byPolicy := make(map[string][]Violation)
	var order []string
	seen := make(map[string]bool)

	ctx := Context{Snapshots: snapshots, Config: config, Diagnostics: diagnostics}

	for _, nr := range e.rules {
		if !seen[nr.policy] {
			seen[nr.policy] = true
			order = append(order, nr.policy)
		}
		violations, err := nr.rule.Run(ctx)
		if err != nil {
			violations = append(violations, Violation{
				Policy:   nr.policy,
				Pointer:  fmt.Sprintf("#/__policy_errors/%s", nr.policy),
				Severity: SeverityError,
				Message:  "rule evaluation failed: " + err.Error(),
			})
		}
		byPolicy[nr.policy] = append(byPolicy[nr.policy], violations...)
	}

	summary := Summary{Severity: map[Severity]int{}}
	reports := make([]PolicyReport, 0, len(order))
	for _, name := range order {
		violations := byPolicy[name]
		reports = append(reports, PolicyReport{Name: name, Violations: violations})
		summary.PolicyCount++
		summary.ViolationCount += len(violations)
		for _, v := range violations {
			summary.Severity[v.Severity]++
		}
	}

	return Result{Policies: reports, Summary: summary}
}
