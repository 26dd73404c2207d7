package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// RegoRule is a secondary rule kind, additive to the five named built-ins:
// a governance check expressed as a Rego module evaluating a `deny` set
// over the resolved snapshot list, queried as `data.<package>.deny`.
type RegoRule struct {
	Name     string
	Package  string
	Module   string
	Severity Severity
}

// regoInput is the document a RegoRule's Rego module sees as `input`.
type regoInput struct {
	Tokens []regoToken `json:"tokens"`
}

type regoToken struct {
	Pointer    string         `json:"pointer"`
	Type       string         `json:"type"`
	Value      any            `json:"value"`
	Deprecated bool           `json:"deprecated"`
	Tags       []string       `json:"tags"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// Factory builds one Rule that evaluates the Rego module's deny set
// against every snapshot as a single batch input, per the engine.go
// evaluatePolicy grounding pattern (query `data.<package>.deny`).
func (r RegoRule) Factory() Factory {
	return func(entry Entry, fctx FactoryContext) ([]Rule, error) {
		query := fmt.Sprintf("data.%s.deny", r.Package)
		prepared, err := rego.New(
			rego.Module(r.Name+".rego", r.Module),
			rego.Query(query),
		).PrepareForEval(context.Background())
		if err != nil {
			return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeInvalidOptions,
				"failed to compile rego policy module", err).WithContext("policy", r.Name)
		}

		severity := r.Severity
		if severity == "" {
			severity = SeverityError
		}

		return []Rule{{ID: r.Name, Run: func(ctx Context) ([]Violation, error) {
			input := toRegoInput(ctx.Snapshots)
			results, err := prepared.Eval(context.Background(), rego.EvalInput(input))
			if err != nil {
				return nil, dtifxerr.Wrap(dtifxerr.ClassPolicyRule, dtifxerr.CodeRuleEvaluationFailed,
					"rego evaluation failed", err).WithContext("policy", r.Name)
			}
			return extractRegoViolations(r.Name, severity, results), nil
		}}}, nil
	}
}

func toRegoInput(snapshots []*dtif.TokenSnapshot) regoInput {
	tokens := make([]regoToken, 0, len(snapshots))
	for _, snap := range snapshots {
		t := regoToken{
			Pointer: snap.Pointer,
			Type:    snap.Token.Type,
			Value:   snap.Resolution.Value,
		}
		if snap.Token.Metadata != nil {
			t.Deprecated = snap.Token.Metadata.Deprecated != nil
			t.Tags = snap.Token.Metadata.Tags
			if len(snap.Token.Metadata.Extensions) > 0 {
				t.Extensions = make(map[string]any, len(snap.Token.Metadata.Extensions))
				for ns, fields := range snap.Token.Metadata.Extensions {
					t.Extensions[ns] = fields
				}
			}
		}
		tokens = append(tokens, t)
	}
	return regoInput{Tokens: tokens}
}

func extractRegoViolations(policyName string, severity Severity, results rego.ResultSet) []Violation {
	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]any)
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, regoViolationFrom(policyName, severity, d))
		}
	}
	return violations
}

func regoViolationFrom(policyName string, severity Severity, raw any) Violation {
	v := Violation{Policy: policyName, Severity: severity}
	switch value := raw.(type) {
	case string:
		v.Message = value
	case map[string]any:
		if msg, ok := value["message"].(string); ok {
			v.Message = msg
		}
		if pointer, ok := value["pointer"].(string); ok {
			v.Pointer = pointer
		}
		if sev, ok := value["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		v.Details = value
	default:
		v.Message = fmt.Sprintf("%v", value)
	}
	return v
}
