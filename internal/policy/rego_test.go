package policy

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

const denyDeprecatedRego = `
package dtifx.policies.no_deprecated

deny[msg] {
	input.tokens[i].deprecated == true
	msg := {"message": "token is deprecated", "pointer": input.tokens[i].pointer}
}
`

func TestRegoRuleFlagsDeprecatedTokens(t *testing.T) {
	r := RegoRule{Name: "custom.noDeprecated", Package: "dtifx.policies.no_deprecated", Module: denyDeprecatedRego}
	rules, err := r.Factory()(Entry{Name: r.Name}, FactoryContext{})
	if err != nil {
		t.Fatalf("unexpected error compiling rego module: %v", err)
	}

	deprecated := colorSnap("#/old", "#000")
	deprecated.Token.Metadata = &dtif.Metadata{Deprecated: &dtif.Deprecation{SupersededBy: "#/new"}}
	fresh := colorSnap("#/new", "#111")

	violations, err := rules[0].Run(Context{Snapshots: []*dtif.TokenSnapshot{deprecated, fresh}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation for the deprecated token, got %d", len(violations))
	}
	if violations[0].Pointer != "#/old" {
		t.Fatalf("expected violation pointer #/old, got %q", violations[0].Pointer)
	}
}
