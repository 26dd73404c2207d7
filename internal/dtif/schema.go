package dtif

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// tokenSchema is the DTIF token shape §4.4 requires every plan entry's
// document to be checked against: a token is either an alias (carries
// `ref`) or a direct value (carries a non-empty `type`).
const tokenSchema = `
#Token: {
	ref: string
} | {
	type:   string & !=""
	value?: _
}
`

// Schema compiles the DTIF token shape once and validates documents
// against it, reusing the config-parsing dependency (cuelang.org/go) for a
// second purpose rather than hand-rolling a JSON schema checker.
type Schema struct {
	ctx     *cue.Context
	tokenDef cue.Value
}

// NewSchema compiles the DTIF token shape.
func NewSchema() (*Schema, error) {
	ctx := cuecontext.New()
	compiled := ctx.CompileString(tokenSchema)
	if compiled.Err() != nil {
		return nil, fmt.Errorf("failed to compile DTIF token schema: %w", compiled.Err())
	}
	return &Schema{ctx: ctx, tokenDef: compiled.LookupPath(cue.ParsePath("#Token"))}, nil
}

// Validate implements planner.Validator: it checks every token in doc
// against the DTIF token shape, aggregating one message per violation
// rather than failing on the first, per §4.4's "collect all errors"
// requirement.
func (s *Schema) Validate(doc Document) []string {
	var errs []string
	for pointer, token := range doc {
		fields := map[string]any{}
		if token.Ref != "" {
			fields["ref"] = token.Ref
		} else {
			fields["type"] = token.Type
			if token.Value != nil {
				fields["value"] = token.Value
			}
		}
		encoded := s.ctx.Encode(fields)
		unified := s.tokenDef.Unify(encoded)
		if err := unified.Validate(cue.Concrete(false)); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", pointer, err.Error()))
		}
	}
	return errs
}
