// Package dtifxerr provides the classified error taxonomy used across the
// DTIFX build pipeline, policy engine, and diff engine.
package dtifxerr

import (
	"errors"
	"fmt"
)

// Class classifies an error for propagation and reporting purposes, per the
// error handling design's fixed taxonomy.
type Class string

const (
	// ClassConfiguration covers unknown layer/policy/transform/formatter
	// names, invalid options, and unsupported plugin specifier schemes.
	// Fatal pre-run.
	ClassConfiguration Class = "configuration"

	// ClassValidation covers DTIF schema failures aggregated per source.
	// Fatal with a structured list.
	ClassValidation Class = "validation"

	// ClassResolution covers missing alias targets, alias cycles, and
	// parser diagnostics at error severity. Fatal mid-pipeline.
	ClassResolution Class = "resolution"

	// ClassStageFailure covers any unhandled error from the planner,
	// resolver, transform executor, formatter executor, or dependency
	// tracker.
	ClassStageFailure Class = "stage-failure"

	// ClassCacheCorruption marks an error that must never propagate: a
	// corrupt cache entry is always downgraded to a miss by the caller.
	ClassCacheCorruption Class = "cache-corruption"

	// ClassPolicyRule covers an error raised while evaluating a single
	// policy rule; it is converted to a synthetic violation and does not
	// abort other rules.
	ClassPolicyRule Class = "policy-rule"

	// ClassDiffStrategy covers an error from a rename/impact/summary
	// strategy plugin. Fatal to the diff run.
	ClassDiffStrategy Class = "diff-strategy"

	// ClassCancelled marks a stage aborted by orchestrator cancellation.
	ClassCancelled Class = "cancelled"
)

// Error is the single error type returned by every exported pipeline,
// policy, and diff function.
type Error struct {
	Class   Class
	Code    string
	Message string
	Cause   error
	Context map[string]any

	// Pointer, when set, identifies the token pointer the error concerns.
	Pointer string

	// Retryable marks errors a caller may choose to retry. Nothing in the
	// engine itself retries; this exists for callers layering retry
	// policy on top (e.g. a watch-mode driver).
	Retryable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("[%s] %s (pointer=%s): %s", e.Class, e.Message, e.Pointer, e.causeMessage())
	}
	return fmt.Sprintf("[%s] %s: %s", e.Class, e.Message, e.causeMessage())
}

func (e *Error) causeMessage() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "no underlying cause"
}

// Unwrap exposes the underlying cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is compares errors by class and code, letting callers match broad error
// families without constructing a full Error value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return e.Class == t.Class
}

// New constructs a classified error.
func New(class Class, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

// Wrap constructs a classified error around an existing cause.
func Wrap(class Class, code, message string, cause error) *Error {
	return &Error{Class: class, Code: code, Message: message, Cause: cause}
}

// WithContext attaches structured context and returns the receiver for
// chaining.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithPointer attaches the offending token pointer.
func (e *Error) WithPointer(pointer string) *Error {
	e.Pointer = pointer
	return e
}

// WithCause attaches or replaces the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// Retry marks the error retryable and returns the receiver.
func (e *Error) Retry() *Error {
	e.Retryable = true
	return e
}

// classOf extracts the Class of err if it is (or wraps) an *Error.
func classOf(err error) (Class, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsConfiguration reports whether err is a configuration-class error.
func IsConfiguration(err error) bool { c, ok := classOf(err); return ok && c == ClassConfiguration }

// IsValidation reports whether err is a validation-class error.
func IsValidation(err error) bool { c, ok := classOf(err); return ok && c == ClassValidation }

// IsResolution reports whether err is a resolution-class error.
func IsResolution(err error) bool { c, ok := classOf(err); return ok && c == ClassResolution }

// IsStageFailure reports whether err is a stage-failure-class error.
func IsStageFailure(err error) bool { c, ok := classOf(err); return ok && c == ClassStageFailure }

// IsPolicyRule reports whether err is a policy-rule-class error.
func IsPolicyRule(err error) bool { c, ok := classOf(err); return ok && c == ClassPolicyRule }

// IsDiffStrategy reports whether err is a diff-strategy-class error.
func IsDiffStrategy(err error) bool { c, ok := classOf(err); return ok && c == ClassDiffStrategy }

// IsCancelled reports whether err is a cancellation-class error.
func IsCancelled(err error) bool { c, ok := classOf(err); return ok && c == ClassCancelled }

// IsFatal reports whether err belongs to a class that must abort the
// current pipeline run. Cache corruption and policy-rule errors are
// explicitly excluded: the former is always absorbed into a cache miss by
// the caller, the latter is converted to a violation.
func IsFatal(err error) bool {
	c, ok := classOf(err)
	if !ok {
		return false
	}
	switch c {
	case ClassCacheCorruption, ClassPolicyRule:
		return false
	default:
		return true
	}
}

// IsRetryable reports whether the error was explicitly marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// Common error codes referenced throughout the pipeline.
const (
	CodeUnknownLayer          = "UNKNOWN_LAYER"
	CodeDuplicatePolicyName   = "DUPLICATE_POLICY_NAME"
	CodeUnknownPolicy         = "UNKNOWN_POLICY"
	CodeUnknownTransform      = "UNKNOWN_TRANSFORM"
	CodeUnknownFormatter      = "UNKNOWN_FORMATTER"
	CodeInvalidOptions        = "INVALID_OPTIONS"
	CodeUnsupportedSpecifier  = "UNSUPPORTED_SPECIFIER_SCHEME"
	CodeSchemaValidation      = "SCHEMA_VALIDATION"
	CodeMissingAliasTarget    = "MISSING_ALIAS_TARGET"
	CodeAliasCycle            = "DTIF4010"
	CodeParserDiagnostic      = "PARSER_DIAGNOSTIC"
	CodePlannerFailure        = "PLANNER_FAILURE"
	CodeResolverFailure       = "RESOLVER_FAILURE"
	CodeTransformFailure      = "TRANSFORM_FAILURE"
	CodeFormatterFailure      = "FORMATTER_FAILURE"
	CodeDependencyFailure     = "DEPENDENCY_FAILURE"
	CodeCacheCorrupt          = "CACHE_CORRUPT"
	CodeRuleEvaluationFailed  = "RULE_EVALUATION_FAILED"
	CodeStrategyFailure       = "STRATEGY_FAILURE"
	CodeCancelled             = "CANCELLED"
	CodeConfigNotFound        = "CONFIG_NOT_FOUND"
	CodeConfigInvalid         = "CONFIG_INVALID"
)
