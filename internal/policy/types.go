// Package policy implements the Policy Engine (component K): a registry of
// named rule factories (built-ins, Rego bundles, and WASM plugins),
// constructed from audit configuration and evaluated against a resolved
// token set to aggregate governance violations, per §4.10.
package policy

import (
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// Severity mirrors dtif.Severity but is kept as its own type so policy
// code reads standalone from the dtif package's token-domain vocabulary.
type Severity = dtif.Severity

const (
	SeverityError   = dtif.SeverityError
	SeverityWarning = dtif.SeverityWarning
	SeverityInfo    = dtif.SeverityInfo
)

// Violation is a single governance finding against one token pointer.
type Violation struct {
	Policy   string
	Pointer  string
	Severity Severity
	Message  string
	Details  map[string]any
}

// Context is what a Rule.Run receives: the full resolved snapshot set, the
// config map passed to Engine.Run (the same map for every rule), and a
// diagnostics sink for non-fatal notes.
type Context struct {
	Snapshots   []*dtif.TokenSnapshot
	Config      map[string]any
	Diagnostics func(message string)
}

// Rule is a constructed, ready-to-run policy check. One PolicyEntry may
// expand into more than one Rule (a factory can return several, e.g. one
// per matched selector group).
type Rule struct {
	ID  string
	Run func(ctx Context) ([]Violation, error)
}

// Entry is one audit-config policy entry: a reference to a registered
// policyName plus its options, as parsed from the `policies:` list.
type Entry struct {
	Name    string
	Options map[string]any
}

// FactoryContext is passed to a Factory alongside its Entry so it can
// resolve pointer-typed options relative to the configuration directory.
type FactoryContext struct {
	ConfigDirectory string
	ConfigPath      string
}

// Factory builds zero or more Rules from an Entry.
type Factory func(entry Entry, fctx FactoryContext) ([]Rule, error)

// PolicyReport is one named policy's violations.
type PolicyReport struct {
	Name       string
	Violations []Violation
}

// Summary aggregates counts across every evaluated policy.
type Summary struct {
	PolicyCount    int
	ViolationCount int
	Severity       map[Severity]int
}

// Result is the Policy Engine's overall output, per §4.10's
// `{policies, summary}` shape.
type Result struct {
	Policies []PolicyReport
	Summary  Summary
}

// AuditStatus classifies a Result for exit-code and report purposes.
type AuditStatus string

const (
	AuditStatusError AuditStatus = "error"
	AuditStatusWarn  AuditStatus = "warn"
	AuditStatusOK    AuditStatus = "ok"
)

// Status derives the audit status from r's severity counts: error if any
// error-severity violation exists, warn if any lesser-severity violation
// exists, ok otherwise.
func (r Result) Status() AuditStatus {
	if r.Summary.Severity[SeverityError] > 0 {
		return AuditStatusError
	}
	for sev, count := range r.Summary.Severity {
		if sev != SeverityError && count > 0 {
			return AuditStatusWarn
		}
	}
	return AuditStatusOK
}
