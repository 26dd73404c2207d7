package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// optionSchema enumerates the known keys of a built-in's options and which
// are mandatory. Any key outside the set fails with a TypeError; any
// missing required key likewise fails, per §4.10's strict option parsing.
type optionSchema struct {
	known    map[string]struct{}
	required []string
}

func schema(known []string, required ...string) optionSchema {
	s := optionSchema{known: make(map[string]struct{}, len(known))}
	for _, k := range known {
		s.known[k] = struct{}{}
	}
	s.required = required
	return s
}

func (s optionSchema) validate(options map[string]any) error {
	for k := range options {
		if _, ok := s.known[k]; !ok {
			return dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeInvalidOptions,
				"unknown policy option: "+k)
		}
	}
	for _, req := range s.required {
		if _, ok := options[req]; !ok {
			return dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeInvalidOptions,
				"missing required policy option: "+req)
		}
	}
	return nil
}

func stringOption(options map[string]any, key, fallback string) string {
	if v, ok := options[key].(string); ok {
		return v
	}
	return fallback
}

func selectorOption(options map[string]any) dtif.Selector {
	sel := dtif.Selector{}
	if types, ok := options["types"].([]string); ok {
		sel.Types = types
	} else if raw, ok := options["types"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				sel.Types = append(sel.Types, s)
			}
		}
	}
	return sel
}

// resolvePointerOption implements §4.10's pointer-option resolution rule:
// absolute pointers (starting with "#/") pass through unchanged; anything
// else is treated as a path relative to the configuration directory and
// turned into a file:// URL with an optional "#pointer" fragment.
func resolvePointerOption(value string, fctx FactoryContext) string {
	if strings.HasPrefix(value, "#/") {
		return value
	}
	if idx := strings.Index(value, "#"); idx >= 0 {
		path, fragment := value[:idx], value[idx:]
		return "file://" + strings.TrimSuffix(fctx.ConfigDirectory, "/") + "/" + strings.TrimPrefix(path, "/") + fragment
	}
	return "file://" + strings.TrimSuffix(fctx.ConfigDirectory, "/") + "/" + strings.TrimPrefix(value, "/")
}

func findSnapshot(snapshots []*dtif.TokenSnapshot, pointer string) *dtif.TokenSnapshot {
	for _, s := range snapshots {
		if s.Pointer == pointer || s.SourcePointer == pointer {
			return s
		}
	}
	return nil
}

// requireOwnerFactory enforces that every matched token declares a
// non-empty Metadata.Author.
func requireOwnerFactory(entry Entry, fctx FactoryContext) ([]Rule, error) {
	s := schema([]string{"types", "severity"})
	if err := s.validate(entry.Options); err != nil {
		return nil, err
	}
	sel := selectorOption(entry.Options)
	severity := Severity(stringOption(entry.Options, "severity", string(SeverityError)))

	return []Rule{{ID: entry.Name, Run: func(ctx Context) ([]Violation, error) {
		var violations []Violation
		for _, snap := range ctx.Snapshots {
			if !sel.Matches(snap) {
				continue
			}
			if snap.Token.Metadata == nil || snap.Token.Metadata.Author == "" {
				violations = append(violations, Violation{
					Policy: entry.Name, Pointer: snap.Pointer, Severity: severity,
					Message: "token has no declared owner",
				})
			}
		}
		return violations, nil
	}}}, nil
}

// deprecationHasReplacementFactory requires every deprecated token to name
// a SupersededBy replacement pointer that actually exists.
func deprecationHasReplacementFactory(entry Entry, fctx FactoryContext) ([]Rule, error) {
	s := schema([]string{"types", "severity"})
	if err := s.validate(entry.Options); err != nil {
		return nil, err
	}
	sel := selectorOption(entry.Options)
	severity := Severity(stringOption(entry.Options, "severity", string(SeverityError)))

	return []Rule{{ID: entry.Name, Run: func(ctx Context) ([]Violation, error) {
		var violations []Violation
		for _, snap := range ctx.Snapshots {
			if !sel.Matches(snap) {
				continue
			}
			dep := snap.Token.Metadata
			if dep == nil || dep.Deprecated == nil {
				continue
			}
			if dep.Deprecated.SupersededBy == "" {
				violations = append(violations, Violation{
					Policy: entry.Name, Pointer: snap.Pointer, Severity: severity,
					Message: "deprecated token has no supersededBy replacement",
				})
				continue
			}
			if findSnapshot(ctx.Snapshots, dep.Deprecated.SupersededBy) == nil {
				violations = append(violations, Violation{
					Policy: entry.Name, Pointer: snap.Pointer, Severity: severity,
					Message: "deprecated token's replacement does not exist: " + dep.Deprecated.SupersededBy,
				})
			}
		}
		return violations, nil
	}}}, nil
}

// requireTagFactory requires every matched token to carry a specific tag.
func requireTagFactory(entry Entry, fctx FactoryContext) ([]Rule, error) {
	s := schema([]string{"types", "tag", "severity"}, "tag")
	if err := s.validate(entry.Options); err != nil {
		return nil, err
	}
	sel := selectorOption(entry.Options)
	tag := stringOption(entry.Options, "tag", "")
	severity := Severity(stringOption(entry.Options, "severity", string(SeverityWarning)))

	return []Rule{{ID: entry.Name, Run: func(ctx Context) ([]Violation, error) {
		var violations []Violation
		for _, snap := range ctx.Snapshots {
			if !sel.Matches(snap) {
				continue
			}
			if snap.Token.Metadata != nil && containsString(snap.Token.Metadata.Tags, tag) {
				continue
			}
			violations = append(violations, Violation{
				Policy: entry.Name, Pointer: snap.Pointer, Severity: severity,
				Message: fmt.Sprintf("token is missing required tag %q", tag),
			})
		}
		return violations, nil
	}}}, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// requireOverrideApprovalFactory requires tokens carrying an "override"
// extension to also carry an approval entry under the same extension
// namespace.
func requireOverrideApprovalFactory(entry Entry, fctx FactoryContext) ([]Rule, error) {
	s := schema([]string{"types", "namespace", "severity"})
	if err := s.validate(entry.Options); err != nil {
		return nil, err
	}
	sel := selectorOption(entry.Options)
	namespace := stringOption(entry.Options, "namespace", "governance")
	severity := Severity(stringOption(entry.Options, "severity", string(SeverityError)))

	return []Rule{{ID: entry.Name, Run: func(ctx Context) ([]Violation, error) {
		var violations []Violation
		for _, snap := range ctx.Snapshots {
			if !sel.Matches(snap) {
				continue
			}
			if snap.Token.Metadata == nil || snap.Token.Metadata.Extensions == nil {
				continue
			}
			ext, ok := snap.Token.Metadata.Extensions[namespace]
			if !ok {
				continue
			}
			if _, hasOverride := ext["override"]; !hasOverride {
				continue
			}
			if _, approved := ext["approvedBy"]; !approved {
				violations = append(violations, Violation{
					Policy: entry.Name, Pointer: snap.Pointer, Severity: severity,
					Message: "override is missing an approvedBy extension entry",
				})
			}
		}
		return violations, nil
	}}}, nil
}

// wcagContrastFactory enforces a minimum WCAG contrast ratio between a
// foreground and background color token, per §4.10's pointer-typed option
// resolution.
func wcagContrastFactory(entry Entry, fctx FactoryContext) ([]Rule, error) {
	s := schema([]string{"foreground", "background", "minimumRatio", "severity"}, "foreground", "background")
	if err := s.validate(entry.Options); err != nil {
		return nil, err
	}
	fg := resolvePointerOption(stringOption(entry.Options, "foreground", ""), fctx)
	bg := resolvePointerOption(stringOption(entry.Options, "background", ""), fctx)
	minRatio := 4.5
	if v, ok := entry.Options["minimumRatio"]; ok {
		switch n := v.(type) {
		case float64:
			minRatio = n
		case string:
			if parsed, err := strconv.ParseFloat(n, 64); err == nil {
				minRatio = parsed
			}
		}
	}
	severity := Severity(stringOption(entry.Options, "severity", string(SeverityError)))

	return []Rule{{ID: entry.Name, Run: func(ctx Context) ([]Violation, error) {
		fgSnap := findSnapshot(ctx.Snapshots, fg)
		bgSnap := findSnapshot(ctx.Snapshots, bg)
		if fgSnap == nil || bgSnap == nil {
			return []Violation{{
				Policy: entry.Name, Pointer: fg, Severity: SeverityError,
				Message: "wcagContrast: foreground or background pointer not found",
			}}, nil
		}

		ratio, err := contrastRatio(fgSnap.Resolution.Value, bgSnap.Resolution.Value)
		if err != nil {
			return []Violation{{
				Policy: entry.Name, Pointer: fgSnap.Pointer, Severity: SeverityError,
				Message: "wcagContrast: " + err.Error(),
			}}, nil
		}
		if ratio < minRatio {
			return []Violation{{
				Policy: entry.Name, Pointer: fgSnap.Pointer, Severity: severity,
				Message: fmt.Sprintf("contrast ratio %.2f is below the required %.2f", ratio, minRatio),
				Details: map[string]any{"ratio": ratio, "minimumRatio": minRatio, "background": bgSnap.Pointer},
			}}, nil
		}
		return nil, nil
	}}}, nil
}

// contrastRatio computes the WCAG 2.x relative-luminance contrast ratio
// between two sRGB hex color values.
func contrastRatio(fg, bg any) (float64, error) {
	fgLum, err := relativeLuminance(fg)
	if err != nil {
		return 0, err
	}
	bgLum, err := relativeLuminance(bg)
	if err != nil {
		return 0, err
	}
	lighter, darker := fgLum, bgLum
	if darker > lighter {
		lighter, darker = darker, lighter
	}
	return (lighter + 0.05) / (darker + 0.05), nil
}

func relativeLuminance(value any) (float64, error) {
	hex, ok := value.(string)
	if !ok {
		return 0, fmt.Errorf("expected a hex color string, got %T", value)
	}
	r, g, b, err := parseHexColor(hex)
	if err != nil {
		return 0, err
	}
	lin := func(c float64) float64 {
		if c <= 0.03928 {
			return c / 12.92
		}
		return math.Pow((c+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(r) + 0.7152*lin(g) + 0.0722*lin(b), nil
}

func parseHexColor(hex string) (r, g, b float64, err error) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		expanded := make([]byte, 0, 6)
		for i := 0; i < 3; i++ {
			expanded = append(expanded, hex[i], hex[i])
		}
		hex = string(expanded)
	}
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q", hex)
	}
	ri, err := strconv.ParseUint(hex[0:2], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q", hex)
	}
	gi, err := strconv.ParseUint(hex[2:4], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q", hex)
	}
	bi, err := strconv.ParseUint(hex[4:6], 16, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid hex color: %q", hex)
	}
	return float64(ri) / 255.0, float64(gi) / 255.0, float64(bi) / 255.0, nil
}
