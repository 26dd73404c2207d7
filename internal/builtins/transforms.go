// Package builtins supplies the first-party transform and formatter
// definitions the CLI registers by default: a platform-naming transform
// per target (CSS custom properties, SwiftUI, Android resources) and a
// matching formatter that renders the joined transform output to a single
// artifact file, per the overview's "applies CSS/SwiftUI/Android
// transforms, runs formatters" description.
package builtins

import (
	"fmt"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

// Transforms returns the built-in transform definitions, unkeyed by any
// configuration: a build's `transforms.entries` list selects which of
// these (by ID) actually run.
func Transforms() []*transform.Definition {
	return []*transform.Definition{
		{ID: "css.customProperty", Run: cssCustomProperty},
		{ID: "swiftui.token", Run: swiftUIToken},
		{ID: "android.resource", Run: androidResource},
	}
}

// cssCustomProperty renders a snapshot's pointer as a `--kebab-case` CSS
// custom property name and its resolved value as a CSS-literal string.
func cssCustomProperty(snap *dtif.TokenSnapshot, options map[string]any) (any, error) {
	prefix, _ := options["prefix"].(string)
	name := "--" + strings.Trim(prefix, "-")
	if name == "--" {
		name = "--"
	} else {
		name += "-"
	}
	name += cssSegment(snap.Pointer)
	return map[string]string{
		"name":  name,
		"value": cssLiteral(snap.Resolution.Value),
	}, nil
}

func cssSegment(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "#/")
	parts := strings.Split(trimmed, "/")
	return strings.ToLower(strings.Join(parts, "-"))
}

func cssLiteral(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// swiftUIToken renders a snapshot into the {name, swiftType, literal}
// triple a SwiftUI formatter joins into a generated extension.
func swiftUIToken(snap *dtif.TokenSnapshot, options map[string]any) (any, error) {
	return map[string]string{
		"name":      swiftIdentifier(snap.Pointer),
		"swiftType": swiftType(snap.Token.Type),
		"literal":   swiftLiteral(snap.Token.Type, snap.Resolution.Value),
	}, nil
}

func swiftIdentifier(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "#/")
	segments := strings.Split(trimmed, "/")
	var b strings.Builder
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if i == 0 {
			b.WriteString(strings.ToLower(seg[:1]) + seg[1:])
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}

func swiftType(tokenType string) string {
	switch tokenType {
	case "color":
		return "Color"
	case "dimension", "number":
		return "CGFloat"
	default:
		return "String"
	}
}

func swiftLiteral(tokenType string, value any) string {
	switch tokenType {
	case "color":
		return fmt.Sprintf("Color(hex: %q)", cssLiteral(value))
	case "dimension", "number":
		return cssLiteral(value)
	default:
		return fmt.Sprintf("%q", cssLiteral(value))
	}
}

// androidResource renders a snapshot into an Android resource entry,
// choosing the resource element name from the token type.
func androidResource(snap *dtif.TokenSnapshot, options map[string]any) (any, error) {
	return map[string]string{
		"name":    androidName(snap.Pointer),
		"element": androidElement(snap.Token.Type),
		"value":   androidValue(snap.Token.Type, snap.Resolution.Value),
	}, nil
}

func androidName(pointer string) string {
	trimmed := strings.TrimPrefix(pointer, "#/")
	return strings.ReplaceAll(trimmed, "/", "_")
}

func androidElement(tokenType string) string {
	switch tokenType {
	case "color":
		return "color"
	case "dimension":
		return "dimen"
	default:
		return "string"
	}
}

func androidValue(tokenType string, value any) string {
	if tokenType == "color" {
		hex := cssLiteral(value)
		if strings.HasPrefix(hex, "#") && len(hex) == 7 {
			return "#FF" + strings.ToUpper(hex[1:])
		}
		return hex
	}
	return cssLiteral(value)
}
