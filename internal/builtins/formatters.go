package builtins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
)

// Formatters returns the built-in formatter definitions. Each joins its
// matching transform's output across every selected token into one
// generated file; a build's `formatters` list selects which run and where
// their artifact is written.
func Formatters() []*formatter.Definition {
	return []*formatter.Definition{
		{
			ID:     "css.variables",
			Name:   "CSS custom properties",
			Schema: formatter.OptionSchema{"fileName": {}, "selector": {}},
			Run:    runCSSVariables,
		},
		{
			ID:     "swiftui.extension",
			Name:   "SwiftUI token extension",
			Schema: formatter.OptionSchema{"fileName": {}, "extensionName": {}},
			Run:    runSwiftUIExtension,
		},
		{
			ID:     "android.resources",
			Name:   "Android resource XML",
			Schema: formatter.OptionSchema{"fileName": {}},
			Run:    runAndroidResources,
		},
	}
}

func fileName(options map[string]any, fallback string) string {
	if name, ok := options["fileName"].(string); ok && name != "" {
		return name
	}
	return fallback
}

func runCSSVariables(input formatter.RunInput) ([]dtif.Artifact, error) {
	selector, _ := input.Options["selector"].(string)
	if selector == "" {
		selector = ":root"
	}

	var lines []string
	for _, tok := range sortedTokens(input.Tokens) {
		css, ok := tok.Transforms["css.customProperty"].(map[string]string)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %s;", css["name"], css["value"]))
	}

	var body strings.Builder
	fmt.Fprintf(&body, "%s {\n", selector)
	for _, line := range lines {
		body.WriteString(line)
		body.WriteString("\n")
	}
	body.WriteString("}\n")

	return []dtif.Artifact{{
		Path:     fileName(input.Options, "tokens.css"),
		Contents: []byte(body.String()),
		Encoding: "utf-8",
	}}, nil
}

func runSwiftUIExtension(input formatter.RunInput) ([]dtif.Artifact, error) {
	extName, _ := input.Options["extensionName"].(string)
	if extName == "" {
		extName = "DesignTokens"
	}

	var body strings.Builder
	fmt.Fprintf(&body, "enum %s {\n", extName)
	for _, tok := range sortedTokens(input.Tokens) {
		swift, ok := tok.Transforms["swiftui.token"].(map[string]string)
		if !ok {
			continue
		}
		fmt.Fprintf(&body, "  static let %s: %s = %s\n", swift["name"], swift["swiftType"], swift["literal"])
	}
	body.WriteString("}\n")

	return []dtif.Artifact{{
		Path:     fileName(input.Options, extName+".swift"),
		Contents: []byte(body.String()),
		Encoding: "utf-8",
	}}, nil
}

func runAndroidResources(input formatter.RunInput) ([]dtif.Artifact, error) {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n<resources>\n")
	for _, tok := range sortedTokens(input.Tokens) {
		android, ok := tok.Transforms["android.resource"].(map[string]string)
		if !ok {
			continue
		}
		fmt.Fprintf(&body, "  <%s name=%q>%s</%s>\n", android["element"], android["name"], android["value"], android["element"])
	}
	body.WriteString("</resources>\n")

	return []dtif.Artifact{{
		Path:     fileName(input.Options, "values/tokens.xml"),
		Contents: []byte(body.String()),
		Encoding: "utf-8",
	}}, nil
}

func sortedTokens(tokens []formatter.Token) []formatter.Token {
	out := make([]formatter.Token, len(tokens))
	copy(out, tokens)
	sort.Slice(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}
