// Package extract defines the contract third-party design-tool extractors
// satisfy: produce a DTIF document body plus any non-fatal warnings
// encountered while translating the tool's native format. Concrete Figma
// and Sketch API integrations are out of scope; these implementations
// cover the document shape a real extractor would hand to the pipeline.
package extract

import "github.com/bylapidist/dtifx-sub001/internal/dtif"

// Result is what an Extractor hands back: a ready-to-resolve DTIF document
// body and any warnings worth surfacing to the operator (unsupported node
// types, ambiguous color spaces, and so on).
type Result struct {
	Document dtif.Document
	Warnings []string
}

// Extractor translates a design tool's native file into a DTIF document.
type Extractor interface {
	// Extract reads source (a file path or, for hosted tools, a file ID)
	// and returns the translated document.
	Extract(source string) (Result, error)
}

// Registry resolves an extractor by provider name ("figma", "sketch").
type Registry struct {
	byName map[string]Extractor
}

// NewRegistry builds a Registry pre-populated with the built-in
// extractors.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Extractor{
		"figma":  FigmaExtractor{},
		"sketch": SketchExtractor{},
	}}
}

// Lookup returns the extractor registered under name, if any.
func (r *Registry) Lookup(name string) (Extractor, bool) {
	e, ok := r.byName[name]
	return e, ok
}
