package builtins

import (
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

// TransformRegistry satisfies config.TransformRegistry over Transforms.
type TransformRegistry struct {
	byID map[string]*transform.Definition
}

// NewTransformRegistry indexes the built-in transform definitions by ID.
func NewTransformRegistry() *TransformRegistry {
	byID := make(map[string]*transform.Definition)
	for _, def := range Transforms() {
		byID[def.ID] = def
	}
	return &TransformRegistry{byID: byID}
}

// Lookup returns the registered transform template for name.
func (r *TransformRegistry) Lookup(name string) (*transform.Definition, bool) {
	def, ok := r.byID[name]
	return def, ok
}

// FormatterRegistry satisfies config.FormatterRegistry over Formatters.
type FormatterRegistry struct {
	byID map[string]*formatter.Definition
}

// NewFormatterRegistry indexes the built-in formatter definitions by ID.
func NewFormatterRegistry() *FormatterRegistry {
	byID := make(map[string]*formatter.Definition)
	for _, def := range Formatters() {
		byID[def.ID] = def
	}
	return &FormatterRegistry{byID: byID}
}

// Lookup returns the registered formatter definition for name.
func (r *FormatterRegistry) Lookup(name string) (*formatter.Definition, bool) {
	def, ok := r.byID[name]
	return def, ok
}
