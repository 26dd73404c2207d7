// Package config parses build configuration (CUE primary, YAML fallback),
// validates it, and converts it into the planner/transform/formatter/audit
// inputs the pipeline orchestrator needs. Virtual sources are produced by
// sandboxed Starlark functions evaluated on demand (see starlark.go).
package config

import "encoding/json"

// Document is the fully parsed, struct-tag-validated configuration tree,
// per §6's configuration-file shape.
type Document struct {
	Layers       []LayerConfig       `json:"layers" validate:"required,min=1,dive"`
	Sources      []SourceConfig      `json:"sources" validate:"required,min=1,dive"`
	Transforms   *TransformsConfig   `json:"transforms,omitempty" validate:"omitempty"`
	Formatters   []FormatterConfig   `json:"formatters,omitempty" validate:"omitempty,dive"`
	Audit        *AuditConfig        `json:"audit,omitempty" validate:"omitempty"`
	Dependencies *DependenciesConfig `json:"dependencies,omitempty" validate:"omitempty"`
}

// LayerConfig declares one ordering bucket; order in this slice is the
// layer's Index.
type LayerConfig struct {
	Name    string            `json:"name" validate:"required"`
	Context map[string]string `json:"context,omitempty"`
}

// SourceConfig is a tagged union: exactly one of File or Virtual is set,
// matching the FileSource | VirtualSource variants in §3.
type SourceConfig struct {
	ID            string `json:"id" validate:"required"`
	Layer         string `json:"layer" validate:"required"`
	PointerPrefix string `json:"pointerPrefix,omitempty"`

	File    *FileSourceConfig    `json:"file,omitempty"`
	Virtual *VirtualSourceConfig `json:"virtual,omitempty"`
}

// FileSourceConfig expands Globs under RootDir, honouring Ignore.
type FileSourceConfig struct {
	RootDir string   `json:"rootDir" validate:"required"`
	Globs   []string `json:"globs" validate:"required,min=1"`
	Ignore  []string `json:"ignore,omitempty"`
}

// VirtualSourceConfig names a Starlark module whose top-level `produce`
// function is called once per plan build to yield a DTIF document body.
type VirtualSourceConfig struct {
	Module string         `json:"module" validate:"required"`
	Args   map[string]any `json:"args,omitempty"`
}

// TransformsConfig is the `transforms:` configuration block.
type TransformsConfig struct {
	Entries []TransformEntry `json:"entries" validate:"dive"`
}

// TransformEntry names a registered transform and its per-build options.
type TransformEntry struct {
	Name    string         `json:"name" validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}

// FormatterConfig names a registered formatter, its output location, and
// its per-build options.
type FormatterConfig struct {
	Name    string                `json:"name" validate:"required"`
	Output  *FormatterOutputEntry `json:"output,omitempty"`
	Options map[string]any        `json:"options,omitempty"`
}

// FormatterOutputEntry overrides where a formatter's artifacts are
// written.
type FormatterOutputEntry struct {
	OutDir   string `json:"outDir,omitempty"`
	Path     string `json:"path,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// AuditConfig is the `audit:` configuration block.
type AuditConfig struct {
	Policies []PolicyEntryConfig `json:"policies,omitempty" validate:"omitempty,dive"`
	Plugins  []PluginEntryConfig `json:"plugins,omitempty" validate:"omitempty,dive"`
}

// PolicyEntryConfig references a registered policy factory by name.
type PolicyEntryConfig struct {
	Name    string         `json:"name" validate:"required"`
	Options map[string]any `json:"options,omitempty"`
}

// PluginEntryConfig is one `audit.plugins` entry: either a bare specifier
// string (Module set, Register/Options empty) or the expanded form.
type PluginEntryConfig struct {
	Module   string         `json:"module" validate:"required"`
	Register string         `json:"register,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// UnmarshalJSON accepts either a bare specifier string or the expanded
// object form.
func (p *PluginEntryConfig) UnmarshalJSON(data []byte) error {
	var module string
	if err := json.Unmarshal(data, &module); err == nil {
		*p = PluginEntryConfig{Module: module}
		return nil
	}
	type expanded PluginEntryConfig
	var e expanded
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	*p = PluginEntryConfig(e)
	return nil
}

// DependenciesConfig is the `dependencies:` configuration block.
type DependenciesConfig struct {
	Strategy string `json:"strategy,omitempty" validate:"omitempty,oneof=content-hash"`
	Registry string `json:"registry,omitempty"`
}
