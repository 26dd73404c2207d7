package config

import (
	"path/filepath"
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/planner"
	"github.com/bylapidist/dtifx-sub001/internal/policy"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

// TransformRegistry resolves a configured transform name to its
// registered template (selector + run function); config overlays the
// entry's own options onto a copy of the template.
type TransformRegistry interface {
	Lookup(name string) (*transform.Definition, bool)
}

// FormatterRegistry resolves a configured formatter name to its
// registered definition.
type FormatterRegistry interface {
	Lookup(name string) (*formatter.Definition, bool)
}

// Environment binds a parsed Document to the registries and filesystem
// root needed to produce the pipeline's concrete inputs.
type Environment struct {
	ConfigDir  string
	Transforms TransformRegistry
	Formatters FormatterRegistry
	Starlark   *StarlarkEvaluator
}

// NewEnvironment constructs an Environment. starlark may be nil, in which
// case a default evaluator (NewStarlarkEvaluator(0)) backs any virtual
// sources.
func NewEnvironment(configDir string, transforms TransformRegistry, formatters FormatterRegistry, starlark *StarlarkEvaluator) *Environment {
	if starlark == nil {
		starlark = NewStarlarkEvaluator(0)
	}
	return &Environment{ConfigDir: configDir, Transforms: transforms, Formatters: formatters, Starlark: starlark}
}

// BuildPlannerConfig converts doc's layers and sources into planner.Config.
func (e *Environment) BuildPlannerConfig(doc *Document) (planner.Config, error) {
	layerIndex := make(map[string]int, len(doc.Layers))
	layers := make([]dtif.Layer, len(doc.Layers))
	for i, l := range doc.Layers {
		layers[i] = dtif.Layer{Name: l.Name, Index: i, Context: l.Context}
		layerIndex[l.Name] = i
	}

	sources := make([]dtif.Source, 0, len(doc.Sources))
	for _, s := range doc.Sources {
		if _, ok := layerIndex[s.Layer]; !ok {
			return planner.Config{}, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnknownLayer,
				"source "+s.ID+" references unknown layer "+s.Layer)
		}

		src := dtif.Source{ID: s.ID, Layer: s.Layer, PointerPrefix: s.PointerPrefix}
		switch {
		case s.File != nil:
			src.Kind = dtif.SourceKindFile
			src.RootDir = s.File.RootDir
			if !filepath.IsAbs(src.RootDir) {
				src.RootDir = filepath.Join(e.ConfigDir, src.RootDir)
			}
			src.Globs = s.File.Globs
			src.Ignore = s.File.Ignore
		case s.Virtual != nil:
			src.Kind = dtif.SourceKindVirtual
			src.Produce = e.Starlark.Producer(s.Virtual.Module, s.Virtual.Args)
		default:
			return planner.Config{}, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
				"source "+s.ID+" declares neither file nor virtual")
		}
		sources = append(sources, src)
	}

	return planner.Config{Layers: layers, Sources: sources}, nil
}

// BuildTransforms resolves doc's transform entries against e.Transforms.
func (e *Environment) BuildTransforms(doc *Document) ([]*transform.Definition, error) {
	if doc.Transforms == nil {
		return nil, nil
	}
	defs := make([]*transform.Definition, 0, len(doc.Transforms.Entries))
	for _, entry := range doc.Transforms.Entries {
		tmpl, ok := e.Transforms.Lookup(entry.Name)
		if !ok {
			return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnknownTransform,
				"unknown transform: "+entry.Name)
		}
		def := *tmpl
		def.Options = entry.Options
		defs = append(defs, &def)
	}
	return defs, nil
}

// BuildFormatters resolves doc's formatter entries into the definitions an
// executor runs plus the plans describing where/how to run them.
func (e *Environment) BuildFormatters(doc *Document, defaultOutDir string) ([]*formatter.Definition, []dtif.FormatterPlan, error) {
	defs := make([]*formatter.Definition, 0, len(doc.Formatters))
	plans := make([]dtif.FormatterPlan, 0, len(doc.Formatters))
	for _, entry := range doc.Formatters {
		def, ok := e.Formatters.Lookup(entry.Name)
		if !ok {
			return nil, nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnknownFormatter,
				"unknown formatter: "+entry.Name)
		}
		defs = append(defs, def)

		output := dtif.FormatterOutputConfig{Path: defaultOutDir, Options: entry.Options}
		if entry.Output != nil {
			if entry.Output.OutDir != "" {
				output.Path = entry.Output.OutDir
			}
			if entry.Output.Path != "" {
				output.Path = filepath.Join(output.Path, entry.Output.Path)
			}
			output.Encoding = entry.Output.Encoding
		}

		plans = append(plans, dtif.FormatterPlan{
			ID:       def.ID,
			Name:     def.Name,
			Selector: def.Selector,
			Output:   output,
		})
	}
	return defs, plans, nil
}

// BuildPolicyEntries converts doc's audit.policies into policy.Entry
// values, rejecting a duplicate policy name per §7's Configuration error
// class.
func (e *Environment) BuildPolicyEntries(doc *Document) ([]policy.Entry, error) {
	if doc.Audit == nil {
		return nil, nil
	}
	entries := make([]policy.Entry, 0, len(doc.Audit.Policies))
	seen := make(map[string]struct{}, len(doc.Audit.Policies))
	for _, p := range doc.Audit.Policies {
		if _, dup := seen[p.Name]; dup {
			return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeDuplicatePolicyName,
				"duplicate policy name: "+p.Name)
		}
		seen[p.Name] = struct{}{}
		entries = append(entries, policy.Entry{Name: p.Name, Options: p.Options})
	}
	return entries, nil
}

// BuildPluginConfigs converts doc's audit.plugins into policy.PluginConfig
// values.
func (e *Environment) BuildPluginConfigs(doc *Document) []policy.PluginConfig {
	if doc.Audit == nil {
		return nil
	}
	configs := make([]policy.PluginConfig, 0, len(doc.Audit.Plugins))
	for _, p := range doc.Audit.Plugins {
		configs = append(configs, policy.PluginConfig{Module: p.Module, Register: p.Register, Options: p.Options})
	}
	return configs
}

// DependencyStorePath resolves the configured dependency snapshot path
// relative to the configuration directory, defaulting to
// .dtifx-cache/dependencies/snapshot.json per §6's persisted-state layout.
func (e *Environment) DependencyStorePath(doc *Document) string {
	path := filepath.Join(".dtifx-cache", "dependencies", "snapshot.json")
	if doc.Dependencies != nil && doc.Dependencies.Registry != "" {
		path = doc.Dependencies.Registry
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.ConfigDir, path)
	}
	return path
}

// ReloadTimeout is the per-evaluation Starlark timeout the CLI gives
// virtual sources, matching the Starlark evaluator's own default. The
// watch scheduler puts no time limit on a configuration reload.
const ReloadTimeout = 30 * time.Second
