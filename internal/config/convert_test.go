package config

import (
	"testing"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

type fakeTransforms map[string]*transform.Definition

func (f fakeTransforms) Lookup(name string) (*transform.Definition, bool) {
	def, ok := f[name]
	return def, ok
}

type fakeFormatters map[string]*formatter.Definition

func (f fakeFormatters) Lookup(name string) (*formatter.Definition, bool) {
	def, ok := f[name]
	return def, ok
}

func TestBuildPlannerConfigWiresFileAndVirtualSources(t *testing.T) {
	doc := &Document{
		Layers: []LayerConfig{{Name: "base"}, {Name: "brand"}},
		Sources: []SourceConfig{
			{ID: "colors", Layer: "base", File: &FileSourceConfig{RootDir: "tokens", Globs: []string{"*.json"}}},
			{ID: "generated", Layer: "brand", Virtual: &VirtualSourceConfig{Module: "def produce(args):\n    return {}\n"}},
		},
	}

	env := NewEnvironment("/workspace", nil, nil, nil)
	cfg, err := env.BuildPlannerConfig(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Layers) != 2 || cfg.Layers[1].Index != 1 {
		t.Fatalf("expected 2 ordered layers, got %+v", cfg.Layers)
	}
	if cfg.Sources[0].RootDir != "/workspace/tokens" {
		t.Fatalf("expected rootDir resolved against config dir, got %q", cfg.Sources[0].RootDir)
	}
	if cfg.Sources[1].Kind != dtif.SourceKindVirtual || cfg.Sources[1].Produce == nil {
		t.Fatalf("expected virtual source with a Produce func, got %+v", cfg.Sources[1])
	}
}

func TestBuildPlannerConfigRejectsUnknownLayer(t *testing.T) {
	doc := &Document{
		Layers:  []LayerConfig{{Name: "base"}},
		Sources: []SourceConfig{{ID: "x", Layer: "missing", File: &FileSourceConfig{RootDir: ".", Globs: []string{"*.json"}}}},
	}
	env := NewEnvironment("/workspace", nil, nil, nil)
	if _, err := env.BuildPlannerConfig(doc); err == nil {
		t.Fatalf("expected an unknown-layer error")
	}
}

func TestBuildTransformsOverlaysEntryOptions(t *testing.T) {
	tmpl := &transform.Definition{ID: "css-color", Selector: dtif.Selector{Types: []string{"color"}}}
	env := NewEnvironment("/workspace", fakeTransforms{"css-color": tmpl}, nil, nil)

	doc := &Document{Transforms: &TransformsConfig{Entries: []TransformEntry{
		{Name: "css-color", Options: map[string]any{"prefix": "--dtx-"}},
	}}}

	defs, err := env.BuildTransforms(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || defs[0].Options["prefix"] != "--dtx-" {
		t.Fatalf("expected overlaid options, got %+v", defs)
	}
	if tmpl.Options != nil {
		t.Fatalf("expected the registry template to stay unmodified, got %+v", tmpl.Options)
	}
}

func TestBuildTransformsRejectsUnknownName(t *testing.T) {
	env := NewEnvironment("/workspace", fakeTransforms{}, nil, nil)
	doc := &Document{Transforms: &TransformsConfig{Entries: []TransformEntry{{Name: "nope"}}}}
	if _, err := env.BuildTransforms(doc); err == nil {
		t.Fatalf("expected unknown-transform error")
	}
}

func TestBuildFormattersProducesPlansWithResolvedOutput(t *testing.T) {
	def := &formatter.Definition{ID: "css", Name: "css", Selector: dtif.Selector{Types: []string{"color"}}}
	env := NewEnvironment("/workspace", nil, fakeFormatters{"css": def}, nil)

	doc := &Document{Formatters: []FormatterConfig{
		{Name: "css", Output: &FormatterOutputEntry{OutDir: "dist", Path: "tokens.css"}},
	}}

	defs, plans, err := env.BuildFormatters(doc, "build")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(defs) != 1 || len(plans) != 1 {
		t.Fatalf("expected 1 definition and 1 plan, got %d/%d", len(defs), len(plans))
	}
	if plans[0].ID != "css" || plans[0].Output.Path != "dist/tokens.css" {
		t.Fatalf("expected plan output joined from outDir+path, got %+v", plans[0])
	}
}

func TestBuildPolicyEntriesRejectsDuplicateName(t *testing.T) {
	env := NewEnvironment("/workspace", nil, nil, nil)
	doc := &Document{Audit: &AuditConfig{Policies: []PolicyEntryConfig{{Name: "require-owner"}, {Name: "require-owner"}}}}
	if _, err := env.BuildPolicyEntries(doc); err == nil {
		t.Fatalf("expected a duplicate-policy-name error")
	}
}

func TestBuildPolicyEntriesConvertsOptions(t *testing.T) {
	env := NewEnvironment("/workspace", nil, nil, nil)
	doc := &Document{Audit: &AuditConfig{Policies: []PolicyEntryConfig{
		{Name: "wcag-contrast", Options: map[string]any{"minimum": 4.5}},
	}}}
	entries, err := env.BuildPolicyEntries(doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Options["minimum"] != 4.5 {
		t.Fatalf("expected converted policy entry, got %+v", entries)
	}
}

func TestDependencyStorePathDefaultsUnderConfigDir(t *testing.T) {
	env := NewEnvironment("/workspace", nil, nil, nil)
	path := env.DependencyStorePath(&Document{})
	if path != "/workspace/.dtifx-cache/dependencies/snapshot.json" {
		t.Fatalf("unexpected default dependency store path: %q", path)
	}
}

func TestDependencyStorePathHonoursOverride(t *testing.T) {
	env := NewEnvironment("/workspace", nil, nil, nil)
	path := env.DependencyStorePath(&Document{Dependencies: &DependenciesConfig{Registry: "custom/snapshot.json"}})
	if path != "/workspace/custom/snapshot.json" {
		t.Fatalf("unexpected overridden dependency store path: %q", path)
	}
}
