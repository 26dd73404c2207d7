package config

import "testing"

func TestLoadDispatchesByExtension(t *testing.T) {
	cuePath := writeCUE(t, `
layers: [{name: "base"}]
sources: [{id: "colors", layer: "base", file: {rootDir: "tokens", globs: ["*.json"]}}]
`)
	if _, err := Load(cuePath); err != nil {
		t.Fatalf("unexpected error loading .cue path: %v", err)
	}

	yamlPath := writeConfig(t, `
layers:
  - name: base
sources:
  - id: colors
    layer: base
    file:
      rootDir: tokens
      globs: ["*.json"]
`)
	if _, err := Load(yamlPath); err != nil {
		t.Fatalf("unexpected error loading .yaml path: %v", err)
	}
}
