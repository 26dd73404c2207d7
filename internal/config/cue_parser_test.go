package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCUE(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dtifx.cue")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}
	return path
}

func TestCUEParserDecodesValidDocument(t *testing.T) {
	path := writeCUE(t, `
layers: [{name: "base"}, {name: "brand"}]
sources: [{
	id:    "colors"
	layer: "base"
	file: {
		rootDir: "tokens"
		globs: ["*.json"]
	}
}]
transforms: entries: [{name: "css-color"}]
`)
	doc, err := NewCUEParser().Parse(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Layers) != 2 || doc.Layers[1].Name != "brand" {
		t.Fatalf("unexpected layers: %+v", doc.Layers)
	}
	if doc.Transforms == nil || len(doc.Transforms.Entries) != 1 {
		t.Fatalf("unexpected transforms: %+v", doc.Transforms)
	}
}

func TestCUEParserRejectsMissingSourceLayer(t *testing.T) {
	path := writeCUE(t, `
layers: [{name: "base"}]
sources: [{
	id: "colors"
	file: {
		rootDir: "tokens"
		globs: ["*.json"]
	}
}]
`)
	_, err := NewCUEParser().Parse(path)
	if err == nil {
		t.Fatalf("expected a validation error for a source missing its layer")
	}
	parseErr, ok := err.(*ParseError)
	if !ok || len(parseErr.Failures) == 0 {
		t.Fatalf("expected a *ParseError with field failures, got %v (%T)", err, err)
	}
}

func TestCUEParserRejectsInvalidSyntax(t *testing.T) {
	path := writeCUE(t, "layers: [{name:]")
	if _, err := NewCUEParser().Parse(path); err == nil {
		t.Fatalf("expected a syntax error")
	}
}

func TestCUEParserRejectsMissingFile(t *testing.T) {
	if _, err := NewCUEParser().Parse(filepath.Join(t.TempDir(), "missing.cue")); err == nil {
		t.Fatalf("expected an error for a missing configuration file")
	}
}
