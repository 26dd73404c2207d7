package plugin

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, wasmName, contents string) string {
	t.Helper()
	dir := t.TempDir()
	wasmPath := filepath.Join(dir, wasmName)
	if err := os.WriteFile(wasmPath, []byte("not a real module"), 0o644); err != nil {
		t.Fatalf("failed to write stub wasm file: %v", err)
	}
	manifestPath := filepath.Join(dir, wasmName[:len(wasmName)-len(".wasm")]+".manifest.json")
	if err := os.WriteFile(manifestPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return wasmPath
}

func TestLoadManifestDecodesCapabilitiesAndExports(t *testing.T) {
	wasmPath := writeManifest(t, "check.wasm", `{
		"name": "require-owner-plus",
		"capabilities": ["net:outbound", "fs:temp"],
		"exports": ["register", "evaluate"]
	}`)

	m, err := LoadManifest(wasmPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Name != "require-owner-plus" {
		t.Fatalf("expected name to round-trip, got %q", m.Name)
	}
	if !m.HasExport("register") || !m.HasExport("evaluate") {
		t.Fatalf("expected declared exports to be present")
	}
	if m.HasExport("undeclared") {
		t.Fatalf("expected undeclared export to be rejected when Exports is non-empty")
	}
}

func TestManifestHasExportDefaultsTrueWhenExportsOmitted(t *testing.T) {
	m := &Manifest{Name: "anything"}
	if !m.HasExport("register") {
		t.Fatalf("expected HasExport to default true when Exports is empty")
	}
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.wasm"))
	if err == nil {
		t.Fatalf("expected an error for a missing manifest sidecar")
	}
}

func TestLoadManifestInvalidJSON(t *testing.T) {
	wasmPath := writeManifest(t, "broken.wasm", `{not json`)
	if _, err := LoadManifest(wasmPath); err == nil {
		t.Fatalf("expected an error for invalid manifest JSON")
	}
}
