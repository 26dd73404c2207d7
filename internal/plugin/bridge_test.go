package plugin

import "testing"

func TestFilePathFromURLStripsScheme(t *testing.T) {
	path, err := filePathFromURL("file:///configs/plugins/check.wasm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/configs/plugins/check.wasm" {
		t.Fatalf("expected stripped path, got %q", path)
	}
}

func TestFilePathFromURLRejectsOtherSchemes(t *testing.T) {
	if _, err := filePathFromURL("https://example.invalid/check.wasm"); err == nil {
		t.Fatalf("expected an error for a non-file:// URL")
	}
}
