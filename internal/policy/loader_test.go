package policy

import "testing"

func TestResolveSpecifierDelegatesToSharedResolver(t *testing.T) {
	resolved, err := ResolveSpecifier("./plugins/contrast.wasm", "/config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.URL != "file:///config/plugins/contrast.wasm" {
		t.Fatalf("expected resolved file:// URL, got %q", resolved.URL)
	}
}

func TestResolveSpecifierRejectsUnsupportedScheme(t *testing.T) {
	if _, err := ResolveSpecifier("node:fs", "/config"); err == nil {
		t.Fatalf("expected rejection for unsupported scheme")
	}
}
