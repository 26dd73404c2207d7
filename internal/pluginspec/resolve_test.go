package pluginspec

import "testing"

func TestResolveFileURLPassesThrough(t *testing.T) {
	resolved, err := Resolve("file:///plugins/foo.wasm", "/config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.URL != "file:///plugins/foo.wasm" {
		t.Fatalf("expected file:// URL passed through unchanged, got %q", resolved.URL)
	}
}

func TestResolveRelativePath(t *testing.T) {
	resolved, err := Resolve("./plugins/foo.wasm", "/config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.URL != "file:///config/plugins/foo.wasm" {
		t.Fatalf("expected resolved file:// URL, got %q", resolved.URL)
	}
}

func TestResolveAbsolutePath(t *testing.T) {
	resolved, err := Resolve("/opt/plugins/foo.wasm", "/config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.URL != "file:///opt/plugins/foo.wasm" {
		t.Fatalf("expected absolute path converted to file:// URL, got %q", resolved.URL)
	}
}

func TestResolveBareName(t *testing.T) {
	resolved, err := Resolve("dtifx-contrast-plugin", "/config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.BareName != "dtifx-contrast-plugin" {
		t.Fatalf("expected bare name preserved, got %q", resolved.BareName)
	}
}

func TestResolveRejectsUnsupportedScheme(t *testing.T) {
	for _, specifier := range []string{"node:fs", "data:text/plain;base64,AAAA", "http://example.com/plugin.js"} {
		if _, err := Resolve(specifier, "/config"); err == nil {
			t.Fatalf("expected rejection for specifier %q", specifier)
		}
	}
}
