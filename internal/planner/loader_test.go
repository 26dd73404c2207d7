package planner

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultFileLoaderParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(path, []byte(`{"color":{"primary":{"$type":"color","$value":"#336699"}}}`), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	doc, err := DefaultFileLoader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	token, ok := doc["#/color/primary"]
	if !ok {
		t.Fatalf("expected token at #/color/primary, got %v", doc)
	}
	if token.Type != "color" || token.Value != "#336699" {
		t.Fatalf("unexpected token: %+v", token)
	}
}

func TestDocumentParserFromURIStripsFileScheme(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.json")
	if err := os.WriteFile(path, []byte(`{"color":{"primary":{"$type":"color","$value":"#336699"}}}`), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	doc, err := DocumentParserFromURI("file://" + path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc["#/color/primary"]; !ok {
		t.Fatalf("expected token at #/color/primary, got %v", doc)
	}
}
