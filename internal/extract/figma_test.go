package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFigmaExtractorTranslatesFillStyles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	content := `{
		"styles": [
			{"name": "Brand/Primary", "type": "FILL", "color": {"r": 0.2, "g": 0.4, "b": 0.6, "a": 1}},
			{"name": "Brand/Ghost", "type": "TEXT"}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := FigmaExtractor{}.Extract(path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	token, ok := result.Document["#/color/brand/primary"]
	if !ok {
		t.Fatalf("expected pointer #/color/brand/primary, got %v", result.Document)
	}
	if token.Type != "color" || token.Value != "#336699" {
		t.Fatalf("unexpected token: %+v", token)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning for the unsupported style, got %v", result.Warnings)
	}
}
