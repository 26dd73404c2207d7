package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// SketchExtractor translates a previously-exported Sketch document's
// shared layer/text styles into a DTIF document. It reads the export from
// disk; calling a Sketch Cloud API is out of scope.
type SketchExtractor struct{}

type sketchExport struct {
	LayerStyles []sketchStyle `json:"layerStyles"`
	TextStyles  []sketchStyle `json:"textStyles"`
}

type sketchStyle struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (SketchExtractor) Extract(source string) (Result, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return Result{}, fmt.Errorf("read sketch export: %w", err)
	}

	var export sketchExport
	if err := json.Unmarshal(content, &export); err != nil {
		return Result{}, fmt.Errorf("decode sketch export: %w", err)
	}

	doc := dtif.Document{}
	var warnings []string

	for _, style := range export.LayerStyles {
		if style.Value == "" {
			warnings = append(warnings, fmt.Sprintf("skipped layer style %q: empty value", style.Name))
			continue
		}
		doc[sketchPointer("color", style.Name)] = dtif.RawToken{Type: "color", Value: style.Value}
	}
	for _, style := range export.TextStyles {
		if style.Value == "" {
			warnings = append(warnings, fmt.Sprintf("skipped text style %q: empty value", style.Name))
			continue
		}
		doc[sketchPointer("typography", style.Name)] = dtif.RawToken{Type: "string", Value: style.Value}
	}

	return Result{Document: doc, Warnings: warnings}, nil
}

func sketchPointer(group, name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return "#/" + group + "/" + strings.Join(segments, "/")
}
