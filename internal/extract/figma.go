package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

// FigmaExtractor translates a previously-exported Figma "styles" document
// (the shape returned by the Figma REST API's GET /v1/files/:key/styles,
// trimmed to fills) into a DTIF document. It reads the export from disk;
// calling the Figma API itself is out of scope.
type FigmaExtractor struct{}

type figmaExport struct {
	Styles []figmaStyle `json:"styles"`
}

type figmaStyle struct {
	Name  string     `json:"name"`
	Type  string     `json:"type"`
	Color *figmaRGBA `json:"color"`
}

type figmaRGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

func (FigmaExtractor) Extract(source string) (Result, error) {
	content, err := os.ReadFile(source)
	if err != nil {
		return Result{}, fmt.Errorf("read figma export: %w", err)
	}

	var export figmaExport
	if err := json.Unmarshal(content, &export); err != nil {
		return Result{}, fmt.Errorf("decode figma export: %w", err)
	}

	doc := dtif.Document{}
	var warnings []string

	for _, style := range export.Styles {
		if style.Type != "FILL" {
			warnings = append(warnings, fmt.Sprintf("skipped style %q: unsupported type %q", style.Name, style.Type))
			continue
		}
		if style.Color == nil {
			warnings = append(warnings, fmt.Sprintf("skipped style %q: missing color", style.Name))
			continue
		}
		pointer := figmaPointer(style.Name)
		doc[pointer] = dtif.RawToken{
			Type:  "color",
			Value: figmaHex(*style.Color),
		}
	}

	return Result{Document: doc, Warnings: warnings}, nil
}

func figmaPointer(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return "#/color/" + strings.Join(segments, "/")
}

func figmaHex(c figmaRGBA) string {
	toByte := func(v float64) int {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return int(v*255 + 0.5)
	}
	if c.A >= 1 {
		return fmt.Sprintf("#%02X%02X%02X", toByte(c.R), toByte(c.G), toByte(c.B))
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", toByte(c.R), toByte(c.G), toByte(c.B), toByte(c.A))
}
