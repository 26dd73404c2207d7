package config

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// YAMLParser decodes a YAML configuration document with the same shape as
// the CUE schema. It is the fallback decoder named in §6: Load uses it
// when path neither ends in .cue nor names a directory.
type YAMLParser struct {
	validator *validator.Validate
}

// NewYAMLParser constructs a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{validator: validator.New()}
}

// Parse reads and validates the YAML configuration at path.
func (p *YAMLParser) Parse(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigNotFound,
			"configuration file not found: "+path, err)
	}

	// Decode into a generic tree and re-encode it as JSON so the Document's
	// json field names (rootDir, pointerPrefix, ...) apply to YAML as well.
	var raw any
	err = yaml.Unmarshal(content, &raw)
	var doc Document
	if err == nil {
		var asJSON []byte
		if asJSON, err = json.Marshal(raw); err == nil {
			err = json.Unmarshal(asJSON, &doc)
		}
	}
	if err != nil {
		return nil, &ParseError{
			Error:    dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "failed to decode YAML configuration", err),
			Failures: []FieldError{{File: path, Message: err.Error()}},
		}
	}

	if err := p.validator.Struct(doc); err != nil {
		return nil, &ParseError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "configuration failed validation"),
			Failures: convertValidationErrors(err),
		}
	}

	return &doc, nil
}
