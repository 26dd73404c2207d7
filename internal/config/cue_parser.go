package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/go-playground/validator/v10"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// ParseError collects every CUE/validation failure found while parsing one
// configuration; it is fatal, pre-run, per §7's Configuration error class.
type ParseError struct {
	*dtifxerr.Error
	Failures []FieldError
}

// FieldError locates one parse or validation failure.
type FieldError struct {
	File    string
	Line    int
	Column  int
	Path    string
	Message string
}

// CUEParser evaluates dtifx.cue (or a directory of .cue files) into a
// validated Document.
type CUEParser struct {
	ctx       *cue.Context
	validator *validator.Validate
}

// NewCUEParser constructs a CUEParser.
func NewCUEParser() *CUEParser {
	return &CUEParser{ctx: cuecontext.New(), validator: validator.New()}
}

// Parse loads path (a file or a directory of CUE files), unifies it, and
// decodes + validates the result into a Document.
func (p *CUEParser) Parse(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigNotFound,
			"configuration path not found: "+path, err)
	}

	var val cue.Value
	if info.IsDir() {
		val, err = p.loadDirectory(path)
	} else {
		val, err = p.loadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := val.Decode(&doc); err != nil {
		return nil, &ParseError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "failed to decode configuration"),
			Failures: p.convertCUEErrors(err),
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

func (p *CUEParser) loadDirectory(dir string) (cue.Value, error) {
	instances := load.Instances([]string{dir}, nil)
	if len(instances) == 0 {
		return cue.Value{}, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"no CUE files found in "+dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, &ParseError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "failed to load CUE package"),
			Failures: p.convertCUEErrors(inst.Err),
		}
	}
	val := p.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, &ParseError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "invalid CUE package"),
			Failures: p.convertCUEErrors(err),
		}
	}
	return val, nil
}

func (p *CUEParser) loadFile(path string) (cue.Value, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigNotFound,
			"failed to read configuration file: "+path, err)
	}
	val := p.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, &ParseError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid, "invalid CUE document"),
			Failures: p.convertCUEErrors(err),
		}
	}
	return val, nil
}

func (p *CUEParser) convertCUEErrors(err error) []FieldError {
	var out []FieldError
	for _, e := range errors.Errors(err) {
		var file string
		var line, column int
		if pos := errors.Positions(e); len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}
		out = append(out, FieldError{File: file, Line: line, Column: column, Message: errors.Details(e, nil)})
	}
	return out
}

func convertValidationErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, FieldError{
			Path:    fe.Namespace(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return out
}
