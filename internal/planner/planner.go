// Package planner expands configured sources into an ordered, deterministic
// build plan, validating every document against the DTIF schema before any
// later stage runs.
package planner

import (
	"path/filepath"
	"sort"
	"sync"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Config is the planner's input: the layers and sources declared in build
// configuration.
type Config struct {
	Layers  []dtif.Layer
	Sources []dtif.Source
}

// Validator checks a parsed document against the DTIF schema, returning a
// list of schema error messages (empty if valid).
type Validator func(doc dtif.Document) []string

// GlobExpander expands a Source's Globs against RootDir, honouring Ignore,
// and returns absolute file paths sorted lexicographically.
type GlobExpander func(src dtif.Source) ([]string, error)

// FileLoader parses the document found at path.
type FileLoader func(path string) (dtif.Document, error)

// SourceFailure aggregates every schema error for one source.
type SourceFailure struct {
	SourceID      string
	URI           string
	PointerPrefix string
	Errors        []string
}

// PlannerError is raised when one or more sources fail validation or
// reference an unknown layer.
type PlannerError struct {
	*dtifxerr.Error
	Failures []SourceFailure
}

// Planner builds deterministic Plans from Config.
type Planner struct {
	expandGlobs GlobExpander
	loadFile    FileLoader
	validate    Validator
}

// New constructs a Planner. expandGlobs and loadFile are injected so tests
// and virtual-only configurations don't need a real filesystem.
func New(expandGlobs GlobExpander, loadFile FileLoader, validate Validator) *Planner {
	return &Planner{expandGlobs: expandGlobs, loadFile: loadFile, validate: validate}
}

// Plan is the ordered, deterministic output of Build.
type Plan struct {
	Entries []dtif.PlanEntry
}

// Build expands cfg into a Plan, per §4.4's three steps. All source errors
// are collected before failing (no short-circuit per source).
func (p *Planner) Build(cfg Config) (*Plan, error) {
	layerIndex := make(map[string]int, len(cfg.Layers))
	for _, l := range cfg.Layers {
		layerIndex[l.Name] = l.Index
	}

	type rawEntry struct {
		entry dtif.PlanEntry
	}

	var (
		mu       sync.Mutex
		entries  []rawEntry
		failures []SourceFailure
	)

	var wg sync.WaitGroup
	for _, src := range cfg.Sources {
		idx, known := layerIndex[src.Layer]
		if !known {
			mu.Lock()
			failures = append(failures, SourceFailure{
				SourceID: src.ID,
				Errors:   []string{"layer"},
			})
			mu.Unlock()
			continue
		}

		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			built, errs := p.expandSource(src, idx)
			mu.Lock()
			defer mu.Unlock()
			if len(errs) > 0 {
				failures = append(failures, SourceFailure{
					SourceID:      src.ID,
					URI:           src.RootDir,
					PointerPrefix: src.PointerPrefix,
					Errors:        errs,
				})
				return
			}
			for _, e := range built {
				entries = append(entries, rawEntry{entry: e})
			}
		}()
	}
	wg.Wait()

	if len(failures) > 0 {
		hasUnknownLayer := false
		for _, f := range failures {
			for _, e := range f.Errors {
				if e == "layer" {
					hasUnknownLayer = true
				}
			}
		}
		code := dtifxerr.CodePlannerFailure
		if hasUnknownLayer {
			code = dtifxerr.CodeUnknownLayer
		}
		return nil, &PlannerError{
			Error:    dtifxerr.New(dtifxerr.ClassConfiguration, code, "source planner failed"),
			Failures: failures,
		}
	}

	plain := make([]dtif.PlanEntry, 0, len(entries))
	for _, e := range entries {
		plain = append(plain, e.entry)
	}
	sort.Slice(plain, func(i, j int) bool {
		a, b := plain[i], plain[j]
		if a.LayerIndex != b.LayerIndex {
			return a.LayerIndex < b.LayerIndex
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.FileIndex < b.FileIndex
	})

	return &Plan{Entries: plain}, nil
}

func (p *Planner) expandSource(src dtif.Source, layerIndex int) ([]dtif.PlanEntry, []string) {
	switch src.Kind {
	case dtif.SourceKindVirtual:
		return p.expandVirtualSource(src, layerIndex)
	default:
		return p.expandFileSource(src, layerIndex)
	}
}

func (p *Planner) expandFileSource(src dtif.Source, layerIndex int) ([]dtif.PlanEntry, []string) {
	paths, err := p.expandGlobs(src)
	if err != nil {
		return nil, []string{err.Error()}
	}
	sort.Strings(paths)

	var entries []dtif.PlanEntry
	var errs []string
	for i, path := range paths {
		doc, err := p.loadFile(path)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if p.validate != nil {
			if schemaErrs := p.validate(doc); len(schemaErrs) > 0 {
				errs = append(errs, schemaErrs...)
				continue
			}
		}
		entries = append(entries, dtif.PlanEntry{
			ID:            src.ID,
			Layer:         src.Layer,
			LayerIndex:    layerIndex,
			URI:           "file://" + filepath.ToSlash(path),
			PointerPrefix: src.PointerPrefix,
			Document:      doc,
			FileIndex:     i,
		})
	}
	return entries, errs
}

func (p *Planner) expandVirtualSource(src dtif.Source, layerIndex int) ([]dtif.PlanEntry, []string) {
	if src.Produce == nil {
		return nil, []string{"virtual source has no producer"}
	}
	doc, err := src.Produce()
	if err != nil {
		return nil, []string{err.Error()}
	}
	if p.validate != nil {
		if schemaErrs := p.validate(doc); len(schemaErrs) > 0 {
			return nil, schemaErrs
		}
	}
	return []dtif.PlanEntry{{
		ID:            src.ID,
		Layer:         src.Layer,
		LayerIndex:    layerIndex,
		URI:           "virtual://" + src.ID,
		PointerPrefix: src.PointerPrefix,
		Document:      doc,
		FileIndex:     0,
	}}, nil
}
