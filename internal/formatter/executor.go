// Package formatter runs formatter plans against resolved snapshots joined
// with transform outputs, producing artifacts and optionally writing them,
// per §4.8.
package formatter

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
)

// Token joins a snapshot with every transform output produced for its
// pointer, keyed by transform id.
type Token struct {
	Snapshot   *dtif.TokenSnapshot
	Pointer    string
	Type       string
	Value      any
	Transforms map[string]any
}

// RunInput is what a formatter Definition's Run receives.
type RunInput struct {
	Tokens  []Token
	Options map[string]any
}

// RunFunc produces artifacts from a formatter's selected tokens.
type RunFunc func(input RunInput) ([]dtif.Artifact, error)

// OptionSchema declares the known option keys a formatter accepts; any key
// outside this set is a TypeError per §4.8.
type OptionSchema map[string]struct{}

// Validate rejects any key in options not present in the schema.
func (s OptionSchema) Validate(options map[string]any) error {
	for k := range options {
		if _, ok := s[k]; !ok {
			return dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeInvalidOptions,
				"unknown formatter option: "+k)
		}
	}
	return nil
}

// Definition is a registered formatter.
type Definition struct {
	ID       string
	Name     string
	Selector dtif.Selector
	Schema   OptionSchema
	Run      RunFunc
}

// ArtifactWriter writes an artifact's contents to an absolute path.
type ArtifactWriter func(absolutePath string, contents []byte) error

// Execution records the result of running one formatter plan.
type Execution struct {
	ID        string
	Name      string
	Artifacts []dtif.Artifact
	DurationMs float64
}

// Result is the Formatter Executor's overall output.
type Result struct {
	Executions []Execution
	Artifacts  []dtif.Artifact
	Writes     []string
	DurationMs float64
}

// Executor runs formatter plans sequentially, in configured order, per the
// §4.8/§5 write-race avoidance rule.
type Executor struct {
	definitions map[string]*Definition
	writer      ArtifactWriter
	defaultDir  string
}

// NewExecutor constructs an Executor. writer may be nil to skip writing
// artifacts to disk (e.g. `build inspect`).
func NewExecutor(definitions []*Definition, writer ArtifactWriter, defaultOutDir string) *Executor {
	index := make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		index[d.ID] = d
	}
	return &Executor{definitions: index, writer: writer, defaultDir: defaultOutDir}
}

// Run executes every plan against snapshots and transform results.
func (e *Executor) Run(plans []dtif.FormatterPlan, snapshots []*dtif.TokenSnapshot, transforms []dtif.TransformResult) (*Result, error) {
	outputsByPointer := make(map[string]map[string]any)
	for _, tr := range transforms {
		if tr.CacheStatus == dtif.CacheSkip {
			continue
		}
		m, ok := outputsByPointer[tr.Pointer]
		if !ok {
			m = make(map[string]any)
			outputsByPointer[tr.Pointer] = m
		}
		m[tr.Transform] = tr.Output
	}

	result := &Result{}
	start := time.Now()
	writtenPaths := make(map[string]struct{})

	for _, plan := range plans {
		def, ok := e.definitions[plan.ID]
		if !ok {
			return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnknownFormatter,
				"unknown formatter: "+plan.ID)
		}
		if def.Schema != nil {
			if err := def.Schema.Validate(plan.Output.Options); err != nil {
				return nil, err
			}
		}

		var tokens []Token
		for _, snap := range snapshots {
			if !plan.Selector.Matches(snap) {
				continue
			}
			tokens = append(tokens, Token{
				Snapshot:   snap,
				Pointer:    snap.Pointer,
				Type:       snap.Token.Type,
				Value:      snap.Resolution.Value,
				Transforms: outputsByPointer[snap.Pointer],
			})
		}
		sort.Slice(tokens, func(i, j int) bool { return tokens[i].Pointer < tokens[j].Pointer })

		execStart := time.Now()
		artifacts, err := def.Run(RunInput{Tokens: tokens, Options: plan.Output.Options})
		if err != nil {
			return nil, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeFormatterFailure,
				"formatter run failed", err).WithContext("formatter", plan.ID)
		}

		outDir := plan.Output.Path
		if outDir == "" {
			outDir = e.defaultDir
		}

		for i := range artifacts {
			absPath := filepath.Join(outDir, artifacts[i].Path)
			if _, dup := writtenPaths[absPath]; dup {
				return nil, dtifxerr.New(dtifxerr.ClassStageFailure, dtifxerr.CodeFormatterFailure,
					"artifact path collision: "+absPath)
			}
			writtenPaths[absPath] = struct{}{}

			if e.writer != nil {
				if err := e.writer(absPath, artifacts[i].Contents); err != nil {
					return nil, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeFormatterFailure,
						"artifact write failed", err).WithContext("path", absPath)
				}
				result.Writes = append(result.Writes, absPath)
			}
		}

		result.Executions = append(result.Executions, Execution{
			ID:         plan.ID,
			Name:       plan.Name,
			Artifacts:  artifacts,
			DurationMs: float64(time.Since(execStart).Microseconds()) / 1000.0,
		})
		result.Artifacts = append(result.Artifacts, artifacts...)
	}

	result.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0
	return result, nil
}
