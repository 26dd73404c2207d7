package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bylapidist/dtifx-sub001/internal/diff"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
)

func newCompareCommand() *cobra.Command {
	var (
		format         string
		filterTypes    []string
		filterGroups   []string
		filterPaths    []string
		filterImpacts  []string
		filterKinds    []string
		onlyBreaking   bool
		failOnBreaking bool
		failOnChanges  bool
		topRisks       int
		renameStrategy string
		impactStrategy string
	)

	cmd := &cobra.Command{
		Use:   "compare <previous> <next>",
		Short: "Diff two token sets and report their semver impact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			previous, err := loadSnapshotSet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			next, err := loadSnapshotSet(cmd.Context(), args[1])
			if err != nil {
				return err
			}

			engine, err := buildDiffEngine(renameStrategy, impactStrategy)
			if err != nil {
				return err
			}
			result := engine.Run(previous, next)

			filter := diff.Filter{
				Types:  filterTypes,
				Groups: filterGroups,
				Paths:  filterPaths,
				Kinds:  parseKinds(filterKinds),
			}
			for _, i := range filterImpacts {
				filter.Impacts = append(filter.Impacts, diff.Impact(i))
			}
			if onlyBreaking {
				filter.Impacts = []diff.Impact{diff.ImpactBreaking}
			}
			result = diff.FilterResult(result, filter)

			if topRisks > 0 {
				result.Changes = topRiskChanges(result.Changes, topRisks)
			}

			if err := printCompareReport(result, format); err != nil {
				return err
			}

			breaking := hasBreaking(result)
			if failOnBreaking && breaking {
				os.Exit(1)
			}
			if failOnChanges && len(result.Changes) > 0 {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "cli", "report format: cli|json|markdown|html|yaml|sarif")
	cmd.Flags().StringSliceVar(&filterTypes, "filter-type", nil, "restrict to these $type values")
	cmd.Flags().StringSliceVar(&filterGroups, "filter-group", nil, "restrict to these top-level groups")
	cmd.Flags().StringSliceVar(&filterPaths, "filter-path", nil, "restrict to these pointer prefixes")
	cmd.Flags().StringSliceVar(&filterImpacts, "filter-impact", nil, "restrict to these impacts")
	cmd.Flags().StringSliceVar(&filterKinds, "filter-kind", nil, "restrict to these change kinds")
	cmd.Flags().BoolVar(&onlyBreaking, "only-breaking", false, "restrict to breaking changes")
	cmd.Flags().BoolVar(&failOnBreaking, "fail-on-breaking", false, "exit 1 if any breaking change is found")
	cmd.Flags().BoolVar(&failOnChanges, "fail-on-changes", false, "exit 1 if any change is found")
	cmd.Flags().IntVar(&topRisks, "top-risks", 0, "limit the report to the N riskiest changes")
	cmd.Flags().Int("diff-context", 0, "lines of surrounding context in textual diffs (reserved)")
	cmd.Flags().String("mode", "summary", "report detail mode: condensed|summary|full|detailed")
	cmd.Flags().StringVar(&renameStrategy, "rename-strategy", "structural", "rename strategy: structural|structural-loose")
	cmd.Flags().StringVar(&impactStrategy, "impact-strategy", "default", "impact strategy: default")
	cmd.Flags().String("summary-strategy", "default", "summary strategy: default (reserved for future strategies)")

	return cmd
}

// buildDiffEngine resolves the --rename-strategy/--impact-strategy flags
// against the built-in strategies. Loading a strategy from a WASM module
// specifier, as §4.11 allows, is not implemented: the plugin host's WASM
// ABI (internal/plugin.Host.Load) only speaks policy.RegisterFunc's
// "register these rule ids" contract, and rename/impact strategies need a
// "take snapshots, return a verdict" contract that has no analog anywhere
// in the retrieval pack to ground an implementation on.
func buildDiffEngine(renameStrategy, impactStrategy string) (*diff.Engine, error) {
	engine := diff.NewEngine()

	switch renameStrategy {
	case "", "structural":
		engine.RenameStrategies = []diff.RenameStrategy{diff.StructuralRenameStrategy{IncludeExtensions: true}}
	case "structural-loose":
		engine.RenameStrategies = []diff.RenameStrategy{diff.StructuralRenameStrategy{IncludeExtensions: false}}
	default:
		return nil, fmt.Errorf("unknown rename strategy %q (want structural or structural-loose)", renameStrategy)
	}

	switch impactStrategy {
	case "", "default":
		engine.ImpactStrategy = diff.DefaultImpactStrategy{}
	default:
		return nil, fmt.Errorf("unknown impact strategy %q (want default)", impactStrategy)
	}

	return engine, nil
}

// loadSnapshotSet loads a token set either from a JSON snapshot export
// (as produced by `dtifx build inspect --format json`) or, for any other
// path, by running the pipeline (resolve only, no transforms/formatters)
// against the build configuration found there.
func loadSnapshotSet(ctx context.Context, path string) (map[string]*dtif.TokenSnapshot, error) {
	if strings.HasSuffix(path, ".json") {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var snapshots []*dtif.TokenSnapshot
		if err := json.Unmarshal(content, &snapshots); err != nil {
			return nil, err
		}
		return indexSnapshots(snapshots), nil
	}

	opts := buildOptions{configPath: path, includeTransforms: false, includeFormatters: false}
	env, err := loadEnvironment(opts)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	result, err := runBuild(ctx, env, opts)
	if err != nil {
		return nil, err
	}
	return indexSnapshots(result.Snapshots), nil
}

func indexSnapshots(snapshots []*dtif.TokenSnapshot) map[string]*dtif.TokenSnapshot {
	out := make(map[string]*dtif.TokenSnapshot, len(snapshots))
	for _, snap := range snapshots {
		out[snap.Pointer] = snap
	}
	return out
}

func parseKinds(raw []string) []diff.ChangeKind {
	out := make([]diff.ChangeKind, len(raw))
	for i, k := range raw {
		out[i] = diff.ChangeKind(k)
	}
	return out
}

func hasBreaking(result diff.Result) bool {
	for _, c := range result.Changes {
		if c.Impact == diff.ImpactBreaking {
			return true
		}
	}
	return false
}

func topRiskChanges(changes []diff.Change, n int) []diff.Change {
	sorted := make([]diff.Change, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return riskRank(sorted[i]) > riskRank(sorted[j])
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func riskRank(c diff.Change) int {
	if c.Impact == diff.ImpactBreaking {
		return 2
	}
	if c.Kind != diff.KindUnchanged {
		return 1
	}
	return 0
}

func printCompareReport(result diff.Result, format string) error {
	switch format {
	case "json":
		return printDiffJSON(result)
	case "yaml":
		return printDiffYAML(result)
	case "markdown":
		fmt.Println(diffMarkdown(result))
		return nil
	case "html":
		fmt.Println(diffHTML(result))
		return nil
	case "sarif":
		return printDiffSARIF(result)
	default:
		fmt.Println(diffCLI(result))
		return nil
	}
}

func diffCLI(result diff.Result) string {
	var b []string
	b = append(b, fmt.Sprintf("recommended bump: %s", result.RecommendedBump))
	for _, c := range sortedChanges(result.Changes) {
		if c.Kind == diff.KindUnchanged {
			continue
		}
		switch c.Kind {
		case diff.KindRenamed:
			b = append(b, fmt.Sprintf("  renamed %s -> %s (%s)", c.PreviousPointer, c.Pointer, c.Impact))
		default:
			b = append(b, fmt.Sprintf("  %s %s (%s)", c.Kind, c.Pointer, c.Impact))
		}
	}
	return joinLines(b)
}

func diffMarkdown(result diff.Result) string {
	b := []string{fmt.Sprintf("# Compare report: recommended bump `%s`", result.RecommendedBump), ""}
	b = append(b, "| Kind | Pointer | Impact |", "|---|---|---|")
	for _, c := range sortedChanges(result.Changes) {
		if c.Kind == diff.KindUnchanged {
			continue
		}
		b = append(b, fmt.Sprintf("| %s | %s | %s |", c.Kind, c.Pointer, c.Impact))
	}
	return joinLines(b)
}

func diffHTML(result diff.Result) string {
	b := []string{fmt.Sprintf("<h1>Compare report: %s</h1>", result.RecommendedBump)}
	b = append(b, "<table><tr><th>Kind</th><th>Pointer</th><th>Impact</th></tr>")
	for _, c := range sortedChanges(result.Changes) {
		if c.Kind == diff.KindUnchanged {
			continue
		}
		b = append(b, fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td></tr>", c.Kind, c.Pointer, c.Impact))
	}
	b = append(b, "</table>")
	return joinLines(b)
}

type diffReportJSON struct {
	ReportSchemaVersion int           `json:"reportSchemaVersion" yaml:"reportSchemaVersion"`
	RecommendedBump     diff.Bump     `json:"recommendedBump" yaml:"recommendedBump"`
	Summary             diff.Summary  `json:"summary" yaml:"summary"`
	Changes             []diff.Change `json:"changes" yaml:"changes"`
}

func printDiffJSON(result diff.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(diffReportJSON{
		ReportSchemaVersion: 3,
		RecommendedBump:     result.RecommendedBump,
		Summary:             result.Summary,
		Changes:             result.Changes,
	})
}

func printDiffYAML(result diff.Result) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(diffReportJSON{
		ReportSchemaVersion: 3,
		RecommendedBump:     result.RecommendedBump,
		Summary:             result.Summary,
		Changes:             result.Changes,
	})
}

// sarifLog is a minimal SARIF 2.1.0 log: one result per breaking or
// modified change, severity mapped from Impact.
type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool    `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type sarifResult struct {
	RuleID  string            `json:"ruleId"`
	Level   string            `json:"level"`
	Message sarifMessage      `json:"message"`
	Locations []sarifLocation `json:"locations"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations"`
}

type sarifLogicalLocation struct {
	FullyQualifiedName string `json:"fullyQualifiedName"`
}

func printDiffSARIF(result diff.Result) error {
	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{Name: "dtifx", Version: "1"}},
		}},
	}
	for _, c := range sortedChanges(result.Changes) {
		if c.Kind == diff.KindUnchanged {
			continue
		}
		level := "note"
		if c.Impact == diff.ImpactBreaking {
			level = "error"
		}
		log.Runs[0].Results = append(log.Runs[0].Results, sarifResult{
			RuleID: string(c.Kind),
			Level:  level,
			Message: sarifMessage{Text: fmt.Sprintf("%s %s (%s)", c.Kind, c.Pointer, c.Impact)},
			Locations: []sarifLocation{{
				LogicalLocations: []sarifLogicalLocation{{FullyQualifiedName: c.Pointer}},
			}},
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func sortedChanges(changes []diff.Change) []diff.Change {
	out := make([]diff.Change, len(changes))
	copy(out, changes)
	sort.Slice(out, func(i, j int) bool { return out[i].Pointer < out[j].Pointer })
	return out
}
