package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bylapidist/dtifx-sub001/internal/policy"
)

func newAuditCommand() *cobra.Command {
	var (
		outDir string
		format string
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run the pipeline then evaluate governance policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := buildOptions{
				configPath:        configPath,
				outDir:            outDir,
				includeTransforms: true,
				includeFormatters: false,
			}
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := runBuild(cmd.Context(), env, opts)
			if err != nil {
				return err
			}

			audit := env.policyEngine.Run(result.Snapshots, nil, func(msg string) {
				fmt.Fprintln(os.Stderr, "[audit]", msg)
			})

			if err := printAuditReport(audit, format); err != nil {
				return err
			}

			if audit.Status() == policy.AuditStatusError {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "artifact output directory (unused by audit)")
	cmd.Flags().StringVar(&format, "format", "human", "report format: human|json|markdown|html")

	return cmd
}

func printAuditReport(result policy.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "markdown":
		fmt.Println(auditMarkdown(result))
		return nil
	case "html":
		fmt.Println(auditHTML(result))
		return nil
	default:
		fmt.Println(auditHuman(result))
		return nil
	}
}

func auditHuman(result policy.Result) string {
	var b []string
	b = append(b, fmt.Sprintf("audit status: %s (%d violations across %d policies)",
		result.Status(), result.Summary.ViolationCount, result.Summary.PolicyCount))
	for _, report := range sortedReports(result.Policies) {
		for _, v := range report.Violations {
			b = append(b, fmt.Sprintf("  [%s] %s %s: %s", v.Severity, report.Name, v.Pointer, v.Message))
		}
	}
	return joinLines(b)
}

func auditMarkdown(result policy.Result) string {
	var b []string
	b = append(b, fmt.Sprintf("# Audit report: %s", result.Status()))
	b = append(b, "")
	b = append(b, "| Policy | Pointer | Severity | Message |")
	b = append(b, "|---|---|---|---|")
	for _, report := range sortedReports(result.Policies) {
		for _, v := range report.Violations {
			b = append(b, fmt.Sprintf("| %s | %s | %s | %s |", report.Name, v.Pointer, v.Severity, v.Message))
		}
	}
	return joinLines(b)
}

func auditHTML(result policy.Result) string {
	var b []string
	b = append(b, fmt.Sprintf("<h1>Audit report: %s</h1>", result.Status()))
	b = append(b, "<table><tr><th>Policy</th><th>Pointer</th><th>Severity</th><th>Message</th></tr>")
	for _, report := range sortedReports(result.Policies) {
		for _, v := range report.Violations {
			b = append(b, fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				report.Name, v.Pointer, v.Severity, v.Message))
		}
	}
	b = append(b, "</table>")
	return joinLines(b)
}

func sortedReports(reports []policy.PolicyReport) []policy.PolicyReport {
	out := make([]policy.PolicyReport, len(reports))
	copy(out, reports)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
