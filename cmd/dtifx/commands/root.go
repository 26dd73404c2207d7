package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dtifx",
		Short: "DTIFX - design token build platform",
		Long: `dtifx ingests DTIF design token documents, resolves aliases across
layered sources, runs platform transforms and formatters, evaluates
governance policies, and diffs token sets for semver impact.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dtifx.cue", "build configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newCompareCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newExtractCommand())

	return rootCmd
}
