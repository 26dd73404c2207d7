package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/extract"
)

func newExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract figma|sketch <export-file>",
		Short: "Translate a design tool export into a DTIF document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, source := args[0], args[1]

			registry := extract.NewRegistry()
			extractor, ok := registry.Lookup(provider)
			if !ok {
				return fmt.Errorf("unknown extractor %q (want figma or sketch)", provider)
			}

			result, err := extractor.Extract(source)
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				fmt.Fprintln(os.Stderr, "[extract]", w)
			}

			outPath, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = filepath.Join(filepath.Dir(source), provider+".dtif.json")
			}

			content, err := dtif.MarshalDocument(result.Document)
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, content, 0o644); err != nil {
				return err
			}

			fmt.Printf("wrote %s (%d tokens, %d warnings)\n", outPath, len(result.Document), len(result.Warnings))
			return nil
		},
	}

	cmd.Flags().String("out", "", "output DTIF document path (default: <export-dir>/<provider>.dtif.json)")

	return cmd
}
