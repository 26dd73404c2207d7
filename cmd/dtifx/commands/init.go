package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [name]",
		Short: "Scaffold a new dtifx workspace",
		Long: `Create a build configuration, a tokens directory, and a starter DTIF
document so "dtifx build" has something to run against immediately.`,
		Example: `  dtifx init
  dtifx init design-system`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "workspace"
			if len(args) == 1 {
				name = args[0]
			}

			root := name
			if configPath != "dtifx.cue" {
				root = filepath.Dir(configPath)
			}

			log.Info().Str("root", root).Msg("scaffolding workspace")

			tokensDir := filepath.Join(root, "tokens")
			if err := os.MkdirAll(tokensDir, 0o755); err != nil {
				return fmt.Errorf("create tokens directory: %w", err)
			}
			fmt.Printf("✓ created directory: %s\n", tokensDir)

			tokensPath := filepath.Join(tokensDir, "colors.json")
			if err := writeIfAbsent(tokensPath, []byte(starterTokens)); err != nil {
				return err
			}
			fmt.Printf("✓ wrote starter tokens: %s\n", tokensPath)

			cfgPath := filepath.Join(root, "dtifx.yaml")
			if err := writeIfAbsent(cfgPath, []byte(starterConfig)); err != nil {
				return err
			}
			fmt.Printf("✓ wrote build configuration: %s\n", cfgPath)

			fmt.Printf("\nworkspace ready. next steps:\n")
			fmt.Printf("  dtifx build --config %s\n", cfgPath)
			fmt.Printf("  dtifx audit --config %s\n", cfgPath)

			return nil
		},
	}

	return cmd
}

func writeIfAbsent(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("• skipped existing file: %s\n", path)
		return nil
	}
	return os.WriteFile(path, content, 0o644)
}

const starterTokens = `{
  "color": {
    "brand": {
      "primary": {
        "$type": "color",
        "$value": "#336699"
      }
    }
  }
}
`

const starterConfig = `layers:
  - name: base

sources:
  - id: colors
    layer: base
    file:
      rootdir: tokens
      globs: ["*.json"]

transforms:
  entries:
    - name: css.customProperty

formatters:
  - name: css.variables
    options:
      fileName: tokens.css

audit:
  policies: []
`
