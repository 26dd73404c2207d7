package diff

import "github.com/bylapidist/dtifx-sub001/internal/pluginspec"

// StrategyConfig is one configured rename/impact/summary strategy:
// either a bare specifier string or an expanded {module, options} form,
// resolved with the same rules as policy plugins per §4.11.
type StrategyConfig struct {
	Module  string
	Options map[string]any
}

// ResolveStrategySpecifier resolves a strategy plugin's module specifier
// against configDirectory.
func ResolveStrategySpecifier(cfg StrategyConfig, configDirectory string) (pluginspec.Resolved, error) {
	return pluginspec.Resolve(cfg.Module, configDirectory)
}
