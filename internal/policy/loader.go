package policy

import (
	"github.com/bylapidist/dtifx-sub001/internal/pluginspec"
)

// PluginConfig is one entry in the `audit.plugins` configuration list:
// either a bare specifier string or the expanded {module, register,
// options} form.
type PluginConfig struct {
	Module   string
	Register string
	Options  map[string]any
}

// ResolvedSpecifier is a plugin module specifier after §4.10's resolution
// rules have been applied: always either a file:// URL or a bare name.
type ResolvedSpecifier = pluginspec.Resolved

// ResolveSpecifier applies §4.10's plugin specifier resolution rules; see
// internal/pluginspec for the shared implementation the Diff Engine's
// strategy loader also uses.
func ResolveSpecifier(specifier, configDirectory string) (ResolvedSpecifier, error) {
	return pluginspec.Resolve(specifier, configDirectory)
}

// RegisterFunc is what a plugin module exports: it receives the shared
// Registry plus the factory context and registers factories
// side-effectfully, per §4.10 ("no global state").
type RegisterFunc func(registry *Registry, fctx FactoryContext, options map[string]any) error

// PluginSource loads a RegisterFunc for a resolved specifier. The WASM
// plugin host (internal/plugin) implements it for file:// specifiers and
// rejects bare names.
type PluginSource interface {
	Load(resolved ResolvedSpecifier, registerName string) (RegisterFunc, error)
}

// LoadPlugins resolves and registers every configured plugin into
// registry, in order.
func LoadPlugins(registry *Registry, configs []PluginConfig, fctx FactoryContext, source PluginSource) error {
	for _, cfg := range configs {
		resolved, err := ResolveSpecifier(cfg.Module, fctx.ConfigDirectory)
		if err != nil {
			return err
		}
		register, err := source.Load(resolved, cfg.Register)
		if err != nil {
			return err
		}
		if err := register(registry, fctx, cfg.Options); err != nil {
			return err
		}
	}
	return nil
}
