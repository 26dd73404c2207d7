// Package plugin is the WASM plugin host named in §9's "Plugin
// sandboxing" design note and SPEC_FULL.md's domain-stack table: policy
// plugins compiled to WASM are instantiated and capability-scoped here,
// replacing a dynamic `import(specifier)` with a wazero-hosted module.
// Diff strategy plugins are not loaded here.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/bylapidist/dtifx-sub001/internal/dtifxerr"
	"github.com/bylapidist/dtifx-sub001/internal/policy"
)

// Host loads WASM plugin modules, enforcing each module's declared
// capabilities. Every loaded plugin gets its own wazero runtime, mirroring
// openfroyo's one-runtime-per-provider host lifecycle, since each plugin's
// granted capability set shapes the host functions wired into its "env"
// module.
type Host struct {
	ctx     context.Context
	tempDir string

	mu        sync.Mutex
	instances []*instance
}

// NewHost constructs a Host. tempDir scopes the fs:temp capability for
// every plugin loaded from it.
func NewHost(ctx context.Context, tempDir string) (*Host, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Host{ctx: ctx, tempDir: tempDir}, nil
}

// Close tears down every instantiated module and its runtime.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, inst := range h.instances {
		_ = inst.runtime.Close(ctx)
	}
	h.instances = nil
	return nil
}

type instance struct {
	manifest *Manifest
	runtime  wazero.Runtime
	module   api.Module
	bridge   *bridge
	enforcer *CapabilityEnforcer
}

// Load implements policy.PluginSource: it instantiates the WASM module
// named by resolved.URL (a file:// specifier per §4.10) and returns a
// RegisterFunc that calls the module's registerName export once, wiring
// every rule id it reports into registry.
func (h *Host) Load(resolved policy.ResolvedSpecifier, registerName string) (policy.RegisterFunc, error) {
	if resolved.BareName != "" {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeUnsupportedSpecifier,
			"plugin host only loads file:// specifiers, got bare name: "+resolved.BareName)
	}
	wasmPath, err := filePathFromURL(resolved.URL)
	if err != nil {
		return nil, err
	}
	if registerName == "" {
		registerName = "register"
	}

	manifest, err := LoadManifest(wasmPath)
	if err != nil {
		return nil, err
	}
	if !manifest.HasExport(registerName) {
		return nil, dtifxerr.New(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"plugin manifest does not export "+registerName)
	}

	wasmBytes, err := os.ReadFile(wasmPath)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigNotFound,
			"failed to read plugin module: "+wasmPath, err)
	}

	runtime := wazero.NewRuntimeWithConfig(h.ctx, wazero.NewRuntimeConfig().WithCloseOnContextDone(true))
	if _, err := wasi_snapshot_preview1.Instantiate(h.ctx, runtime); err != nil {
		runtime.Close(h.ctx)
		return nil, fmt.Errorf("failed to instantiate WASI for %s: %w", wasmPath, err)
	}

	enforcer := NewCapabilityEnforcer(manifest.Capabilities, h.tempDir)
	if _, err := registerHostFunctions(h.ctx, runtime, enforcer); err != nil {
		runtime.Close(h.ctx)
		return nil, err
	}

	module, err := runtime.Instantiate(h.ctx, wasmBytes)
	if err != nil {
		runtime.Close(h.ctx)
		return nil, dtifxerr.Wrap(dtifxerr.ClassConfiguration, dtifxerr.CodeConfigInvalid,
			"failed to instantiate plugin module: "+wasmPath, err)
	}

	b, err := newBridge(module)
	if err != nil {
		runtime.Close(h.ctx)
		return nil, err
	}

	inst := &instance{
		manifest: manifest,
		runtime:  runtime,
		module:   module,
		bridge:   b,
		enforcer: enforcer,
	}
	h.mu.Lock()
	h.instances = append(h.instances, inst)
	h.mu.Unlock()

	return func(registry *policy.Registry, fctx policy.FactoryContext, options map[string]any) error {
		return registerPluginRules(h.ctx, inst, registry, registerName, options)
	}, nil
}

type registerRequest struct {
	Options map[string]any `json:"options"`
}

type registerResponse struct {
	Rules []struct {
		ID string `json:"id"`
	} `json:"rules"`
}

func registerPluginRules(ctx context.Context, inst *instance, registry *policy.Registry, registerName string, options map[string]any) error {
	reqBody, err := json.Marshal(registerRequest{Options: options})
	if err != nil {
		return err
	}
	respBody, err := inst.bridge.call(ctx, registerName, reqBody)
	if err != nil {
		return dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeRuleEvaluationFailed,
			"plugin "+registerName+" call failed", err)
	}
	var resp registerResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeRuleEvaluationFailed,
			"plugin "+registerName+" returned invalid JSON", err)
	}

	for _, r := range resp.Rules {
		ruleID := r.ID
		factory := func(entry policy.Entry, fctx policy.FactoryContext) ([]policy.Rule, error) {
			return []policy.Rule{{
				ID: ruleID,
				Run: func(pctx policy.Context) ([]policy.Violation, error) {
					return evaluatePluginRule(ctx, inst, ruleID, entry, pctx)
				},
			}}, nil
		}
		if err := registry.Register(ruleID, factory); err != nil {
			return err
		}
	}
	return nil
}

type evaluateRequest struct {
	RuleID    string                 `json:"ruleId"`
	Snapshots []pluginSnapshot       `json:"snapshots"`
	Options   map[string]any         `json:"options"`
}

type pluginSnapshot struct {
	Pointer string `json:"pointer"`
	Type    string `json:"type"`
	Value   any    `json:"value"`
}

type evaluateResponse struct {
	Violations []struct {
		Pointer  string         `json:"pointer"`
		Severity string         `json:"severity"`
		Message  string         `json:"message"`
		Details  map[string]any `json:"details"`
	} `json:"violations"`
}

func evaluatePluginRule(ctx context.Context, inst *instance, ruleID string, entry policy.Entry, pctx policy.Context) ([]policy.Violation, error) {
	snapshots := make([]pluginSnapshot, len(pctx.Snapshots))
	for i, s := range pctx.Snapshots {
		snapshots[i] = pluginSnapshot{Pointer: s.Pointer, Type: s.Token.Type, Value: s.Resolution.Value}
	}
	reqBody, err := json.Marshal(evaluateRequest{RuleID: ruleID, Snapshots: snapshots, Options: entry.Options})
	if err != nil {
		return nil, err
	}
	respBody, err := inst.bridge.call(ctx, "evaluate", reqBody)
	if err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeRuleEvaluationFailed,
			"plugin rule "+ruleID+" evaluation failed", err)
	}
	var resp evaluateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, dtifxerr.Wrap(dtifxerr.ClassStageFailure, dtifxerr.CodeRuleEvaluationFailed,
			"plugin rule "+ruleID+" returned invalid JSON", err)
	}

	violations := make([]policy.Violation, len(resp.Violations))
	for i, v := range resp.Violations {
		violations[i] = policy.Violation{
			Policy:   entry.Name,
			Pointer:  v.Pointer,
			Severity: policy.Severity(v.Severity),
			Message:  v.Message,
			Details:  v.Details,
		}
	}
	return violations, nil
}
