package commands

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/bylapidist/dtifx-sub001/internal/builtins"
	"github.com/bylapidist/dtifx-sub001/internal/cache"
	"github.com/bylapidist/dtifx-sub001/internal/config"
	"github.com/bylapidist/dtifx-sub001/internal/dependency"
	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/formatter"
	"github.com/bylapidist/dtifx-sub001/internal/pipeline"
	"github.com/bylapidist/dtifx-sub001/internal/planner"
	"github.com/bylapidist/dtifx-sub001/internal/plugin"
	"github.com/bylapidist/dtifx-sub001/internal/policy"
	"github.com/bylapidist/dtifx-sub001/internal/resolver"
	"github.com/bylapidist/dtifx-sub001/internal/telemetry"
	"github.com/bylapidist/dtifx-sub001/internal/transform"
)

// runtimeEnv holds every wired component a build/audit/watch command drives.
// It owns the process resources (plugin host, telemetry tracer) that must
// be released on the way out.
type runtimeEnv struct {
	doc          *config.Document
	env          *config.Environment
	orch         *pipeline.Orchestrator
	policyEngine *policy.Engine
	telemetry    *telemetry.Telemetry
	pluginHost   *plugin.Host

	plannerCfg     planner.Config
	transformDefs  []*transform.Definition
	formatterPlans []dtif.FormatterPlan
}

// buildOptions carries the flags shared by every command that runs the
// pipeline.
type buildOptions struct {
	configPath        string
	outDir            string
	jsonLogs          bool
	telemetryEnabled  bool
	includeTransforms bool
	includeFormatters bool
}

// loadEnvironment parses the configuration file at opts.configPath and
// wires every pipeline component against it, per §4.12's orchestrator
// assembly and §6's configuration-file contract.
func loadEnvironment(opts buildOptions) (*runtimeEnv, error) {
	configDir := filepath.Dir(opts.configPath)

	doc, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	starlark := config.NewStarlarkEvaluator(config.ReloadTimeout)
	cfgEnv := config.NewEnvironment(configDir, builtins.NewTransformRegistry(), builtins.NewFormatterRegistry(), starlark)

	plannerCfg, err := cfgEnv.BuildPlannerConfig(doc)
	if err != nil {
		return nil, err
	}
	transformDefs, err := cfgEnv.BuildTransforms(doc)
	if err != nil {
		return nil, err
	}
	outDir := opts.outDir
	if outDir == "" {
		outDir = filepath.Join(configDir, "dist")
	}
	formatterDefs, formatterPlans, err := cfgEnv.BuildFormatters(doc, outDir)
	if err != nil {
		return nil, err
	}
	policyEntries, err := cfgEnv.BuildPolicyEntries(doc)
	if err != nil {
		return nil, err
	}
	pluginConfigs := cfgEnv.BuildPluginConfigs(doc)

	ctx0 := context.Background()
	pluginHost, err := plugin.NewHost(ctx0, "")
	if err != nil {
		return nil, err
	}

	registry := policy.NewRegistry()
	if err := policy.RegisterBuiltins(registry); err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}
	fctx := policy.FactoryContext{ConfigDirectory: configDir, ConfigPath: opts.configPath}
	if err := policy.LoadPlugins(registry, pluginConfigs, fctx, pluginHost); err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}
	rules, err := registry.Build(policyEntries, fctx)
	if err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}
	policyEngine := policy.NewEngine(policyEntries, rules)

	schema, err := dtif.NewSchema()
	if err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}

	plan := planner.New(planner.DefaultGlobExpander, planner.DefaultFileLoader, schema.Validate)

	docCache := cache.NewDocumentCache()
	session := resolver.NewSession(docCache, planner.DocumentParserFromURI, nil)

	depStore := cache.NewDependencyStore(cfgEnv.DependencyStorePath(doc))
	tracker := dependency.NewTracker(depStore)

	transformCache := cache.NewTransformCache(filepath.Join(configDir, ".dtifx-cache", "transforms"))
	transformExecutor := transform.NewExecutor(transformCache, 0)

	writer := formatter.ArtifactWriter(writeArtifact)
	formatterExecutor := formatter.NewExecutor(formatterDefs, writer, outDir)

	level := zerolog.InfoLevel
	logger := telemetry.NewLogger(os.Stderr, !opts.jsonLogs, level)
	telemetryCfg := telemetry.DefaultConfig()
	if !opts.telemetryEnabled {
		telemetryCfg.Tracing.Enabled = false
		telemetryCfg.Metrics.Enabled = false
	}
	tp, err := telemetry.NewTracerProvider(ctx0, telemetryCfg)
	if err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}
	tracer := telemetry.NewTracer(tp)
	metrics, err := telemetry.NewMetrics(telemetryCfg.Metrics)
	if err != nil {
		pluginHost.Close(ctx0)
		return nil, err
	}
	bundle := telemetry.New(telemetryCfg, tracer, metrics, logger)

	orch := &pipeline.Orchestrator{
		Planner:    plan,
		Resolver:   session,
		Tracker:    tracker,
		Transforms: transformExecutor,
		Formatters: formatterExecutor,
		Telemetry:  bundle,
	}

	return &runtimeEnv{
		doc:            doc,
		env:            cfgEnv,
		orch:           orch,
		policyEngine:   policyEngine,
		telemetry:      bundle,
		pluginHost:     pluginHost,
		plannerCfg:     plannerCfg,
		transformDefs:  transformDefs,
		formatterPlans: formatterPlans,
	}, nil
}

// Close releases the process resources loadEnvironment acquired. Call once
// at the end of a command's run, after the last telemetry Flush.
func (r *runtimeEnv) Close() {
	r.telemetry.Tracer.Shutdown(context.Background())
	r.pluginHost.Close(context.Background())
}

// dtifContext attaches env's telemetry bundle to ctx so pipeline stages
// that only receive a context.Context can still start child spans.
func dtifContext(ctx context.Context, env *runtimeEnv) context.Context {
	return telemetry.ContextWithTelemetry(ctx, env.telemetry)
}

func writeArtifact(absolutePath string, contents []byte) error {
	if err := os.MkdirAll(filepath.Dir(absolutePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(absolutePath, contents, 0o644)
}
