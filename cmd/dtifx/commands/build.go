package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bylapidist/dtifx-sub001/internal/dtif"
	"github.com/bylapidist/dtifx-sub001/internal/history"
	"github.com/bylapidist/dtifx-sub001/internal/pipeline"
	"github.com/bylapidist/dtifx-sub001/internal/watch"
)

func newBuildCommand() *cobra.Command {
	var (
		outDir         string
		jsonLogs       bool
		timings        bool
		telemetryFlag  bool
		noTransforms   bool
		noFormatters   bool
		watchFlag      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the token build pipeline",
		Example: `  dtifx build --config dtifx.cue
  dtifx build --out-dir dist --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := buildOptions{
				configPath:        configPath,
				outDir:            outDir,
				jsonLogs:          jsonLogs,
				telemetryEnabled:  telemetryFlag,
				includeTransforms: !noTransforms,
				includeFormatters: !noFormatters,
			}

			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			defer env.Close()

			historyStore, err := openHistoryStore(cmd.Context(), env)
			if err != nil {
				return err
			}
			if historyStore != nil {
				defer historyStore.Close()
			}

			runOnce := func(ctx context.Context, reason watch.Reason) error {
				result, err := runBuild(ctx, env, opts)
				recordHistory(ctx, historyStore, result, err)
				if err != nil {
					return err
				}
				if timings {
					printTimings(result)
				}
				return nil
			}

			if !watchFlag {
				return runOnce(cmd.Context(), watch.Reason{})
			}
			return runWatch(cmd.Context(), env, opts, runOnce)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "artifact output directory (default: <config dir>/dist)")
	cmd.Flags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")
	cmd.Flags().BoolVar(&timings, "timings", false, "print per-stage timing summary after the run")
	cmd.Flags().BoolVar(&telemetryFlag, "telemetry", true, "enable tracing and metrics export")
	cmd.Flags().BoolVar(&noTransforms, "no-transforms", false, "skip the transformation stage")
	cmd.Flags().BoolVar(&noFormatters, "no-formatters", false, "skip the formatter stage")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "rebuild on source and configuration changes")

	cmd.AddCommand(newBuildInspectCommand())
	return cmd
}

func runBuild(ctx context.Context, env *runtimeEnv, opts buildOptions) (*pipeline.Result, error) {
	ctx = dtifContext(ctx, env)
	return env.orch.Run(ctx, env.plannerCfg, pipeline.Options{
		IncludeTransforms: opts.includeTransforms,
		IncludeFormatters: opts.includeFormatters,
		TransformDefs:     env.transformDefs,
		FormatterPlans:    env.formatterPlans,
	})
}

func runWatch(ctx context.Context, env *runtimeEnv, opts buildOptions, build watch.BuildFunc) error {
	reload := func(ctx context.Context) error {
		reloaded, err := loadEnvironment(opts)
		if err != nil {
			return err
		}
		oldPluginHost := env.pluginHost
		oldTelemetry := env.telemetry

		env.orch = reloaded.orch
		env.plannerCfg = reloaded.plannerCfg
		env.transformDefs = reloaded.transformDefs
		env.formatterPlans = reloaded.formatterPlans
		env.policyEngine = reloaded.policyEngine
		env.pluginHost = reloaded.pluginHost
		env.telemetry = reloaded.telemetry

		oldTelemetry.Tracer.Shutdown(ctx)
		return oldPluginHost.Close(ctx)
	}

	scheduler := watch.NewScheduler(opts.configPath, 0, build, reload)
	roots := watchedPaths(env)
	log.Info().Strs("paths", roots).Msg("watching for changes")
	return scheduler.Watch(ctx, roots)
}

func watchedPaths(env *runtimeEnv) []string {
	seen := make(map[string]struct{})
	var paths []string
	for _, src := range env.plannerCfg.Sources {
		if src.Kind != dtif.SourceKindFile {
			continue
		}
		if _, ok := seen[src.RootDir]; ok {
			continue
		}
		seen[src.RootDir] = struct{}{}
		paths = append(paths, src.RootDir)
	}
	return paths
}

func openHistoryStore(ctx context.Context, env *runtimeEnv) (*history.Store, error) {
	path := historyDBPath(env)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return history.Open(ctx, history.Config{Path: path})
}

func historyDBPath(env *runtimeEnv) string {
	return filepath.Join(env.env.ConfigDir, ".dtifx-cache", "history", "runs.db")
}

func recordHistory(ctx context.Context, store *history.Store, result *pipeline.Result, runErr error) {
	if store == nil {
		return
	}
	startedAt := time.Now()
	if result != nil {
		startedAt = startedAt.Add(-result.Duration)
	}
	var run *history.Run
	if runErr != nil {
		run = history.FromFailure(fmt.Sprintf("run-%d", time.Now().UnixNano()), startedAt, time.Now(), runErr)
	} else if result != nil {
		run = history.FromPipelineResult(result, startedAt, nil)
	} else {
		return
	}
	if err := store.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("failed to record build history")
	}
}

func printTimings(result *pipeline.Result) {
	if result == nil {
		return
	}
	fmt.Printf("run %s completed in %s (%d snapshots, %d transform results)\n",
		result.RunID, result.Duration, len(result.Snapshots), len(result.TransformResults))
}

func newBuildInspectCommand() *cobra.Command {
	var (
		outDir       string
		pointer      string
		tokenType    string
		format       string
		noTransforms bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Resolve and transform tokens, printing the result without writing artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := buildOptions{
				configPath:        configPath,
				outDir:            outDir,
				includeTransforms: !noTransforms,
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

			filtered := filterSnapshots(result.Snapshots, pointer, tokenType)
			return printInspection(filtered, format)
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "artifact output directory (unused by inspect)")
	cmd.Flags().StringVar(&pointer, "pointer", "", "restrict output to one token pointer")
	cmd.Flags().StringVar(&tokenType, "type", "", "restrict output to one $type")
	cmd.Flags().StringVar(&format, "format", "human", "output format: human|json")
	cmd.Flags().BoolVar(&noTransforms, "no-transforms", false, "skip the transformation stage")

	return cmd
}

func filterSnapshots(snapshots []*dtif.TokenSnapshot, pointer, tokenType string) []*dtif.TokenSnapshot {
	if pointer == "" && tokenType == "" {
		return snapshots
	}
	var out []*dtif.TokenSnapshot
	for _, snap := range snapshots {
		if pointer != "" && snap.Pointer != pointer {
			continue
		}
		if tokenType != "" && snap.Token.Type != tokenType {
			continue
		}
		out = append(out, snap)
	}
	return out
}

func printInspection(snapshots []*dtif.TokenSnapshot, format string) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshots)
	}
	for _, snap := range snapshots {
		fmt.Printf("%s  %s = %v\n", snap.Pointer, snap.Token.Type, snap.Resolution.Value)
	}
	return nil
}
