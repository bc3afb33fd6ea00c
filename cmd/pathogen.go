/*
 * Copyright 2022 The Gremlins Authors
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package cmd wires the pathogen CLI: a single hidden root command (there
// is no subcommand verb, unlike this lineage's other tools) that loads
// configuration, builds the scratch workspace, loads the mutant catalog,
// drives the worker pool, and reports the result.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pathogen-dev/pathogen/cmd/internal/flags"
	"github.com/pathogen-dev/pathogen/internal/catalog"
	"github.com/pathogen-dev/pathogen/internal/configuration"
	"github.com/pathogen-dev/pathogen/internal/dispatcher"
	"github.com/pathogen-dev/pathogen/internal/execution"
	"github.com/pathogen-dev/pathogen/internal/language"
	"github.com/pathogen-dev/pathogen/internal/log"
	"github.com/pathogen-dev/pathogen/internal/mutant"
	"github.com/pathogen-dev/pathogen/internal/report"
	"github.com/pathogen-dev/pathogen/internal/workerpool"
	"github.com/pathogen-dev/pathogen/internal/workspace"
)

const paramConfigFile = "config"

const (
	paramSource            = "source"
	paramParallel          = "parallel"
	paramOutput            = "output"
	paramVerbose           = "verbose"
	paramDryRun            = "dry-run"
	paramNoCache           = "no-cache"
	paramSilent            = "silent"
	paramThresholdKillRate = "threshold-kill-rate"
)

// Execute initialises and runs the pathogen root command.
func Execute(ctx context.Context, version string) error {
	rootCmd, err := newRootCmd(ctx, version)
	if err != nil {
		return err
	}

	return rootCmd.Execute()
}

func newRootCmd(ctx context.Context, version string) (*cobra.Command, error) {
	if version == "" {
		return nil, errors.New("expected a version string")
	}

	cmd := &cobra.Command{
		Hidden:        true,
		SilenceUsage:  true,
		SilenceErrors: true,
		Use:           "pathogen [path]",
		Args:          cobra.MaximumNArgs(1),
		Short:         "Measure test-suite sensitivity via mutation testing",
		Long:          longExplainer(),
		Version:       version,
		RunE:          runPathogen(ctx, version),
	}

	var cfgFile string
	cobra.OnInitialize(func() {
		if err := configuration.Init([]string{cfgFile}); err != nil {
			log.Errorf("initialization error: %s\n", err)
			os.Exit(1)
		}
	})
	cmd.PersistentFlags().StringVar(&cfgFile, paramConfigFile, "", "override config file")

	if err := setFlagsOnCmd(cmd); err != nil {
		return nil, err
	}

	return cmd, nil
}

func longExplainer() string {
	return heredoc.Doc(`
		Pathogen measures how well a test suite catches small, deliberate changes
		to the source it tests. Given a directory of pre-generated mutants (see
		pathogen-plan) it replaces each original file with its mutant in turn,
		runs the targeted test, and classifies the outcome as Survived,
		BehavioralKill, or CompileError.

		In 'dry-run' mode pathogen only loads and summarizes the catalog; it
		never executes a test.

		--threshold-kill-rate is a configurable quality gate: pathogen exits
		non-zero if the run's global behavioral-kill rate does not clear it.
	`)
}

func setFlagsOnCmd(cmd *cobra.Command) error {
	cmd.Flags().SortFlags = false
	cmd.Flags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fls := []*flags.Flag{
		{Name: paramSource, CfgKey: configuration.SourceKey, Shorthand: "s", DefaultV: "src/cli", Usage: "directory to mutate"},
		{Name: paramParallel, CfgKey: configuration.ParallelKey, Shorthand: "p", DefaultV: runtime.NumCPU(), Usage: "worker pool size"},
		{Name: paramOutput, CfgKey: configuration.OutputKey, Shorthand: "o", DefaultV: "", Usage: "write a machine-readable JSON report to this path"},
		{Name: paramVerbose, CfgKey: configuration.VerboseKey, Shorthand: "v", DefaultV: false, Usage: "verbose output"},
		{Name: paramDryRun, CfgKey: configuration.DryRunKey, DefaultV: false, Usage: "load the catalog and print a summary, but do not execute tests"},
		{Name: paramNoCache, CfgKey: configuration.NoCacheKey, DefaultV: false, Usage: "reserved for future use"},
		{Name: paramSilent, CfgKey: configuration.SilentKey, Shorthand: "S", DefaultV: false, Usage: "suppress all non-error output"},
		{Name: paramThresholdKillRate, CfgKey: configuration.ThresholdKillRateKey, DefaultV: float64(0), Usage: "exit non-zero if the behavioral kill rate does not clear this percent"},
	}

	for _, f := range fls {
		if err := flags.Set(cmd, f); err != nil {
			return err
		}
	}

	return nil
}

func runPathogen(ctx context.Context, version string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, args []string) error {
		silent := configuration.Get[bool](configuration.SilentKey)

		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
		if len(args) > 0 {
			projectRoot = args[0]
		}

		src := configuration.Get[string](configuration.SourceKey)
		lang := detectLanguage(src)

		logInfof(silent, "Building isolated workspace for %s...\n", src)
		builder := workspace.New()
		scratchRoot, scratchSrc, err := builder.Build(projectRoot, filepath.Join(projectRoot, src))
		if err != nil {
			log.Errorf("failed to build workspace: %s\n", err)

			return execution.NewExitErr(execution.WorkspaceBuildFailure)
		}
		// The scratch workspace is deliberately left on disk rather than
		// cleaned up here: a force-killed worker from a timed-out mutation may
		// still be tearing down inside it, and removing it out from under that
		// process would race the teardown.

		mutations, err := catalog.Load(scratchRoot, scratchSrc, lang)
		if err != nil {
			log.Errorf("failed to load mutant catalog: %s\n", err)

			return execution.NewExitErr(execution.CatalogLoadFailure)
		}

		if configuration.Get[bool](configuration.DryRunKey) {
			printDryRun(mutations, silent)

			return nil
		}

		poolSize := configuration.Get[int](configuration.ParallelKey)
		if poolSize < 1 {
			poolSize = runtime.NumCPU()
		}

		logInfof(silent, "Spinning up %d worker(s)...\n", poolSize)
		pool, err := workerpool.New(ctx, workerpool.FindWorkerBinary(), scratchRoot, poolSize)
		if err != nil {
			log.Errorf("failed to start worker pool: %s\n", err)

			return execution.NewExitErr(execution.WorkspaceBuildFailure)
		}
		defer pool.Shutdown(context.Background())

		start := time.Now()
		results, err := dispatcher.Dispatch(ctx, pool, mutations, poolSize, scratchRoot, progressReporter(silent))
		if err != nil {
			return fmt.Errorf("dispatch: %w", err)
		}
		elapsed := time.Since(start)

		rep := report.Build(results, elapsed)

		return report.Do(rep, version)
	}
}

func detectLanguage(src string) language.Language {
	if strings.Contains(src, "rust") || strings.HasSuffix(src, ".rs") {
		return language.Rust
	}

	return language.TypeScript
}

// logInfof writes an informational line unless the run is silent. Warnings
// and errors always go through log.Errorf instead, and are never gated.
func logInfof(silent bool, f string, args ...any) {
	if silent {
		return
	}
	log.Infof(f, args...)
}

func progressReporter(silent bool) dispatcher.ProgressFunc {
	if silent || !configuration.Get[bool](configuration.VerboseKey) {
		return nil
	}

	return func(done, total int) {
		log.Infof("  %d/%d mutations complete\n", done, total)
	}
}

func printDryRun(mutations []mutant.Mutation, silent bool) {
	if silent {
		return
	}

	byLanguage := make(map[string]int)
	for _, m := range mutations {
		byLanguage[m.Language.String()]++
	}

	log.Infof("\nFound %d mutant(s):\n", len(mutations))
	for lang, count := range byLanguage {
		log.Infof("  %s: %d\n", lang, count)
	}

	sample := mutations
	if len(sample) > 5 {
		sample = sample[:5]
	}
	log.Infof("\nSample:\n")
	for _, m := range sample {
		log.Infof("  %s:%d  %s  (%s)\n", m.File, m.Line, m.Kind, m.ID)
	}
}
