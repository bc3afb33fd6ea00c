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

// Package report aggregates classified dispatcher results into per-file and
// global statistics, renders the console summary, and optionally writes a
// JSON report file.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/hako/durafmt"

	"github.com/pathogen-dev/pathogen/internal/configuration"
	"github.com/pathogen-dev/pathogen/internal/dispatcher"
	"github.com/pathogen-dev/pathogen/internal/execution"
	"github.com/pathogen-dev/pathogen/internal/log"
	"github.com/pathogen-dev/pathogen/internal/mutant"
	"github.com/pathogen-dev/pathogen/internal/report/internal"
)

var (
	fgRed      = color.New(color.FgRed).SprintFunc()
	fgGreen    = color.New(color.FgGreen).SprintFunc()
	fgHiBlack  = color.New(color.FgHiBlack).SprintFunc()
	fgHiYellow = color.New(color.FgYellow).SprintFunc()
)

// Survivor is one mutation that survived its test run, carried forward into
// the report for follow-up.
type Survivor struct {
	Line     int
	Original string
	Mutated  string
}

// FileStats aggregates one source file's mutation results.
type FileStats struct {
	File           string
	Total          int
	BehavioralKill int
	CompileError   int
	Survived       int
	Survivors      []Survivor
}

// KillRate is the behavioral-kill rate among viable mutations, i.e.
// excluding compile errors, which are non-diagnostic of test quality.
func (f FileStats) KillRate() float64 {
	viable := f.BehavioralKill + f.Survived
	if viable == 0 {
		return 0
	}

	return float64(f.BehavioralKill) / float64(viable) * 100
}

// Badge renders the traffic-light indicator for a file's kill rate.
func (f FileStats) Badge() string {
	switch rate := f.KillRate(); {
	case rate >= 95:
		return "🟢"
	case rate >= 80:
		return "🟡"
	default:
		return "🔴"
	}
}

// GlobalStats aggregates every file's results into run-wide totals.
type GlobalStats struct {
	Total          int
	BehavioralKill int
	CompileError   int
	Survived       int
	Duration       time.Duration
}

// KillRate is the run-wide behavioral-kill rate among viable mutations.
func (g GlobalStats) KillRate() float64 {
	viable := g.BehavioralKill + g.Survived
	if viable == 0 {
		return 0
	}

	return float64(g.BehavioralKill) / float64(viable) * 100
}

// Throughput is the number of mutations processed per second.
func (g GlobalStats) Throughput() float64 {
	if g.Duration <= 0 {
		return 0
	}

	return float64(g.Total) / g.Duration.Seconds()
}

// Report is the full aggregation of one run, ready to be printed or
// serialized.
type Report struct {
	Global   GlobalStats
	Files    []FileStats
	Warnings []string
	Results  []dispatcher.Result
}

// Build aggregates dispatcher results into a Report, sorting per-file rows
// by kill rate ascending (worst first).
func Build(results []dispatcher.Result, elapsed time.Duration) *Report {
	byFile := make(map[string]*FileStats)
	var order []string

	var timeouts, noTests int

	for _, r := range results {
		fs, ok := byFile[r.Mutation.File]
		if !ok {
			fs = &FileStats{File: r.Mutation.File}
			byFile[r.Mutation.File] = fs
			order = append(order, r.Mutation.File)
		}

		fs.Total++
		switch r.Outcome {
		case mutant.BehavioralKill:
			fs.BehavioralKill++
		case mutant.CompileError:
			fs.CompileError++
		case mutant.Survived:
			fs.Survived++
			fs.Survivors = append(fs.Survivors, Survivor{
				Line:     r.Mutation.Line,
				Original: r.Mutation.Original,
				Mutated:  r.Mutation.MutatedDiff,
			})
		}

		if hasPrefixAny(r.Output, "TIMEOUT: ") {
			timeouts++
		}
		if hasPrefixAny(r.Output, "NO_TESTS: ") {
			noTests++
		}
	}

	files := make([]FileStats, 0, len(order))
	var global GlobalStats
	for _, f := range order {
		fs := *byFile[f]
		files = append(files, fs)
		global.Total += fs.Total
		global.BehavioralKill += fs.BehavioralKill
		global.CompileError += fs.CompileError
		global.Survived += fs.Survived
	}
	global.Duration = elapsed

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].KillRate() < files[j].KillRate()
	})

	rep := &Report{Global: global, Files: files, Results: results}
	rep.Warnings = warnings(global, timeouts, noTests)

	return rep
}

func hasPrefixAny(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// warnings implements the four trust-gating checks from the reporter spec.
// These are never withheld by --silent, since they gate trust in the run
// itself rather than describing its outcome.
func warnings(g GlobalStats, timeouts, noTests int) []string {
	var w []string

	if g.KillRate() > 99.5 && g.Total > 100 {
		w = append(w, "this suite is suspiciously effective, verify the catalog isn't trivial")
	}
	if noTests > 0 {
		w = append(w, fmt.Sprintf("%d mutation(s) had no targeted test and were treated as surviving", noTests))
	}
	if g.Total > 0 && float64(timeouts)/float64(g.Total) > 0.05 {
		w = append(w, "the targeted timeout may be too aggressive for this suite")
	}
	if g.CompileError > g.BehavioralKill {
		w = append(w, "the catalog is generating too many non-viable mutants")
	}

	return w
}

// Print renders the per-file table and final summary line to the logger,
// unless silent is set. Warnings are printed through Errorf either way:
// they gate trust in the run itself and are never withheld by --silent.
func (r *Report) Print(silent bool) {
	if !silent {
		log.Infoln("")
		for _, f := range r.Files {
			log.Infof("%s %-40s kill rate %5.1f%%  (killed %s, survived %s, compile errors %s)\n",
				f.Badge(), f.File, f.KillRate(), fgGreen(f.BehavioralKill), fgRed(f.Survived), fgHiBlack(f.CompileError))
		}
		log.Infoln("")
	}

	for _, w := range r.Warnings {
		log.Errorf("warning: %s\n", w)
	}

	if silent {
		return
	}

	elapsed := durafmt.Parse(r.Global.Duration).LimitFirstN(2)
	log.Infof("Mutation testing completed in %s\n", elapsed.String())
	log.Infof("Total: %d, Killed: %s, Survived: %s, Compile errors: %s\n",
		r.Global.Total, fgGreen(r.Global.BehavioralKill), fgRed(r.Global.Survived), fgHiBlack(r.Global.CompileError))
	log.Infof("Behavioral kill rate: %.2f%% (%.1f mutations/sec)\n", r.Global.KillRate(), r.Global.Throughput())
	log.Infof("%s\n", r.Global.finalAssessment())
}

// finalAssessment classifies the overall run in one closing sentence, keyed
// off the same kill-rate bands as the per-file badges.
func (g GlobalStats) finalAssessment() string {
	switch rate := g.KillRate(); {
	case rate >= 95:
		return fgGreen("This test suite is well-tested against mutation.")
	case rate >= 80:
		return fgHiYellow("This test suite needs attention: several mutations survived undetected.")
	default:
		return fgRed("This test suite needs significant attention: many mutations survived undetected.")
	}
}

// WriteJSON writes r to path, in the report's externally-facing JSON shape:
// aggregated stats (global and per-file) alongside the raw, unaggregated
// per-mutation results.
func (r *Report) WriteJSON(path, version string, generatedAt time.Time) error {
	out := internal.OutputResult{
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Version:     version,
		Stats: internal.OutputStats{
			TotalMutations:  r.Global.Total,
			BehavioralKills: r.Global.BehavioralKill,
			CompileErrors:   r.Global.CompileError,
			Survived:        r.Global.Survived,
			Duration:        r.Global.Duration.Seconds(),
			FilesTested:     len(r.Files),
		},
	}

	for _, f := range r.Files {
		of := internal.OutputFile{
			FilePath:        f.File,
			TotalMutations:  f.Total,
			BehavioralKills: f.BehavioralKill,
			CompileErrors:   f.CompileError,
			Survived:        f.Survived,
			KillRate:        f.KillRate(),
		}
		for _, s := range f.Survivors {
			of.SurvivedMutations = append(of.SurvivedMutations, internal.OutputSurvivor{
				Line:     s.Line,
				Original: s.Original,
				Mutated:  s.Mutated,
			})
		}
		out.Stats.PerFileStats = append(out.Stats.PerFileStats, of)
	}

	for _, res := range r.Results {
		out.Results = append(out.Results, internal.OutputMutation{
			MutationID:      res.Mutation.ID,
			File:            res.Mutation.File,
			Line:            res.Mutation.Line,
			Outcome:         res.Outcome.String(),
			TestOutput:      res.Output,
			ExecutionTimeMs: res.ExecutionTimeMs,
		})
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("report: marshal json: %w", err)
	}

	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", path, err)
	}

	return nil
}

// Do renders r, optionally writes the JSON report named by --output, and
// returns execution.KillRateThreshold if the run's behavioral kill rate
// did not clear --threshold-kill-rate.
func Do(r *Report, version string) error {
	silent := configuration.Get[bool](configuration.SilentKey)

	if len(r.Files) == 0 {
		if !silent {
			log.Infoln("\nNo results to report.")
		}

		return nil
	}

	r.Print(silent)

	if output := configuration.Get[string](configuration.OutputKey); output != "" {
		if err := r.WriteJSON(output, version, time.Now()); err != nil {
			log.Errorf("%s\n", err)
		}
	}

	threshold := configuration.Get[float64](configuration.ThresholdKillRateKey)
	if threshold > 0 && r.Global.KillRate() <= threshold {
		return execution.NewExitErr(execution.KillRateThreshold)
	}

	return nil
}
