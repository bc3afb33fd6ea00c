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

// Package internal holds the JSON shape of the optional report file, kept
// apart from the console-rendering logic in the parent package.
package internal

// OutputResult is the root of the JSON report file.
type OutputResult struct {
	Stats       OutputStats      `json:"stats"`
	Results     []OutputMutation `json:"results"`
	GeneratedAt string           `json:"generated_at"`
	Version     string           `json:"version"`
}

// OutputStats mirrors report.GlobalStats, plus the per-file breakdown.
type OutputStats struct {
	TotalMutations  int          `json:"total_mutations"`
	BehavioralKills int          `json:"behavioral_kills"`
	CompileErrors   int          `json:"compile_errors"`
	Survived        int          `json:"survived"`
	Duration        float64      `json:"duration"`
	FilesTested     int          `json:"files_tested"`
	PerFileStats    []OutputFile `json:"per_file_stats"`
}

// OutputFile mirrors report.FileStats.
type OutputFile struct {
	FilePath          string           `json:"file_path"`
	TotalMutations    int              `json:"total_mutations"`
	BehavioralKills   int              `json:"behavioral_kills"`
	CompileErrors     int              `json:"compile_errors"`
	Survived          int              `json:"survived"`
	KillRate          float64          `json:"kill_rate"`
	SurvivedMutations []OutputSurvivor `json:"survived_mutations,omitempty"`
}

// OutputSurvivor is one surviving mutation, reported for follow-up.
type OutputSurvivor struct {
	Line     int    `json:"line"`
	Original string `json:"original"`
	Mutated  string `json:"mutated"`
}

// OutputMutation is one raw, unaggregated mutation result.
type OutputMutation struct {
	MutationID      string `json:"mutation_id"`
	File            string `json:"file"`
	Line            int    `json:"line"`
	Outcome         string `json:"outcome"`
	TestOutput      string `json:"test_output"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
}
