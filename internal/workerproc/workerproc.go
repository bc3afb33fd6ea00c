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

// Package workerproc implements the request-handling side of a
// pathogen-worker child process: apply one mutation, run its targeted test,
// and restore the original file unconditionally before replying.
package workerproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pathogen-dev/pathogen/internal/ipc"
	"github.com/pathogen-dev/pathogen/internal/language"
)

const (
	targetedTestTimeout = 5 * time.Second
	fullSuiteTimeout    = 30 * time.Second
)

// execContext abstracts exec.CommandContext so tests can substitute a fake
// test runner process.
type execContext = func(ctx context.Context, name string, args ...string) *exec.Cmd

type options struct {
	execContext execContext
}

// Option configures Handle's behavior.
type Option func(*options)

// WithExecContext overrides the default exec.CommandContext with a custom
// executor, for substituting a fake test runner in tests.
func WithExecContext(c execContext) Option {
	return func(o *options) {
		o.execContext = c
	}
}

// Handle applies req's mutation, runs the targeted test, and restores the
// original file contents before returning — regardless of which branch
// below is taken. Only a failure to read the original file at all skips
// restoration, since there is nothing yet to restore.
func Handle(ctx context.Context, req ipc.MutationRequest, opts ...Option) ipc.TestResult {
	o := options{execContext: exec.CommandContext}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	targetFile := filepath.Join(req.WorkspaceDir, req.FilePath)

	original, err := os.ReadFile(targetFile)
	if err != nil {
		return errorResult(ipc.PrefixFileError, fmt.Sprintf("failed to read original file: %s", err), req.MutationID, start)
	}

	if err := os.WriteFile(targetFile, []byte(req.MutatedContent), 0o644); err != nil {
		if restoreErr := os.WriteFile(targetFile, original, 0o644); restoreErr != nil {
			fmt.Fprintf(os.Stderr, "WARNING: failed to restore original content for %s: %s\n", targetFile, restoreErr)
		}

		return errorResult(ipc.PrefixFileError, fmt.Sprintf("failed to write mutation: %s", err), req.MutationID, start)
	}

	output, runErr := runTargetedTest(ctx, req.WorkspaceDir, req.FilePath, req.Language, o.execContext)

	if restoreErr := os.WriteFile(targetFile, original, 0o644); restoreErr != nil {
		fmt.Fprintf(os.Stderr, "WARNING: failed to restore original content for %s: %s\n", targetFile, restoreErr)
	}

	elapsed := time.Since(start).Milliseconds()
	if runErr != nil {
		return classifyRunError(runErr, req.MutationID, elapsed)
	}

	return classifyOutput(output, req.MutationID, elapsed)
}

func errorResult(prefix, msg, mutationID string, start time.Time) ipc.TestResult {
	return ipc.TestResult{
		Success:         false,
		Output:          prefix + msg,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		MutationID:      mutationID,
	}
}

// classifyOutput implements the NO_TESTS / pass / fail split once the test
// runner itself exited successfully. A zero exit status alone isn't proof
// the tests passed — the runner's own "0 fail" marker is required, since a
// targeted test file with assertions that never execute can still exit 0.
func classifyOutput(output, mutationID string, elapsedMs int64) ipc.TestResult {
	if strings.Contains(output, "had no matches") {
		return ipc.TestResult{
			Success:         true,
			Output:          ipc.PrefixNoTests + output,
			ExecutionTimeMs: elapsedMs,
			MutationID:      mutationID,
		}
	}

	return ipc.TestResult{
		Success:         strings.Contains(output, "0 fail"),
		Output:          output,
		ExecutionTimeMs: elapsedMs,
		MutationID:      mutationID,
	}
}

// classifyRunError tags a spawn failure or a timeout with the prefix the
// dispatcher uses to bucket it as a CompileError rather than a
// BehavioralKill. Any other non-zero test run is returned untagged, with
// the runner's raw output.
func classifyRunError(err error, mutationID string, elapsedMs int64) ipc.TestResult {
	msg := err.Error()

	switch {
	case err == errTestTimedOut:
		return ipc.TestResult{
			Success:         false,
			Output:          fmt.Sprintf("%stest timed out (likely an infinite-loop mutation)", ipc.PrefixTimeout),
			ExecutionTimeMs: elapsedMs,
			MutationID:      mutationID,
		}
	case strings.Contains(msg, "failed to spawn"):
		return ipc.TestResult{
			Success:         false,
			Output:          ipc.PrefixExecutionError + msg,
			ExecutionTimeMs: elapsedMs,
			MutationID:      mutationID,
		}
	default:
		return ipc.TestResult{
			Success:         false,
			Output:          msg,
			ExecutionTimeMs: elapsedMs,
			MutationID:      mutationID,
		}
	}
}

var errTestTimedOut = fmt.Errorf("test timed out")

// runTargetedTest spawns the language's test runner against the file
// selected by TargetTestFile, capturing combined output. If no test file is
// identified it returns the "had no matches" sentinel the dispatcher treats
// as a surviving, untestable mutation.
func runTargetedTest(ctx context.Context, workspaceDir, mutatedFile string, lang language.Language, newCmd execContext) (string, error) {
	testFile, ok := TargetTestFile(workspaceDir, mutatedFile, lang)
	if !ok {
		return "had no matches - no test file found", nil
	}

	timeout := targetedTestTimeout
	if lang == language.Rust && testFile == mutatedFile {
		// A same-file Rust unit test runs the whole crate's test binary,
		// which is closer to a full-suite run than a single targeted test.
		timeout = fullSuiteTimeout
	}

	args := append(append([]string{}, lang.TestRunnerArgs()...), languageSpecificArgs(lang, testFile)...)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := newCmd(runCtx, lang.TestRunnerCommand(), args...)
	cmd.Dir = workspaceDir

	out, err := cmd.CombinedOutput()
	if runCtx.Err() != nil {
		return "", errTestTimedOut
	}
	if err != nil {
		if _, ok := err.(*exec.Error); ok {
			return "", fmt.Errorf("failed to spawn targeted test command: %w", err)
		}

		return "", fmt.Errorf("%s", string(out))
	}

	return string(out), nil
}

func languageSpecificArgs(lang language.Language, testFile string) []string {
	switch lang {
	case language.TypeScript:
		return []string{testFile}
	default:
		// Rust: the current design runs the whole crate's test binary; a
		// narrower --test <name> selection is left for a future pass.
		return nil
	}
}

// TargetTestFile applies the per-language convention for locating the test
// that exercises mutatedFile, rooted at workspaceDir.
func TargetTestFile(workspaceDir, mutatedFile string, lang language.Language) (string, bool) {
	switch lang {
	case language.TypeScript:
		return typeScriptTestFile(workspaceDir, mutatedFile)
	case language.Rust:
		return rustTestFile(workspaceDir, mutatedFile)
	default:
		return "", false
	}
}

func typeScriptTestFile(workspaceDir, mutatedFile string) (string, bool) {
	if !strings.HasSuffix(mutatedFile, ".ts") || strings.HasSuffix(mutatedFile, ".spec.ts") {
		return "", false
	}

	base := strings.TrimSuffix(mutatedFile, ".ts")
	testFile := base + ".spec.ts"
	if _, err := os.Stat(filepath.Join(workspaceDir, testFile)); err != nil {
		return "", false
	}

	return testFile, true
}

func rustTestFile(workspaceDir, mutatedFile string) (string, bool) {
	if !strings.HasSuffix(mutatedFile, ".rs") {
		return "", false
	}

	if content, err := os.ReadFile(filepath.Join(workspaceDir, mutatedFile)); err == nil {
		if strings.Contains(string(content), "#[cfg(test)]") || strings.Contains(string(content), "#[test]") {
			return mutatedFile, true
		}
	}

	stem := strings.TrimSuffix(filepath.Base(mutatedFile), ".rs")
	integrationTest := filepath.Join("tests", stem+".rs")
	if _, err := os.Stat(filepath.Join(workspaceDir, integrationTest)); err == nil {
		return integrationTest, true
	}

	return "", false
}
