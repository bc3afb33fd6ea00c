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

// Package dispatcher fans a catalog of mutations out across a worker pool,
// classifies each result, and reports progress as it goes.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pathogen-dev/pathogen/internal/ipc"
	"github.com/pathogen-dev/pathogen/internal/mutant"
)

// Executor runs one mutation request through the worker pool. *workerpool.Pool
// satisfies this; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, req ipc.MutationRequest) (ipc.TestResult, error)
}

// Result pairs a Mutation with its classified Outcome.
type Result struct {
	Mutation        mutant.Mutation
	Outcome         mutant.Outcome
	Output          string
	ExecutionTimeMs int64
}

// ProgressFunc is invoked once per completed mutation, after classification.
// A nil ProgressFunc is allowed; Dispatch then reports no progress.
type ProgressFunc func(done, total int)

// Dispatch runs every mutation in mutations through pool, bounding
// concurrency to poolSize in-flight requests at a time. Two mutations that
// target the same original file are serialized against each other via a
// per-file mutex, since concurrent workers both rewriting one file would
// race; mutations against distinct files run fully in parallel.
func Dispatch(ctx context.Context, pool Executor, mutations []mutant.Mutation, poolSize int, workspaceDir string, onProgress ProgressFunc) ([]Result, error) {
	results := make([]Result, len(mutations))

	var fileLocks sync.Map // map[string]*sync.Mutex
	var completed int
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(poolSize)

	for i, m := range mutations {
		i, m := i, m
		g.Go(func() error {
			lockIface, _ := fileLocks.LoadOrStore(m.File, &sync.Mutex{})
			fileLock := lockIface.(*sync.Mutex)
			fileLock.Lock()
			defer fileLock.Unlock()

			req := ipc.MutationRequest{
				FilePath:       m.File,
				MutatedContent: m.MutatedContent,
				MutationID:     m.ID,
				WorkspaceDir:   workspaceDir,
				Language:       m.Language,
			}

			testResult, err := pool.Execute(gCtx, req)
			if err != nil {
				return fmt.Errorf("dispatcher: mutation %s: %w", m.ID, err)
			}

			results[i] = Result{
				Mutation:        m,
				Outcome:         Classify(testResult),
				Output:          testResult.Output,
				ExecutionTimeMs: testResult.ExecutionTimeMs,
			}

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()

			if onProgress != nil {
				onProgress(n, len(mutations))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// systemErrorPrefixes mark a TestResult as a system/infrastructure failure
// rather than a behavioral one; these are bucketed with compile errors
// because neither is diagnostic of test-suite quality.
var systemErrorPrefixes = []string{
	ipc.PrefixTimeout,
	ipc.PrefixFileError,
	ipc.PrefixExecutionError,
}

// compilationErrorMarkers are substrings that indicate the mutant failed to
// even compile/type-check, across the supported target languages.
var compilationErrorMarkers = []string{
	"compilation",
	"syntax",
	"SyntaxError",
	"TypeError",
	"ReferenceError",
	"error TS",
	"cannot resolve",
	"cannot find module",
	"property does not exist",
}

// Classify buckets a worker's TestResult into one of the three reportable
// outcomes.
func Classify(r ipc.TestResult) mutant.Outcome {
	if r.Success {
		return mutant.Survived
	}
	if hasAnyPrefix(r.Output, systemErrorPrefixes) || containsAny(r.Output, compilationErrorMarkers) {
		return mutant.CompileError
	}

	return mutant.BehavioralKill
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
