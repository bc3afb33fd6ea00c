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

// Package mutant holds the immutable record of a single mutation, produced
// by the catalog loader and consumed by the dispatcher.
package mutant

import "github.com/pathogen-dev/pathogen/internal/language"

// Outcome represents the classified result of running a Mutation through the
// worker pool.
type Outcome int

// Currently supported Outcome values.
const (
	// Survived means the test suite passed with the mutant in place.
	Survived Outcome = iota

	// BehavioralKill means the test suite failed for a reason unrelated to
	// compilation or system error, i.e. the mutation was caught.
	BehavioralKill

	// CompileError means the mutant produced a syntax, type, or system
	// error, bucketed separately because it is non-diagnostic of test
	// quality.
	CompileError
)

func (o Outcome) String() string {
	switch o {
	case Survived:
		return "SURVIVED"
	case BehavioralKill:
		return "BEHAVIORAL_KILL"
	case CompileError:
		return "COMPILE_ERROR"
	default:
		panic("this should not happen")
	}
}

// Kind is an informational category describing the shape of the mutation;
// it plays no part in classification, only in reporting.
type Kind string

// Kinds assigned by the catalog loader's best-effort guess from the
// original and mutated lines.
const (
	Arithmetic     Kind = "arithmetic"
	Comparison     Kind = "comparison"
	Logical        Kind = "logical"
	BooleanLiteral Kind = "boolean-literal"
	NumberLiteral  Kind = "number-literal"
	StringLiteral  Kind = "string-literal"
	Unary          Kind = "unary"
	Assignment     Kind = "assignment"
	Unknown        Kind = "unknown"
)

// Mutation is the immutable record of one candidate mutation as emitted by
// the catalog loader.
//
// MutatedContent is always the full contents of the mutant file, never a
// patch span: the worker process substitutes it wholesale for File and
// restores File's original content unconditionally once the targeted test
// has run.
type Mutation struct {
	ID             string
	File           string
	Line           int
	Column         int
	Original       string
	MutatedDiff    string
	MutatedContent string
	Language       language.Language
	Kind           Kind
}
