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

package mutant_test

import (
	"testing"

	"github.com/pathogen-dev/pathogen/internal/mutant"
)

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome mutant.Outcome
		want    string
	}{
		{mutant.Survived, "SURVIVED"},
		{mutant.BehavioralKill, "BEHAVIORAL_KILL"},
		{mutant.CompileError, "COMPILE_ERROR"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOutcomeStringPanicsOnUnknown(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected a panic for an unrecognised outcome")
		}
	}()

	_ = mutant.Outcome(99).String()
}
