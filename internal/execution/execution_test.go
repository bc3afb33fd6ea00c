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

package execution_test

import (
	"testing"

	"github.com/pathogen-dev/pathogen/internal/execution"
)

func TestExitErr(t *testing.T) {
	testCases := []struct {
		name         string
		wantExitMsg  string
		errorType    execution.ErrorType
		wantExitCode int
	}{
		{
			name:         "catalog-load-failure",
			errorType:    execution.CatalogLoadFailure,
			wantExitMsg:  "failed to load the mutant catalog",
			wantExitCode: 10,
		},
		{
			name:         "workspace-build-failure",
			errorType:    execution.WorkspaceBuildFailure,
			wantExitMsg:  "failed to build the isolated workspace",
			wantExitCode: 11,
		},
		{
			name:         "kill-rate-threshold",
			errorType:    execution.KillRateThreshold,
			wantExitMsg:  "behavioral kill rate did not clear the configured threshold",
			wantExitCode: 12,
		},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := execution.NewExitErr(tc.errorType)

			exitCode := err.ExitCode()
			exitMessage := err.Error()

			if exitCode != tc.wantExitCode {
				t.Errorf("want %d, got %d", tc.wantExitCode, exitCode)
			}
			if exitMessage != tc.wantExitMsg {
				t.Errorf("want %q, got %q", tc.wantExitMsg, exitMessage)
			}
		})
	}
}
