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

package report

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFinalAssessmentBands(t *testing.T) {
	color.NoColor = true

	tests := []struct {
		name                         string
		behavioralKill, survived int
		want                         string
	}{
		{"well-tested", 96, 4, "well-tested against mutation"},
		{"needs attention", 85, 15, "needs attention: several mutations"},
		{"needs significant attention", 10, 90, "needs significant attention: many mutations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GlobalStats{BehavioralKill: tt.behavioralKill, Survived: tt.survived}
			if got := g.finalAssessment(); !strings.Contains(got, tt.want) {
				t.Errorf("finalAssessment() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}
