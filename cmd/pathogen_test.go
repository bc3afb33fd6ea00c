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

package cmd

import (
	"context"
	"testing"

	"github.com/pathogen-dev/pathogen/internal/language"
)

func TestNewRootCmd(t *testing.T) {
	cmd, err := newRootCmd(context.Background(), "1.2.3")
	if err != nil {
		t.Fatal("newRootCmd should not fail")
	}

	if cmd.Version != "1.2.3" {
		t.Errorf("expected %q, got %q", "1.2.3", cmd.Version)
	}

	cfgFile := cmd.Flag("config")
	if cfgFile == nil {
		t.Fatal("expected a config flag")
	}
	if cfgFile.Value.Type() != "string" {
		t.Errorf("expected value type to be 'string', got %v", cfgFile.Value.Type())
	}

	silentFlag := cmd.Flag(paramSilent)
	if silentFlag == nil {
		t.Fatal("expected a silent flag")
	}
	if silentFlag.Value.Type() != "bool" {
		t.Errorf("expected value type to be 'bool', got %v", silentFlag.Value.Type())
	}
	if silentFlag.DefValue != "false" {
		t.Errorf("expected default value to be false, got %v", silentFlag.DefValue)
	}

	parallelFlag := cmd.Flag(paramParallel)
	if parallelFlag == nil {
		t.Fatal("expected a parallel flag")
	}
	if parallelFlag.Value.Type() != "int" {
		t.Errorf("expected value type to be 'int', got %v", parallelFlag.Value.Type())
	}
}

func TestNewRootCmdFailsWithoutVersion(t *testing.T) {
	if _, err := newRootCmd(context.Background(), ""); err == nil {
		t.Error("expected failure when version is empty")
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		src  string
		want language.Language
	}{
		{"src/cli", language.TypeScript},
		{"src/rust/pathogen", language.Rust},
		{"pkg/lib.rs", language.Rust},
	}

	for _, tt := range tests {
		if got := detectLanguage(tt.src); got != tt.want {
			t.Errorf("detectLanguage(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}
