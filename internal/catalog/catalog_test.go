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

package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pathogen-dev/pathogen/internal/catalog"
	"github.com/pathogen-dev/pathogen/internal/language"
	"github.com/pathogen-dev/pathogen/internal/mutant"
)

func TestLoadResolvesMutantsAgainstOriginals(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "src")
	write(t, filepath.Join(src, "a.ts"), "export const x = 1 + 2;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "a.mutant.1.ts"), "export const x = 1 - 2;\n")

	got, err := catalog.Load(workspace, src, language.TypeScript)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(got))
	}

	m := got[0]
	if m.File != filepath.Join("src", "a.ts") {
		t.Errorf("File = %q, want %q", m.File, filepath.Join("src", "a.ts"))
	}
	if m.Line != 1 {
		t.Errorf("Line = %d, want 1", m.Line)
	}
	if m.MutatedContent != "export const x = 1 - 2;\n" {
		t.Errorf("MutatedContent = %q", m.MutatedContent)
	}
	if m.Kind != mutant.Arithmetic {
		t.Errorf("Kind = %q, want %q", m.Kind, mutant.Arithmetic)
	}
}

func TestLoadSkipsIdenticalMutant(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "src")
	write(t, filepath.Join(src, "a.ts"), "export const x = 1;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "a.mutant.1.ts"), "export const x = 1;\n")

	_, err := catalog.Load(workspace, src, language.TypeScript)
	if err == nil {
		t.Fatal("expected an error when no mutant resolves")
	}
}

func TestLoadSkipsUnresolvableMutantButKeepsOthers(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "src")
	write(t, filepath.Join(src, "a.ts"), "export const x = 1;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "a.mutant.1.ts"), "export const x = 2;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "missing.mutant.1.ts"), "export const y = 2;\n")

	got, err := catalog.Load(workspace, src, language.TypeScript)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if diff := cmp.Diff(1, len(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrorsOnMissingMutationsDir(t *testing.T) {
	workspace := t.TempDir()
	if _, err := catalog.Load(workspace, filepath.Join(workspace, "src"), language.Rust); err == nil {
		t.Fatal("expected an error when .mutations/<lang> is absent")
	}
}

func TestLoadIgnoresNonMutantFilesInCatalogDir(t *testing.T) {
	workspace := t.TempDir()
	src := filepath.Join(workspace, "src")
	write(t, filepath.Join(src, "a.ts"), "export const x = 1;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "a.mutant.1.ts"), "export const x = 2;\n")
	write(t, filepath.Join(workspace, ".mutations", "typescript", "README.md"), "not a mutant\n")

	got, err := catalog.Load(workspace, src, language.TypeScript)
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 mutation, got %d", len(got))
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
