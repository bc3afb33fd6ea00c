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

// Package catalog loads the pre-generated mutant files that drive a run,
// pairing each one back to the original source file it mutates.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pathogen-dev/pathogen/internal/log"
	"github.com/pathogen-dev/pathogen/internal/mutant"

	"github.com/pathogen-dev/pathogen/internal/language"
)

// mutantMarker recognises "<stem>.mutant.<n>.<ext>" after TrimSuffix of
// the extension has already happened, i.e. it matches against the file stem.
const mutantMarker = "mutant"

// Load walks workspaceDir/.mutations/<lang> and returns one mutant.Mutation
// per catalog file that resolves to an original file under src (the first
// match by basename, see findOriginalFile). Catalog entries that cannot be resolved, or whose mutated content is
// byte-identical to the original, are skipped with a warning rather than
// aborting the whole load.
func Load(workspaceDir, src string, lang language.Language) ([]mutant.Mutation, error) {
	mutationsDir := filepath.Join(workspaceDir, ".mutations", lang.Dir())

	entries, err := os.ReadDir(mutationsDir)
	if err != nil {
		return nil, fmt.Errorf("catalog: no mutants directory at %s: %w", mutationsDir, err)
	}

	var (
		mutations []mutant.Mutation
		counter   int
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		m, err := parse(entry.Name(), mutationsDir, workspaceDir, src, lang, counter+1)
		if err != nil {
			log.Errorf("catalog: skipping %s: %s\n", entry.Name(), err)

			continue
		}
		if m == nil {
			continue
		}

		counter++
		mutations = append(mutations, *m)
	}

	if len(mutations) == 0 {
		return nil, fmt.Errorf("catalog: no mutant in %s resolved to an original file", mutationsDir)
	}

	return mutations, nil
}

// parse decodes a single catalog filename and, if it matches the
// "<stem>.mutant.<n>.<ext>" convention, builds the mutant.Mutation record for
// it. A nil, nil return means the file is not a mutant file and should be
// silently ignored (not every entry under .mutations/<lang> need be one).
//
// Mutation.File is stored relative to workspaceDir, since that is the form
// the worker process expects when it rejoins it against the workspace it is
// rooted in.
func parse(name, mutationsDir, workspaceDir, src string, lang language.Language, id int) (*mutant.Mutation, error) {
	ext := lang.Extension()
	if !strings.HasSuffix(name, "."+ext) {
		return nil, nil
	}

	stem := strings.TrimSuffix(name, "."+ext)
	parts := strings.Split(stem, ".")
	if len(parts) < 3 || parts[len(parts)-2] != mutantMarker {
		return nil, nil
	}

	originalStem := parts[0]
	originalFile, err := findOriginalFile(src, originalStem+"."+ext)
	if err != nil {
		return nil, err
	}

	relFile, err := filepath.Rel(workspaceDir, originalFile)
	if err != nil {
		return nil, fmt.Errorf("resolve %s relative to workspace: %w", originalFile, err)
	}

	originalContent, err := os.ReadFile(originalFile)
	if err != nil {
		return nil, fmt.Errorf("read original %s: %w", originalFile, err)
	}
	mutantPath := filepath.Join(mutationsDir, name)
	mutatedContent, err := os.ReadFile(mutantPath)
	if err != nil {
		return nil, fmt.Errorf("read mutant %s: %w", mutantPath, err)
	}
	if string(originalContent) == string(mutatedContent) {
		return nil, fmt.Errorf("mutated content identical to %s, nothing to test", originalFile)
	}

	line, origTrimmed, mutTrimmed, ok := diffLine(string(originalContent), string(mutatedContent))
	if !ok {
		return nil, fmt.Errorf("no differing line found against %s", originalFile)
	}

	return &mutant.Mutation{
		ID:             fmt.Sprintf("unimut_%d", id),
		File:           relFile,
		Line:           line,
		Column:         0,
		Original:       origTrimmed,
		MutatedDiff:    mutTrimmed,
		MutatedContent: string(mutatedContent),
		Language:       lang,
		Kind:           classifyKind(origTrimmed, mutTrimmed),
	}, nil
}

// findOriginalFile recursively searches src for a file named target,
// returning the first match. Two files sharing a basename in different
// subtrees are indistinguishable to the catalog, which names mutants by bare
// stem; the first match in directory-walk order wins.
func findOriginalFile(src, target string) (string, error) {
	var found string

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found != "" {
			return filepath.SkipDir
		}
		if !info.IsDir() && info.Name() == target {
			found = path

			return filepath.SkipDir
		}

		return nil
	})
	if err != nil && err != filepath.SkipDir {
		return "", fmt.Errorf("search %s for %s: %w", src, target, err)
	}
	if found == "" {
		return "", fmt.Errorf("could not find original file %q under %s", target, src)
	}

	return found, nil
}

// diffLine returns the first 1-indexed line at which the trimmed content of
// original and mutated differ, plus both trimmed lines. ok is false if no
// such line exists (e.g. the files differ only in trailing whitespace).
func diffLine(original, mutated string) (line int, origTrimmed, mutTrimmed string, ok bool) {
	origLines := strings.Split(original, "\n")
	mutLines := strings.Split(mutated, "\n")

	n := len(origLines)
	if len(mutLines) < n {
		n = len(mutLines)
	}

	for i := 0; i < n; i++ {
		o := strings.TrimSpace(origLines[i])
		m := strings.TrimSpace(mutLines[i])
		if o != m {
			return i + 1, o, m, true
		}
	}

	return 0, "", "", false
}

// classifyKind makes a best-effort, purely informational guess at the shape
// of a mutation from its two trimmed lines. It never affects classification
// of test outcomes, only reporting.
func classifyKind(orig, mutated string) mutant.Kind {
	switch {
	case containsAny(orig, "true", "false") && containsAny(mutated, "true", "false"):
		return mutant.BooleanLiteral
	case containsAny(orig, "&&", "||", "!") || containsAny(mutated, "&&", "||", "!"):
		return mutant.Logical
	case containsAny(orig, "==", "!=", "<=", ">=", "<", ">") || containsAny(mutated, "==", "!=", "<=", ">=", "<", ">"):
		return mutant.Comparison
	case containsAny(orig, "++", "--") || containsAny(mutated, "++", "--"):
		return mutant.Unary
	case containsAny(orig, "+=", "-=", "*=", "/=") || containsAny(mutated, "+=", "-=", "*=", "/="):
		return mutant.Assignment
	case containsAny(orig, "+", "-", "*", "/", "%") || containsAny(mutated, "+", "-", "*", "/", "%"):
		return mutant.Arithmetic
	case strings.Contains(orig, `"`) || strings.Contains(mutated, `"`):
		return mutant.StringLiteral
	case isNumeric(orig) && isNumeric(mutated):
		return mutant.NumberLiteral
	default:
		return mutant.Unknown
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}

	return true
}
