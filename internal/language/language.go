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

// Package language describes the source languages Pathogen knows how to
// mutate and test.
package language

import (
	"encoding/json"
	"fmt"
)

// Language identifies the source language of a mutated file.
type Language int

// The currently supported Language values.
const (
	TypeScript Language = iota
	Rust
)

func (l Language) String() string {
	switch l {
	case TypeScript:
		return "typescript"
	case Rust:
		return "rust"
	default:
		panic("this should not happen")
	}
}

// FromExtension maps a bare file extension (without the leading dot) to a
// Language. The second return value is false if the extension is not
// recognised.
func FromExtension(ext string) (Language, bool) {
	switch ext {
	case "ts":
		return TypeScript, true
	case "rs":
		return Rust, true
	default:
		return 0, false
	}
}

// Extension returns the bare file extension (without the leading dot)
// associated with the Language.
func (l Language) Extension() string {
	switch l {
	case TypeScript:
		return "ts"
	case Rust:
		return "rs"
	default:
		panic("this should not happen")
	}
}

// TestRunnerCommand returns the executable name of the test runner for the
// Language.
func (l Language) TestRunnerCommand() string {
	switch l {
	case TypeScript:
		return "bun"
	case Rust:
		return "cargo"
	default:
		panic("this should not happen")
	}
}

// TestRunnerArgs returns the base arguments passed to the test runner before
// any targeted-test-selection arguments are appended.
func (l Language) TestRunnerArgs() []string {
	switch l {
	case TypeScript, Rust:
		return []string{"test"}
	default:
		panic("this should not happen")
	}
}

// Dir returns the name of the catalog subdirectory for the Language, as used
// under <cwd>/.mutations/<language>/.
func (l Language) Dir() string {
	return l.String()
}

// MarshalJSON renders the Language using its String form, matching the
// tagging convention used on the wire by the worker protocol.
func (l Language) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON parses a Language from its String form.
func (l *Language) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "typescript":
		*l = TypeScript
	case "rust":
		*l = Rust
	default:
		return fmt.Errorf("unknown language %q", s)
	}

	return nil
}
