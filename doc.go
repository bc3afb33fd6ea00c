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

/*
Pathogen measures how well a test suite catches deliberate changes to the
source it tests, for TypeScript and Rust projects.

It does not generate mutants itself: given a directory of pre-generated
mutant files laid out under .mutations/<language>/ next to the project,
Pathogen replaces each original source file with its mutant in turn, runs
the test targeted at that file, and classifies the result as Survived,
BehavioralKill, or CompileError.

Usage

To run a mutation test pass over a project's source directory:

	$ pathogen --source src/cli

To inspect the loaded catalog without running any tests:

	$ pathogen --source src/cli --dry-run

To gate a CI pipeline on a minimum behavioral-kill rate:

	$ pathogen --source src/cli --threshold-kill-rate 85

Pathogen never mutates a developer's working tree: every run first
materializes an isolated scratch copy of the project, symlinking what it
can and deep-copying only the directories it needs to rewrite.

Configuration

Pathogen uses Viper (https://github.com/spf13/viper) for configuration.
Options can be set, in order of precedence:

 - specific command flags
 - environment variables
 - a configuration file

Environment variables use the syntax:

	PATHOGEN_<FLAG NAME>

in which every dash and dot in the option name is replaced with an
underscore.

Example:

	$ PATHOGEN_THRESHOLD_KILL_RATE=85 pathogen --source src/cli

The configuration file must be named .pathogen.yaml and can be placed in
one of the following locations, checked in order (the first file found is
used):

 - /etc/pathogen (not on Windows)
 - $XDG_CONFIG_HOME/pathogen/pathogen
 - $HOME/.pathogen
 - the current folder
*/
package pathogen
