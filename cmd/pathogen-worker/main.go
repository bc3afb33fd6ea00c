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

// Command pathogen-worker is the long-lived child process spawned by
// workerpool.Pool. It announces readiness, then applies and tests one
// mutation per line of JSON read from stdin until asked to shut down.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pathogen-dev/pathogen/internal/ipc"
	"github.com/pathogen-dev/pathogen/internal/workerproc"
)

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "pathogen-worker: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	writer := ipc.NewWriter(os.Stdout)
	reader := ipc.NewReader(os.Stdin)

	if err := writer.WriteMessage(ipc.NewReadyMessage()); err != nil {
		return fmt.Errorf("send ready signal: %w", err)
	}

	for {
		msg, err := reader.ReadUpstream()
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}

		switch {
		case msg.MutationRequest != nil:
			result := workerproc.Handle(ctx, *msg.MutationRequest)
			if err := writer.WriteMessage(ipc.NewTestResultMessage(result)); err != nil {
				return fmt.Errorf("send test result: %w", err)
			}
		case msg.Shutdown:
			return writer.WriteMessage(ipc.NewDownstreamShutdown())
		default:
			if err := writer.WriteMessage(ipc.NewErrorMessage("unrecognised upstream message")); err != nil {
				return fmt.Errorf("send error reply: %w", err)
			}
		}
	}
}
