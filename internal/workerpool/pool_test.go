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

package workerpool_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/pathogen-dev/pathogen/internal/ipc"
	"github.com/pathogen-dev/pathogen/internal/language"
	"github.com/pathogen-dev/pathogen/internal/workerpool"
)

// echoWorkerScript is a minimal stand-in for pathogen-worker: it says Ready,
// then echoes a successful TestResult for every MutationRequest it reads,
// and exits cleanly on Shutdown. It plays the same role as a fake worker
// binary in the Rust test suite this pool's design is grounded on.
const echoWorkerScript = `
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

func main() {
	fmt.Println(` + "`{\"Ready\":null}`" + `)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if _, ok := raw["Shutdown"]; ok {
			return
		}
		if reqRaw, ok := raw["MutationRequest"]; ok {
			var req struct {
				MutationID string ` + "`json:\"mutation_id\"`" + `
			}
			_ = json.Unmarshal(reqRaw, &req)
			resp := map[string]interface{}{
				"TestResult": map[string]interface{}{
					"success":           true,
					"output":            "",
					"execution_time_ms": 1,
					"mutation_id":       req.MutationID,
				},
			}
			b, _ := json.Marshal(resp)
			fmt.Println(string(b))
		}
	}
}
`

func buildEchoWorker(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available to build the fake worker binary")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	if err := os.WriteFile(src, []byte(echoWorkerScript), 0o644); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(dir, "fake-worker")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	cmd := exec.Command("go", "build", "-o", bin, src)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("building fake worker: %s\n%s", err, out)
	}

	return bin
}

func TestPoolExecuteRoundTrip(t *testing.T) {
	bin := buildEchoWorker(t)
	workspace := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := workerpool.New(ctx, bin, workspace, 1)
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer pool.Shutdown(context.Background())

	result, err := pool.Execute(ctx, ipc.MutationRequest{
		FilePath:       filepath.Join(workspace, "a.ts"),
		MutatedContent: "export const x = 2;\n",
		MutationID:     "m1",
		WorkspaceDir:   workspace,
		Language:       language.TypeScript,
	})
	if err != nil {
		t.Fatalf("Execute: %s", err)
	}
	if !result.Success {
		t.Errorf("expected Success = true, got %+v", result)
	}
	if result.MutationID != "m1" {
		t.Errorf("MutationID = %q, want m1", result.MutationID)
	}
}

// slowWorkerScript says Ready, then hangs forever on any MutationRequest,
// standing in for a worker stuck on an infinite-loop mutation.
const slowWorkerScript = `
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

func main() {
	fmt.Println(` + "`{\"Ready\":null}`" + `)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if _, ok := raw["Shutdown"]; ok {
			return
		}
		if _, ok := raw["MutationRequest"]; ok {
			time.Sleep(time.Hour)
		}
	}
}
`

func buildSlowWorker(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not available to build the fake worker binary")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "main.go")
	if err := os.WriteFile(src, []byte(slowWorkerScript), 0o644); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(dir, "slow-worker")
	if runtime.GOOS == "windows" {
		bin += ".exe"
	}

	cmd := exec.Command("go", "build", "-o", bin, src)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("building slow worker: %s\n%s", err, out)
	}

	return bin
}

func TestPoolExecuteTimeoutDoesNotReturnWorkerToPool(t *testing.T) {
	bin := buildSlowWorker(t)
	workspace := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := workerpool.New(ctx, bin, workspace, 1, workerpool.WithRequestTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %s", err)
	}
	defer pool.Shutdown(context.Background())

	result, err := pool.Execute(ctx, ipc.MutationRequest{
		FilePath:       "a.ts",
		MutatedContent: "export const x = 2;\n",
		MutationID:     "m1",
		WorkspaceDir:   workspace,
		Language:       language.TypeScript,
	})
	if err != nil {
		t.Fatalf("Execute: %s", err)
	}
	if result.Success {
		t.Errorf("expected a timed-out request to report Success=false, got %+v", result)
	}
	if !strings.HasPrefix(result.Output, ipc.PrefixTimeout) {
		t.Errorf("Output = %q, want it to start with %q", result.Output, ipc.PrefixTimeout)
	}

	if got := pool.Available(); got != 0 {
		t.Errorf("Available() = %d, want 0: the force-killed worker must not be returned to the pool", got)
	}
}
