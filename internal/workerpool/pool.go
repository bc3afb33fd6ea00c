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

// Package workerpool manages a set of long-lived pathogen-worker child
// processes, recycling unhealthy ones and bounding how many mutations run
// concurrently.
package workerpool

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pathogen-dev/pathogen/internal/ipc"
)

const (
	maxAge                = 30 * time.Second
	maxExecutions         = 50
	defaultRequestTimeout = 10 * time.Second
	shutdownGrace         = 100 * time.Millisecond
)

// Pool hands out healthy worker processes, spawning replacements as needed.
// The number of requests in flight at any time is bounded by the caller
// (the dispatcher gates Execute calls with an errgroup.Group sized to the
// same pool_size used here), not by Pool itself.
type Pool struct {
	workerBinary   string
	workspaceDir   string
	requestTimeout time.Duration

	mu        sync.Mutex
	available []*WorkerProcess
}

// Option configures a Pool.
type Option func(*Pool)

// WithRequestTimeout overrides the default per-request hard timeout, for
// substituting a short timeout in tests.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Pool) {
		p.requestTimeout = d
	}
}

// New pre-spawns size worker processes rooted at workspaceDir.
func New(ctx context.Context, workerBinary, workspaceDir string, size int, opts ...Option) (*Pool, error) {
	p := &Pool{workerBinary: workerBinary, workspaceDir: workspaceDir, requestTimeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(p)
	}

	for i := 0; i < size; i++ {
		w, err := spawn(ctx, workerBinary, workspaceDir)
		if err != nil {
			p.Shutdown(context.Background())

			return nil, fmt.Errorf("workerpool: pre-spawn worker %d/%d: %w", i+1, size, err)
		}
		p.available = append(p.available, w)
	}

	return p, nil
}

// Execute runs one mutation through a healthy worker, returning it to the
// pool afterward. A worker that was force-killed by the request timeout is
// never returned to the pool — it is left to finish dying on its own,
// rather than racing IsHealthy against w.done closing.
func (p *Pool) Execute(ctx context.Context, req ipc.MutationRequest) (ipc.TestResult, error) {
	w, err := p.acquire(ctx)
	if err != nil {
		return ipc.TestResult{}, err
	}

	result, timedOut, err := w.execute(ctx, req, p.requestTimeout)
	if !timedOut {
		p.release(w)
	}

	return result, err
}

// acquire pops the first healthy worker from the available set, shutting
// down and discarding any unhealthy ones it encounters along the way, and
// spawns a fresh worker if none are left.
func (p *Pool) acquire(ctx context.Context) (*WorkerProcess, error) {
	for {
		p.mu.Lock()
		if len(p.available) == 0 {
			p.mu.Unlock()

			break
		}
		w := p.available[0]
		p.available = p.available[1:]
		p.mu.Unlock()

		if w.IsHealthy() {
			return w, nil
		}
		_ = w.Shutdown(ctx)
	}

	return spawn(ctx, p.workerBinary, p.workspaceDir)
}

func (p *Pool) release(w *WorkerProcess) {
	if w.IsHealthy() {
		p.mu.Lock()
		p.available = append(p.available, w)
		p.mu.Unlock()

		return
	}
	_ = w.Shutdown(context.Background())
}

// Available reports how many idle workers are currently held by the pool.
// Exposed for test assertions on the pool's bookkeeping.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.available)
}

// Shutdown tears down every currently-idle worker in parallel, within a
// brief grace window each. Workers out on loan are not tracked by the pool:
// Shutdown does not reach them, and release afterwards returns a healthy
// one to the idle set as usual.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	workers := p.available
	p.available = nil
	p.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Shutdown(ctx)
		})
	}
	_ = g.Wait()
}

// WorkerProcess wraps one spawned pathogen-worker child and the
// line-delimited JSON pipe connecting it to the parent.
type WorkerProcess struct {
	cmd    *exec.Cmd
	writer *ipc.Writer
	reader *ipc.Reader

	createdAt  time.Time
	executions int
	done       chan struct{}
}

func spawn(ctx context.Context, workerBinary, workspaceDir string) (*WorkerProcess, error) {
	cmd := exec.CommandContext(ctx, workerBinary)
	cmd.Dir = workspaceDir
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("workerpool: worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("workerpool: worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("workerpool: spawn %s: %w", workerBinary, err)
	}

	w := &WorkerProcess{
		cmd:       cmd,
		writer:    ipc.NewWriter(stdin),
		reader:    ipc.NewReader(stdout),
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()
		close(w.done)
	}()

	msg, err := w.reader.ReadDownstream()
	if err != nil {
		_ = w.Shutdown(ctx)

		return nil, fmt.Errorf("workerpool: waiting for worker ready signal: %w", err)
	}
	if !msg.Ready {
		_ = w.Shutdown(ctx)

		return nil, fmt.Errorf("workerpool: expected Ready from worker, got %+v", msg)
	}

	return w, nil
}

// IsHealthy applies the recycling policy: a worker is retired once its
// child has exited, it has run too many mutations, or it has simply been
// alive too long (long-running processes in the targeted runtimes this
// tool drives are a common source of unbounded memory growth).
func (w *WorkerProcess) IsHealthy() bool {
	select {
	case <-w.done:
		return false
	default:
	}

	return time.Since(w.createdAt) < maxAge && w.executions < maxExecutions
}

// execute runs one request/response turn against w. The timedOut return
// value is true only when the request-level timeout fired and w was
// force-killed — the caller must not return such a worker to the pool.
func (w *WorkerProcess) execute(ctx context.Context, req ipc.MutationRequest, timeout time.Duration) (result ipc.TestResult, timedOut bool, err error) {
	if err := w.writer.WriteMessage(ipc.NewMutationRequestMessage(req)); err != nil {
		return ipc.TestResult{}, false, fmt.Errorf("workerpool: send mutation request: %w", err)
	}

	type reply struct {
		msg ipc.DownstreamMessage
		err error
	}
	replyCh := make(chan reply, 1)
	go func() {
		msg, err := w.reader.ReadDownstream()
		replyCh <- reply{msg, err}
	}()

	select {
	case r := <-replyCh:
		if r.err != nil {
			return ipc.TestResult{}, false, fmt.Errorf("workerpool: read worker response: %w", r.err)
		}

		switch {
		case r.msg.TestResult != nil:
			w.executions++

			return *r.msg.TestResult, false, nil
		case r.msg.Error != nil:
			return ipc.TestResult{}, false, fmt.Errorf("workerpool: worker reported an error: %s", *r.msg.Error)
		default:
			return ipc.TestResult{}, false, fmt.Errorf("workerpool: unexpected worker response %+v", r.msg)
		}
	case <-time.After(timeout):
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}

		return ipc.TestResult{
			Success:         false,
			Output:          fmt.Sprintf("%sworker exceeded %s (likely an infinite-loop mutation)", ipc.PrefixTimeout, timeout),
			ExecutionTimeMs: timeout.Milliseconds(),
			MutationID:      req.MutationID,
		}, true, nil
	case <-ctx.Done():
		return ipc.TestResult{}, false, ctx.Err()
	}
}

// Shutdown asks the worker to exit gracefully, force-killing it if it
// hasn't within the grace window.
func (w *WorkerProcess) Shutdown(_ context.Context) error {
	_ = w.writer.WriteMessage(ipc.NewUpstreamShutdown())

	select {
	case <-w.done:
		return nil
	case <-time.After(shutdownGrace):
		if w.cmd.Process != nil {
			_ = w.cmd.Process.Kill()
		}
		<-w.done

		return nil
	}
}

// FindWorkerBinary locates the pathogen-worker executable: first alongside
// the current process, then in the conventional build output directories
// used during development, finally falling back to a bare name lookup on
// PATH.
func FindWorkerBinary() string {
	const name = "pathogen-worker"

	exe, err := os.Executable()
	if err != nil {
		return name
	}
	exeDir := filepath.Dir(exe)

	candidates := []string{
		filepath.Join(exeDir, name),
		filepath.Join(exeDir, "..", "target", "release", name),
		filepath.Join(exeDir, "..", "target", "debug", name),
		filepath.Join(exeDir, "..", "bin", name),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return name
}
