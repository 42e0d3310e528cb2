package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/storypipe-dev/storypipe/internal/pipeline"
)

// FakeGitRunner records git invocations and replays canned responses.
// It also mimics the filesystem side effects of `git worktree add` and
// `git worktree remove` so Manager.Exists behaves realistically.
type FakeGitRunner struct {
	mu sync.Mutex

	// Calls records every command line, space-joined.
	Calls []string

	// FailOn maps a command-line substring to an error message. The
	// first matching entry fails the call.
	FailOn map[string]string

	registered map[string]bool
}

// NewFakeGitRunner creates an empty fake runner.
func NewFakeGitRunner() *FakeGitRunner {
	return &FakeGitRunner{
		FailOn:     make(map[string]string),
		registered: make(map[string]bool),
	}
}

// RunInDir implements worktree.Runner.
func (f *FakeGitRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := name + " " + strings.Join(args, " ")
	f.Calls = append(f.Calls, line)

	for substr, msg := range f.FailOn {
		if strings.Contains(line, substr) {
			return []byte(msg), fmt.Errorf("exit status 128")
		}
	}

	switch {
	case strings.HasPrefix(line, "git worktree add"):
		path := args[len(args)-1]
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, err
		}
		f.registered[path] = true
		return nil, nil

	case strings.HasPrefix(line, "git worktree remove"):
		path := args[len(args)-1]
		delete(f.registered, path)
		return nil, os.RemoveAll(path)

	case strings.HasPrefix(line, "git worktree list"):
		var b strings.Builder
		for path := range f.registered {
			fmt.Fprintf(&b, "worktree %s\nHEAD 0000000000000000000000000000000000000000\n\n", path)
		}
		return []byte(b.String()), nil
	}

	return nil, nil
}

// InvokeRecord captures one call to FakeInvoker.Invoke.
type InvokeRecord struct {
	Workdir    string
	Invocation pipeline.Invocation
}

// FakeInvoker replays scripted exit codes per agent name. Agents not in
// ExitCodes succeed.
type FakeInvoker struct {
	mu sync.Mutex

	ExitCodes map[string]int
	SpawnErr  map[string]error
	Records   []InvokeRecord

	// CancelDuring cancels the run while the named agent is executing,
	// the way an operator interrupt lands mid-subprocess.
	CancelDuring map[string]context.CancelFunc
}

// NewFakeInvoker creates a fake invoker where every agent succeeds.
func NewFakeInvoker() *FakeInvoker {
	return &FakeInvoker{
		ExitCodes:    make(map[string]int),
		SpawnErr:     make(map[string]error),
		CancelDuring: make(map[string]context.CancelFunc),
	}
}

// Invoke implements pipeline.Invoker.
func (f *FakeInvoker) Invoke(ctx context.Context, workdir string, inv pipeline.Invocation) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Records = append(f.Records, InvokeRecord{Workdir: workdir, Invocation: inv})

	if cancel, ok := f.CancelDuring[inv.AgentName]; ok {
		cancel()
		return pipeline.SpawnFailureExitCode, ctx.Err()
	}
	if err, ok := f.SpawnErr[inv.AgentName]; ok {
		return pipeline.SpawnFailureExitCode, err
	}
	return f.ExitCodes[inv.AgentName], nil
}
