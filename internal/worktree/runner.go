package worktree

import (
	"context"
	"os/exec"
)

// Runner executes git commands. Inject this instead of calling
// exec.Command directly so tests never shell out.
type Runner interface {
	// RunInDir executes a command in a specific directory and returns
	// combined stdout/stderr.
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// OSRunner implements Runner using os/exec.
type OSRunner struct{}

// NewOSRunner creates a new OS-based command runner.
func NewOSRunner() *OSRunner {
	return &OSRunner{}
}

// RunInDir executes a command in a specific directory.
func (r *OSRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
