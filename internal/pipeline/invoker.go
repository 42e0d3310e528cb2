package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// SpawnFailureExitCode is the sentinel exit code used when the agent
// subprocess cannot even be started (binary missing, permission denied).
// Spawn failure is not a distinct outcome from a non-zero exit.
const SpawnFailureExitCode = -1

// Invocation describes one agent subprocess call.
type Invocation struct {
	AgentName string
	Model     string // Omitted from the command line when empty
	Agent     string // Omitted from the command line when empty
	Prompt    string // Substituted prompt text, final positional argument
}

// Invoker runs agent subprocesses in a story's worktree.
type Invoker interface {
	// Invoke runs the agent and returns its exit code. A process that
	// could not be spawned returns SpawnFailureExitCode and the spawn
	// error; the executor treats both identically.
	Invoke(ctx context.Context, workdir string, inv Invocation) (int, error)
}

// CommandInvoker invokes a configured agent binary with a fixed leading
// verb, optional --model/--agent flags, and the prompt as the final
// positional argument. Stdout and stderr are streamed to the operator
// rather than captured.
type CommandInvoker struct {
	Command string
	Verb    string

	// Stdout/Stderr default to the process's own streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewCommandInvoker creates an invoker for the given agent command.
func NewCommandInvoker(command, verb string) *CommandInvoker {
	return &CommandInvoker{Command: command, Verb: verb}
}

// Invoke runs the agent subprocess and waits for it to exit. On context
// cancellation the process group gets SIGTERM, then SIGKILL after a
// grace period.
func (c *CommandInvoker) Invoke(ctx context.Context, workdir string, inv Invocation) (int, error) {
	args := []string{c.Verb}
	if inv.Model != "" {
		args = append(args, "--model", inv.Model)
	}
	if inv.Agent != "" {
		args = append(args, "--agent", inv.Agent)
	}
	args = append(args, inv.Prompt)

	// Not CommandContext: cancellation is handled manually so the
	// process gets SIGTERM before SIGKILL.
	cmd := exec.Command(c.Command, args...)
	cmd.Dir = workdir
	cmd.Stdout = c.stdout()
	cmd.Stderr = c.stderr()

	// Process group so the whole tree can be killed
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	if err := cmd.Start(); err != nil {
		return SpawnFailureExitCode, fmt.Errorf("starting agent %s: %w", inv.AgentName, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			<-done
		}
		return SpawnFailureExitCode, ctx.Err()

	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return exitErr.ExitCode(), nil
			}
			return SpawnFailureExitCode, err
		}
		return 0, nil
	}
}

func (c *CommandInvoker) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *CommandInvoker) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}
