package pipeline_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/storypipe-dev/storypipe/internal/pipeline"
)

// shInvoker returns an invoker that runs the prompt as a shell script,
// which makes exit codes and working directories easy to exercise.
func shInvoker() *pipeline.CommandInvoker {
	inv := pipeline.NewCommandInvoker("sh", "-c")
	inv.Stdout = io.Discard
	inv.Stderr = io.Discard
	return inv
}

func TestCommandInvokerExitCodes(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	ctx := context.Background()

	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{"success", "exit 0", 0},
		{"failure", "exit 3", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := shInvoker().Invoke(ctx, t.TempDir(), pipeline.Invocation{
				AgentName: "sh-agent",
				Prompt:    tt.prompt,
			})
			if err != nil {
				t.Fatalf("Invoke returned error: %v", err)
			}
			if code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCommandInvokerRunsInWorkdir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	dir := t.TempDir()

	code, err := shInvoker().Invoke(context.Background(), dir, pipeline.Invocation{
		AgentName: "sh-agent",
		Prompt:    "pwd > marker.txt",
	})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	if _, err := os.Stat(filepath.Join(dir, "marker.txt")); err != nil {
		t.Errorf("agent did not run in workdir: %v", err)
	}
}

func TestCommandInvokerSpawnFailure(t *testing.T) {
	code, err := pipeline.NewCommandInvoker("storypipe-no-such-binary", "run").
		Invoke(context.Background(), t.TempDir(), pipeline.Invocation{
			AgentName: "ghost",
			Prompt:    "hello",
		})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if code != pipeline.SpawnFailureExitCode {
		t.Errorf("exit code = %d, want sentinel %d", code, pipeline.SpawnFailureExitCode)
	}
}
