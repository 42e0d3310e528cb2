// Package testutil provides shared fixtures and fakes for storypipe tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/storypipe-dev/storypipe/internal/config"
)

// WritePipeline writes a pipeline definition plus prompt files into dir
// and returns the loaded, validated Pipeline. Each entry in prompts maps
// an agent name to its prompt body.
func WritePipeline(t *testing.T, dir, yamlBody string, prompts map[string]string) *config.Pipeline {
	t.Helper()

	promptDir := filepath.Join(dir, "prompts")
	if err := os.MkdirAll(promptDir, 0755); err != nil {
		t.Fatalf("creating prompt dir: %v", err)
	}
	for name, body := range prompts {
		path := filepath.Join(promptDir, name+".md")
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("writing prompt %s: %v", name, err)
		}
	}

	pipelinePath := filepath.Join(dir, config.DefaultPipelineFile)
	if err := os.WriteFile(pipelinePath, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}

	p, err := config.LoadPipeline(pipelinePath)
	if err != nil {
		t.Fatalf("loading pipeline: %v", err)
	}
	return p
}

// TwoAgentPipeline returns a ready-made build+test pipeline rooted in a
// temp directory.
func TwoAgentPipeline(t *testing.T) *config.Pipeline {
	t.Helper()
	return WritePipeline(t, t.TempDir(), `
settings:
  defaultModel: anthropic/claude-sonnet-4
  defaultAgent: dev
agents:
  - name: build
    promptPath: prompts/build.md
  - name: test
    promptPath: prompts/test.md
`, map[string]string{
		"build": "Implement {{storyId}} on branch {{branch}}.",
		"test":  "Verify {{storyId}} in {{worktreePath}} as {{agentName}}.",
	})
}
