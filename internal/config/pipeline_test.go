package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/storypipe-dev/storypipe/internal/errors"
)

func writePipelineFile(t *testing.T, body string, prompts ...string) string {
	t.Helper()
	dir := t.TempDir()

	promptDir := filepath.Join(dir, "prompts")
	if err := os.MkdirAll(promptDir, 0755); err != nil {
		t.Fatalf("creating prompt dir: %v", err)
	}
	for _, name := range prompts {
		if err := os.WriteFile(filepath.Join(promptDir, name+".md"), []byte("prompt"), 0644); err != nil {
			t.Fatalf("writing prompt: %v", err)
		}
	}

	path := filepath.Join(dir, DefaultPipelineFile)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing pipeline file: %v", err)
	}
	return path
}

func TestLoadPipelineValid(t *testing.T) {
	path := writePipelineFile(t, `
settings:
  defaultModel: anthropic/claude-sonnet-4
  defaultAgent: dev
agents:
  - name: build
    promptPath: prompts/build.md
  - name: "  test  "
    promptPath: prompts/test.md
    model: openai/gpt-5
`, "build", "test")

	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline failed: %v", err)
	}

	if len(p.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(p.Agents))
	}
	if p.Agents[1].Name != "test" {
		t.Errorf("agent name not trimmed: %q", p.Agents[1].Name)
	}
	if got := p.AgentNames(); got[0] != "build" || got[1] != "test" {
		t.Errorf("AgentNames order wrong: %v", got)
	}
	if p.Dir != filepath.Dir(path) {
		t.Errorf("Dir = %q, want %q", p.Dir, filepath.Dir(path))
	}
}

func TestLoadPipelineValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		prompts  []string
		wantCode string
	}{
		{
			name:     "no agents",
			body:     "agents: []",
			wantCode: errors.CodeConfigMissingField,
		},
		{
			name: "empty agent name",
			body: `
agents:
  - name: "   "
    promptPath: prompts/build.md
`,
			prompts:  []string{"build"},
			wantCode: errors.CodeConfigMissingField,
		},
		{
			name: "duplicate agent names",
			body: `
agents:
  - name: build
    promptPath: prompts/build.md
  - name: build
    promptPath: prompts/build.md
`,
			prompts:  []string{"build"},
			wantCode: errors.CodeConfigDuplicate,
		},
		{
			name: "missing prompt path",
			body: `
agents:
  - name: build
`,
			wantCode: errors.CodeConfigMissingField,
		},
		{
			name: "prompt file does not exist",
			body: `
agents:
  - name: build
    promptPath: prompts/missing.md
`,
			wantCode: errors.CodeConfigPromptFile,
		},
		{
			name: "bad model format",
			body: `
agents:
  - name: build
    promptPath: prompts/build.md
    model: just-a-model
`,
			prompts:  []string{"build"},
			wantCode: errors.CodeConfigInvalidValue,
		},
		{
			name: "bad default model format",
			body: `
settings:
  defaultModel: nope
agents:
  - name: build
    promptPath: prompts/build.md
`,
			prompts:  []string{"build"},
			wantCode: errors.CodeConfigInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writePipelineFile(t, tt.body, tt.prompts...)
			_, err := LoadPipeline(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("error code = %s, want %s (err: %v)", errors.Code(err), tt.wantCode, err)
			}
		})
	}
}

func TestEffectiveModelAndAgent(t *testing.T) {
	s := Settings{DefaultModel: "anthropic/claude-sonnet-4", DefaultAgent: "dev"}

	plain := AgentDef{Name: "build"}
	if got := plain.EffectiveModel(s); got != "anthropic/claude-sonnet-4" {
		t.Errorf("EffectiveModel = %q", got)
	}
	if got := plain.EffectiveAgent(s); got != "dev" {
		t.Errorf("EffectiveAgent = %q", got)
	}

	override := AgentDef{Name: "review", Model: "openai/gpt-5", Agent: "reviewer"}
	if got := override.EffectiveModel(s); got != "openai/gpt-5" {
		t.Errorf("EffectiveModel override = %q", got)
	}
	if got := override.EffectiveAgent(s); got != "reviewer" {
		t.Errorf("EffectiveAgent override = %q", got)
	}
}
