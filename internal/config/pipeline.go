package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/storypipe-dev/storypipe/internal/errors"
)

// DefaultPipelineFile is the pipeline definition storypipe looks for when
// no --pipeline flag is given.
const DefaultPipelineFile = "storypipe.yaml"

// modelPattern matches the provider/model format, e.g. "anthropic/claude-sonnet-4".
var modelPattern = regexp.MustCompile(`^[\w.-]+/[\w.:-]+$`)

// Settings holds pipeline-wide defaults that individual agents may override.
type Settings struct {
	DefaultModel string `yaml:"defaultModel"`
	DefaultAgent string `yaml:"defaultAgent"`
}

// AgentDef describes one step in the pipeline. Insertion order in the
// YAML file is execution order.
type AgentDef struct {
	Name       string `yaml:"name"`
	PromptPath string `yaml:"promptPath"`
	Model      string `yaml:"model"`
	Agent      string `yaml:"agent"`
}

// EffectiveModel resolves the model for this agent against settings.
func (a *AgentDef) EffectiveModel(s Settings) string {
	if a.Model != "" {
		return a.Model
	}
	return s.DefaultModel
}

// EffectiveAgent resolves the agent flag value against settings.
func (a *AgentDef) EffectiveAgent(s Settings) string {
	if a.Agent != "" {
		return a.Agent
	}
	return s.DefaultAgent
}

// Pipeline is the validated, immutable pipeline definition.
type Pipeline struct {
	Settings Settings   `yaml:"settings"`
	Agents   []AgentDef `yaml:"agents"`

	// Dir is the absolute directory containing the definition file;
	// relative prompt paths resolve against it.
	Dir string `yaml:"-"`
}

// LoadPipeline parses and validates a pipeline definition file.
// The returned Pipeline is fully validated: the executor never has to
// re-check it.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline file: %w", err)
	}

	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pipeline file: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving pipeline path: %w", err)
	}
	p.Dir = filepath.Dir(abs)

	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// PromptPath returns the absolute prompt path for an agent.
func (p *Pipeline) PromptPath(a *AgentDef) string {
	if filepath.IsAbs(a.PromptPath) {
		return a.PromptPath
	}
	return filepath.Join(p.Dir, a.PromptPath)
}

// AgentNames returns the configured agent names in execution order.
func (p *Pipeline) AgentNames() []string {
	names := make([]string, len(p.Agents))
	for i := range p.Agents {
		names[i] = p.Agents[i].Name
	}
	return names
}

func (p *Pipeline) validate() error {
	if len(p.Agents) == 0 {
		return errors.ConfigMissingField("agents")
	}

	if p.Settings.DefaultModel != "" && !modelPattern.MatchString(p.Settings.DefaultModel) {
		return errors.ConfigInvalidValue("settings.defaultModel", p.Settings.DefaultModel,
			"expected provider/model format")
	}

	seen := make(map[string]bool, len(p.Agents))
	for i := range p.Agents {
		a := &p.Agents[i]
		a.Name = strings.TrimSpace(a.Name)

		if a.Name == "" {
			return errors.ConfigMissingField(fmt.Sprintf("agents[%d].name", i))
		}
		if seen[a.Name] {
			return errors.ConfigDuplicateAgent(a.Name)
		}
		seen[a.Name] = true

		if a.PromptPath == "" {
			return errors.ConfigMissingField(fmt.Sprintf("agents[%d].promptPath", i))
		}
		if _, err := os.Stat(p.PromptPath(a)); err != nil {
			return errors.ConfigPromptFile(a.Name, a.PromptPath, err)
		}

		if a.Model != "" && !modelPattern.MatchString(a.Model) {
			return errors.ConfigInvalidValue(
				fmt.Sprintf("agents[%d].model", i), a.Model,
				"expected provider/model format")
		}
	}

	return nil
}
