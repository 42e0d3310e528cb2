// Package config loads storypipe's tool configuration and pipeline
// definitions. Tool settings (paths, logging, agent command) live in
// TOML; the pipeline itself (the ordered agent list) is YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LogLevel specifies the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat specifies the log output format.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// PathsConfig holds path configuration.
type PathsConfig struct {
	RunsDir string `toml:"runs_dir"`
}

// GitConfig holds worktree naming settings.
type GitConfig struct {
	BranchPrefix string `toml:"branch_prefix"`
}

// AgentConfig holds the agent subprocess invocation settings.
type AgentConfig struct {
	// Command is the agent binary to invoke for each pipeline step.
	Command string `toml:"command"`
	// Verb is the fixed leading argument passed before any flags.
	Verb string `toml:"verb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
	File   string    `toml:"file"`
}

// Config is the tool-level configuration for storypipe.
type Config struct {
	Paths   PathsConfig   `toml:"paths"`
	Git     GitConfig     `toml:"git"`
	Agent   AgentConfig   `toml:"agent"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			RunsDir: ".storypipe/runs",
		},
		Git: GitConfig{
			BranchPrefix: "story/",
		},
		Agent: AgentConfig{
			Command: "opencode",
			Verb:    "run",
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// Load loads configuration from a file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from the standard locations in a directory.
// Applies in order: defaults -> ~/.storypipe/config.toml -> .storypipe/config.toml
// Later configs override earlier ones (project-level takes precedence).
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		globalConfig := filepath.Join(home, ".storypipe", "config.toml")
		if data, err := os.ReadFile(globalConfig); err == nil {
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	projectConfig := filepath.Join(dir, ".storypipe", "config.toml")
	if data, err := os.ReadFile(projectConfig); err == nil {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parsing project config: %w", err)
		}
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Paths.RunsDir == "" {
		return fmt.Errorf("runs_dir is required")
	}
	if c.Git.BranchPrefix == "" {
		return fmt.Errorf("branch_prefix is required")
	}
	if c.Agent.Command == "" {
		return fmt.Errorf("agent command is required")
	}
	return nil
}

// RunsDir returns the absolute runs directory path.
func (c *Config) RunsDir(baseDir string) string {
	if filepath.IsAbs(c.Paths.RunsDir) {
		return c.Paths.RunsDir
	}
	return filepath.Join(baseDir, c.Paths.RunsDir)
}

// LogFile returns the absolute log file path, or empty if logging to
// stderr only.
func (c *Config) LogFile(baseDir string) string {
	if c.Logging.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Logging.File) {
		return c.Logging.File
	}
	return filepath.Join(baseDir, c.Logging.File)
}
