package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose bool
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "storypipe",
	Short: "Sequential multi-agent story pipeline over git worktrees",
	Long: `storypipe drives a configured sequence of coding agents through a story:
it creates an isolated git worktree per story id, runs each agent in order
with a templated prompt, and persists run progress so repeated invocations
are idempotent.

Define the agent sequence in storypipe.yaml and run:

  storypipe run DEV-18 DEV-19`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "repository root (default: current directory)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("storypipe {{.Version}}\n")
}

// getWorkDir returns the effective repository root as an absolute path.
func getWorkDir() (string, error) {
	dir := workDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
	}
	return filepath.Abs(dir)
}

// validateStoryID rejects ids that cannot name a branch, a worktree
// directory and a run record file. Path separators are refused outright:
// ids become filenames under the runs directory.
func validateStoryID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("story id must not be empty")
	}
	if strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("story id must not contain path separators: %q", id)
	}
	return nil
}

// checkGitRepo ensures the working directory is a git checkout, since
// worktrees are created as siblings of it.
func checkGitRepo(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return fmt.Errorf("not a git repository: %s", dir)
	}
	return nil
}
