package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/storypipe-dev/storypipe/internal/config"
	"github.com/storypipe-dev/storypipe/internal/runstore"
	"github.com/storypipe-dev/storypipe/internal/status"
)

var statusPipelineFile string

var statusCmd = &cobra.Command{
	Use:   "status [story-id]",
	Short: "Show pipeline run status",
	Long: `Without arguments, lists all runs, most recently updated first.
With a story id, shows that run's full state including completed agents
and any error.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPipelineFile, "pipeline", config.DefaultPipelineFile, "pipeline definition file")
	rootCmd.AddCommand(statusCmd)
}

// pipelineAgentCount reads the pipeline definition to size the progress
// column. A missing or invalid definition is not an error here: runs
// are still listable, just without a total.
func pipelineAgentCount(dir string) int {
	path := statusPipelineFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	pl, err := config.LoadPipeline(path)
	if err != nil {
		return 0
	}
	return len(pl.Agents)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := runstore.New(cfg.RunsDir(dir))
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}

	totalAgents := pipelineAgentCount(dir)

	if len(args) == 1 {
		if err := validateStoryID(args[0]); err != nil {
			return err
		}
		state, err := store.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Print(status.FormatRunDetail(state, totalAgents))
		return nil
	}

	states, err := store.List()
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	fmt.Print(status.FormatRunList(states, totalAgents))
	return nil
}
