package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/storypipe-dev/storypipe/internal/config"
	"github.com/storypipe-dev/storypipe/internal/logging"
	"github.com/storypipe-dev/storypipe/internal/pipeline"
	"github.com/storypipe-dev/storypipe/internal/runstore"
	"github.com/storypipe-dev/storypipe/internal/status"
	"github.com/storypipe-dev/storypipe/internal/worktree"
)

var runPipelineFile string

var runCmd = &cobra.Command{
	Use:   "run <story-id>...",
	Short: "Run the agent pipeline for one or more stories",
	Long: `Run the configured agent sequence for each story id, in order.

Each story gets its own git worktree on a fresh branch. Progress is
persisted per story, so re-running an id that already has a run record
(or a leftover worktree) skips it instead of starting over.

Exit code is 0 only if every story completes; a failed or skipped story
exits 1.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runPipelineFile, "pipeline", config.DefaultPipelineFile, "pipeline definition file")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	if err := checkGitRepo(dir); err != nil {
		return err
	}

	// Validate story ids before anything touches disk
	for _, id := range args {
		if err := validateStoryID(id); err != nil {
			return err
		}
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	pipelinePath := runPipelineFile
	if !filepath.IsAbs(pipelinePath) {
		pipelinePath = filepath.Join(dir, pipelinePath)
	}
	pl, err := config.LoadPipeline(pipelinePath)
	if err != nil {
		return fmt.Errorf("loading pipeline: %w", err)
	}

	if verbose {
		cfg.Logging.Level = config.LogLevelDebug
	}
	logger, closer, err := logging.NewFromConfig(cfg, dir)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	store, err := runstore.New(cfg.RunsDir(dir))
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}

	manager := worktree.NewManager(dir, cfg.Git.BranchPrefix, worktree.NewOSRunner())
	invoker := pipeline.NewCommandInvoker(cfg.Agent.Command, cfg.Agent.Verb)
	executor := pipeline.NewExecutor(pl, manager, store, invoker, logger)
	orch := pipeline.NewOrchestrator(executor, logger)

	// SIGINT/SIGTERM cancel the in-flight agent; the last persisted
	// checkpoint shows exactly which step was interrupted.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nReceived shutdown signal, stopping...")
		cancel()
	}()

	summary := orch.Process(ctx, args)
	fmt.Print(status.FormatSummary(summary))

	// Returning the error (instead of exiting here) lets the deferred
	// log file close run; main turns it into exit code 1.
	if !summary.AllSucceeded() {
		return fmt.Errorf("%d of %d stories did not complete", summary.Failed+summary.Skipped, summary.Total())
	}
	return nil
}
