package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storypipe-dev/storypipe/internal/config"
	"github.com/storypipe-dev/storypipe/internal/runstore"
	"github.com/storypipe-dev/storypipe/internal/worktree"
)

var (
	cleanupKeepBranch bool
	cleanupYes        bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <story-id>",
	Short: "Remove a story's worktree, branch, and run record",
	Long: `Remove the resources created by a pipeline run: the worktree (forcefully,
even with uncommitted changes), its branch, and the run record.

This is the only way a terminal run is re-armed: after cleanup,
'storypipe run' will process the story id again from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupKeepBranch, "keep-branch", false, "keep the story branch")
	cleanupCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(cleanupCmd)
}

// worktreeCleanupMessage says what Remove actually did: removal for a
// worktree that existed, a no-op note otherwise.
func worktreeCleanupMessage(hadWorktree bool, path, storyID string) string {
	if hadWorktree {
		return fmt.Sprintf("Worktree removed: %s", path)
	}
	return fmt.Sprintf("No worktree found for %s", storyID)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	storyID := args[0]
	if err := validateStoryID(storyID); err != nil {
		return err
	}
	ctx := context.Background()

	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	if err := checkGitRepo(dir); err != nil {
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
	manager := worktree.NewManager(dir, cfg.Git.BranchPrefix, worktree.NewOSRunner())

	if !cleanupYes {
		fmt.Printf("Remove worktree, branch and run record for %s? [y/N] ", storyID)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	// Report what was actually there; Remove is a no-op for a story
	// that never ran.
	hadWorktree, err := manager.Exists(ctx, storyID)
	if err != nil {
		return fmt.Errorf("checking worktree: %w", err)
	}

	if err := manager.Remove(ctx, storyID, !cleanupKeepBranch); err != nil {
		return fmt.Errorf("removing worktree: %w", err)
	}
	fmt.Println(worktreeCleanupMessage(hadWorktree, manager.Path(storyID), storyID))

	deleted, err := store.Delete(storyID)
	if err != nil {
		return fmt.Errorf("deleting run record: %w", err)
	}
	if deleted {
		fmt.Printf("Run record removed: %s\n", storyID)
	} else {
		fmt.Printf("No run record found for %s\n", storyID)
	}

	return nil
}
