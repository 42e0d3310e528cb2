// Package worktree manages per-story git worktrees. Each story gets an
// isolated checkout on its own branch, created as a sibling of the
// repository root and named after the raw story identifier.
package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/storypipe-dev/storypipe/internal/errors"
)

// Manager creates and removes story worktrees. Paths and branch names
// are derived deterministically from the story id, so existence is
// always re-derivable without a side table.
type Manager struct {
	repoRoot     string // Absolute path to the main repository checkout
	branchPrefix string // e.g. "story/"
	runner       Runner
}

// NewManager creates a Manager rooted at the given repository.
func NewManager(repoRoot, branchPrefix string, runner Runner) *Manager {
	if runner == nil {
		runner = NewOSRunner()
	}
	return &Manager{
		repoRoot:     repoRoot,
		branchPrefix: branchPrefix,
		runner:       runner,
	}
}

// BranchName returns the branch for a story id. Pure, no I/O.
func (m *Manager) BranchName(storyID string) string {
	return m.branchPrefix + storyID
}

// Path returns the worktree path for a story id. Pure, no I/O.
func (m *Manager) Path(storyID string) string {
	return filepath.Join(filepath.Dir(m.repoRoot), storyID)
}

// Exists reports whether a worktree for the story exists. Both the
// directory and git's worktree registration are required, so a stray
// leftover directory does not count.
func (m *Manager) Exists(ctx context.Context, storyID string) (bool, error) {
	path := m.Path(storyID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	registered, err := m.registeredPaths(ctx)
	if err != nil {
		return false, err
	}
	return registered[path], nil
}

// Create makes a new worktree on a new branch for the story and returns
// its path. Fails with a collision error if a worktree already exists:
// duplicate invocations for the same story must fail loudly rather than
// silently overwrite.
func (m *Manager) Create(ctx context.Context, storyID string) (string, error) {
	path := m.Path(storyID)
	branch := m.BranchName(storyID)

	if _, err := os.Stat(path); err == nil {
		return "", errors.WorktreeCollision(storyID, path)
	}

	out, err := m.runner.RunInDir(ctx, m.repoRoot, "git", "worktree", "add", "-b", branch, path)
	if err != nil {
		return "", errors.WorktreeGitFailed(storyID, fmt.Errorf("git worktree add: %w: %s", err, strings.TrimSpace(string(out))))
	}
	return path, nil
}

// Remove deletes the story's worktree. Removal is forceful so it
// succeeds even with uncommitted changes. An already-removed worktree is
// a no-op, and branch deletion is best-effort.
func (m *Manager) Remove(ctx context.Context, storyID string, deleteBranch bool) error {
	path := m.Path(storyID)

	exists, err := m.Exists(ctx, storyID)
	if err != nil {
		return err
	}
	if exists {
		out, err := m.runner.RunInDir(ctx, m.repoRoot, "git", "worktree", "remove", "--force", path)
		if err != nil {
			return errors.WorktreeGitFailed(storyID, fmt.Errorf("git worktree remove: %w: %s", err, strings.TrimSpace(string(out))))
		}
	} else if _, statErr := os.Stat(path); statErr == nil {
		// Stray directory with no git registration: remove it directly.
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}

	if deleteBranch {
		// Branch may not exist or may be checked out elsewhere; ignore.
		_, _ = m.runner.RunInDir(ctx, m.repoRoot, "git", "branch", "-D", m.BranchName(storyID))
	}
	return nil
}

// registeredPaths parses `git worktree list --porcelain` into a set of
// worktree paths known to git.
func (m *Manager) registeredPaths(ctx context.Context) (map[string]bool, error) {
	out, err := m.runner.RunInDir(ctx, m.repoRoot, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git worktree list: %w: %s", err, strings.TrimSpace(string(out)))
	}

	paths := make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		if rest, ok := strings.CutPrefix(line, "worktree "); ok {
			paths[strings.TrimSpace(rest)] = true
		}
	}
	return paths, nil
}
