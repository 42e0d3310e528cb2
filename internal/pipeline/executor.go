// Package pipeline contains the execution core: the per-story state
// machine and the multi-story orchestrator loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/storypipe-dev/storypipe/internal/config"
	"github.com/storypipe-dev/storypipe/internal/errors"
	"github.com/storypipe-dev/storypipe/internal/logging"
	"github.com/storypipe-dev/storypipe/internal/runstore"
	"github.com/storypipe-dev/storypipe/internal/template"
	"github.com/storypipe-dev/storypipe/internal/types"
	"github.com/storypipe-dev/storypipe/internal/worktree"
)

// Executor runs the pipeline for a single story. It owns the lifecycle
// state machine: idempotency guards, worktree acquisition, the
// sequential agent loop with persisted checkpoints, and the terminal
// state write.
type Executor struct {
	pipeline  *config.Pipeline
	worktrees *worktree.Manager
	store     *runstore.Store
	invoker   Invoker
	logger    *slog.Logger
}

// NewExecutor wires an executor from its collaborators.
func NewExecutor(p *config.Pipeline, wt *worktree.Manager, store *runstore.Store, invoker Invoker, logger *slog.Logger) *Executor {
	return &Executor{
		pipeline:  p,
		worktrees: wt,
		store:     store,
		invoker:   invoker,
		logger:    logger,
	}
}

// Run executes the pipeline for one story id and returns its terminal
// result. Results are values: a failed story never surfaces as an error
// to the orchestrator loop.
func (e *Executor) Run(ctx context.Context, storyID string) types.Result {
	log := logging.WithStory(e.logger, storyID)

	// Guard A: an existing run record always wins, even if the worktree
	// was manually removed. No mutation occurs on skip.
	if e.store.Exists(storyID) {
		log.Info("skipping story", "reason", types.SkipReasonRunExists)
		return types.Result{StoryID: storyID, Outcome: types.OutcomeSkipped, SkipReason: types.SkipReasonRunExists}
	}

	// Guard B: a leftover worktree without a record.
	wtExists, err := e.worktrees.Exists(ctx, storyID)
	if err != nil {
		return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
	}
	if wtExists {
		log.Info("skipping story", "reason", types.SkipReasonWorktreeExists)
		return types.Result{StoryID: storyID, Outcome: types.OutcomeSkipped, SkipReason: types.SkipReasonWorktreeExists}
	}

	// Acquire the worktree. Failure here leaves no trace in the state
	// store: no record has been created yet.
	path, err := e.worktrees.Create(ctx, storyID)
	if err != nil {
		log.Error("worktree creation failed", "error", err)
		return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
	}

	branch := e.worktrees.BranchName(storyID)
	state := types.NewRunState(storyID, branch, path)
	state.Start()
	if err := e.store.Save(state); err != nil {
		return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
	}

	log.Info("pipeline started", "branch", branch, "worktree", path, "agents", e.pipeline.AgentNames())

	for i := range e.pipeline.Agents {
		agent := &e.pipeline.Agents[i]

		// Checkpoint before execution: a crash mid-agent leaves
		// CurrentAgent pointing at the step that was running.
		state.BeginAgent(agent.Name)
		if err := e.store.Save(state); err != nil {
			return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
		}

		exitCode, err := e.runAgent(ctx, agent, state)
		if ctx.Err() != nil {
			// Operator interrupt, not an agent failure: leave the
			// BeginAgent checkpoint on disk so a status inspection
			// shows exactly which step was cut short.
			log.Warn("interrupted during agent", "agent", agent.Name)
			return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: ctx.Err()}
		}
		if exitCode != 0 {
			msg := errors.AgentFailed(agent.Name, exitCode).Message
			if err != nil {
				msg = fmt.Sprintf("%s: %v", msg, err)
			}
			state.Fail(msg)
			if saveErr := e.store.Save(state); saveErr != nil {
				log.Error("persisting failed state", "error", saveErr)
			}
			log.Error("agent failed", "agent", agent.Name, "exit_code", exitCode)
			return types.Result{
				StoryID:     storyID,
				Outcome:     types.OutcomeFailed,
				FailedAgent: agent.Name,
				Err:         errors.AgentFailed(agent.Name, exitCode).WithCause(err),
			}
		}

		state.CompleteAgent(agent.Name)
		if err := e.store.Save(state); err != nil {
			return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
		}
		log.Info("agent completed", "agent", agent.Name)
	}

	state.Complete()
	if err := e.store.Save(state); err != nil {
		return types.Result{StoryID: storyID, Outcome: types.OutcomeFailed, Err: err}
	}
	log.Info("pipeline completed")
	return types.Result{StoryID: storyID, Outcome: types.OutcomeCompleted}
}

// runAgent reads the agent's prompt, substitutes template variables and
// invokes the subprocess in the story's worktree. Missing placeholders
// are a warning, never an error.
func (e *Executor) runAgent(ctx context.Context, agent *config.AgentDef, state *types.RunState) (int, error) {
	raw, err := os.ReadFile(e.pipeline.PromptPath(agent))
	if err != nil {
		return SpawnFailureExitCode, fmt.Errorf("reading prompt for agent %s: %w", agent.Name, err)
	}

	prompt, missing := template.Substitute(string(raw), template.Vars{
		StoryID:      state.StoryID,
		Branch:       state.Branch,
		WorktreePath: state.WorktreePath,
		AgentName:    agent.Name,
	})
	if len(missing) > 0 {
		logging.WithAgent(e.logger, agent.Name).Warn("unresolved prompt variables", "variables", missing)
	}

	return e.invoker.Invoke(ctx, state.WorktreePath, Invocation{
		AgentName: agent.Name,
		Model:     agent.EffectiveModel(e.pipeline.Settings),
		Agent:     agent.EffectiveAgent(e.pipeline.Settings),
		Prompt:    prompt,
	})
}
