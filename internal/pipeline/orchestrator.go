package pipeline

import (
	"context"
	"log/slog"

	"github.com/storypipe-dev/storypipe/internal/types"
)

// Orchestrator processes a list of story ids sequentially. One story's
// failure never aborts the loop over the rest; all outcomes land in the
// aggregate summary. Processing order is exactly the caller's order.
//
// There is deliberately no parallelism here: agents build on each
// other's filesystem mutations within a worktree and must not race.
type Orchestrator struct {
	executor *Executor
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator around an executor.
func NewOrchestrator(executor *Executor, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{executor: executor, logger: logger}
}

// Process runs the pipeline for each story id in order and returns the
// aggregate summary. The working root is threaded through the executor's
// collaborators; nothing mutates the process working directory, so one
// story's workspace cannot leak into the next.
func (o *Orchestrator) Process(ctx context.Context, storyIDs []string) *types.Summary {
	summary := &types.Summary{}

	for _, id := range storyIDs {
		result := o.executor.Run(ctx, id)
		summary.Add(result)

		switch result.Outcome {
		case types.OutcomeCompleted:
			o.logger.Info("story completed", "story_id", id)
		case types.OutcomeSkipped:
			o.logger.Info("story skipped", "story_id", id, "reason", result.SkipReason)
		case types.OutcomeFailed:
			o.logger.Error("story failed", "story_id", id, "agent", result.FailedAgent, "error", result.Err)
		}

		// Shutdown: stop dispatching. Stories not reached have no
		// persisted state and rerun cleanly next time.
		if ctx.Err() != nil {
			o.logger.Warn("shutdown requested, stopping", "remaining", len(storyIDs)-summary.Total())
			break
		}
	}

	return summary
}
