package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storypipe-dev/storypipe/internal/config"
	"github.com/storypipe-dev/storypipe/internal/logging"
	"github.com/storypipe-dev/storypipe/internal/pipeline"
	"github.com/storypipe-dev/storypipe/internal/runstore"
	"github.com/storypipe-dev/storypipe/internal/testutil"
	"github.com/storypipe-dev/storypipe/internal/types"
	"github.com/storypipe-dev/storypipe/internal/worktree"
)

// harness bundles an executor with its fakes and stores.
type harness struct {
	executor *pipeline.Executor
	invoker  *testutil.FakeInvoker
	runner   *testutil.FakeGitRunner
	store    *runstore.Store
	worktree *worktree.Manager
}

func newHarness(t *testing.T, pl *config.Pipeline) *harness {
	t.Helper()

	parent := t.TempDir()
	repoRoot := filepath.Join(parent, "repo")
	require.NoError(t, os.MkdirAll(repoRoot, 0755))

	store, err := runstore.New(filepath.Join(repoRoot, ".storypipe", "runs"))
	require.NoError(t, err)

	runner := testutil.NewFakeGitRunner()
	manager := worktree.NewManager(repoRoot, "story/", runner)
	invoker := testutil.NewFakeInvoker()

	return &harness{
		executor: pipeline.NewExecutor(pl, manager, store, invoker, logging.NewForTest()),
		invoker:  invoker,
		runner:   runner,
		store:    store,
		worktree: manager,
	}
}

func TestRunAllAgentsSucceed(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))

	result := h.executor.Run(context.Background(), "DEV-1")
	assert.Equal(t, types.OutcomeCompleted, result.Outcome)

	state, err := h.store.Load("DEV-1")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusCompleted, state.Status)
	assert.Equal(t, []string{"build", "test"}, state.CompletedAgents)
	assert.Nil(t, state.CurrentAgent)
	assert.Nil(t, state.Error)
	assert.Equal(t, "story/DEV-1", state.Branch)
	assert.Equal(t, h.worktree.Path("DEV-1"), state.WorktreePath)
}

func TestRunSubstitutesPromptVariables(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))

	h.executor.Run(context.Background(), "DEV-2")

	require.Len(t, h.invoker.Records, 2)
	build := h.invoker.Records[0]
	assert.Equal(t, "build", build.Invocation.AgentName)
	assert.Equal(t, "Implement DEV-2 on branch story/DEV-2.", build.Invocation.Prompt)
	assert.Equal(t, h.worktree.Path("DEV-2"), build.Workdir)

	test := h.invoker.Records[1]
	assert.Equal(t, "Verify DEV-2 in "+h.worktree.Path("DEV-2")+" as test.", test.Invocation.Prompt)
}

func TestRunResolvesModelAndAgentDefaults(t *testing.T) {
	pl := testutil.WritePipeline(t, t.TempDir(), `
settings:
  defaultModel: anthropic/claude-sonnet-4
  defaultAgent: dev
agents:
  - name: build
    promptPath: prompts/build.md
  - name: review
    promptPath: prompts/review.md
    model: openai/gpt-5
    agent: reviewer
`, map[string]string{
		"build":  "build it",
		"review": "review it",
	})
	h := newHarness(t, pl)

	h.executor.Run(context.Background(), "DEV-3")

	require.Len(t, h.invoker.Records, 2)
	assert.Equal(t, "anthropic/claude-sonnet-4", h.invoker.Records[0].Invocation.Model)
	assert.Equal(t, "dev", h.invoker.Records[0].Invocation.Agent)
	// Agent-level overrides win over settings.
	assert.Equal(t, "openai/gpt-5", h.invoker.Records[1].Invocation.Model)
	assert.Equal(t, "reviewer", h.invoker.Records[1].Invocation.Agent)
}

func TestRunStopsOnAgentFailure(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))
	h.invoker.ExitCodes["test"] = 1

	result := h.executor.Run(context.Background(), "DEV-4")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, "test", result.FailedAgent)

	state, err := h.store.Load("DEV-4")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, state.Status)
	assert.Equal(t, []string{"build"}, state.CompletedAgents)
	assert.Nil(t, state.CurrentAgent)
	require.NotNil(t, state.Error)
	assert.Contains(t, *state.Error, "test")
	assert.Contains(t, *state.Error, "1")
}

func TestRunFirstAgentFailure(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))
	h.invoker.ExitCodes["build"] = 2

	result := h.executor.Run(context.Background(), "DEV-5")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, "build", result.FailedAgent)

	// Remaining agents do not run.
	assert.Len(t, h.invoker.Records, 1)

	state, err := h.store.Load("DEV-5")
	require.NoError(t, err)
	assert.Empty(t, state.CompletedAgents)
}

func TestRunSpawnFailureBehavesLikeNonZeroExit(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))
	h.invoker.SpawnErr["build"] = os.ErrPermission

	result := h.executor.Run(context.Background(), "DEV-6")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Equal(t, "build", result.FailedAgent)

	state, err := h.store.Load("DEV-6")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusFailed, state.Status)
	require.NotNil(t, state.Error)
	assert.Contains(t, *state.Error, "build")
}

func TestRunInterruptPreservesCheckpoint(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.invoker.CancelDuring["test"] = cancel

	result := h.executor.Run(ctx, "DEV-12")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Empty(t, result.FailedAgent)
	assert.ErrorIs(t, result.Err, context.Canceled)

	// The interrupt must not overwrite the checkpoint: the record still
	// says which agent was running, not that it failed.
	state, err := h.store.Load("DEV-12")
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusInProgress, state.Status)
	require.NotNil(t, state.CurrentAgent)
	assert.Equal(t, "test", *state.CurrentAgent)
	assert.Equal(t, []string{"build"}, state.CompletedAgents)
	assert.Nil(t, state.Error)
}

func TestRunSkipsWhenRunStateExists(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))

	prior := types.NewRunState("DEV-7", "story/DEV-7", "/w/DEV-7")
	prior.Fail("earlier failure")
	require.NoError(t, h.store.Save(prior))

	result := h.executor.Run(context.Background(), "DEV-7")
	assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	assert.Equal(t, types.SkipReasonRunExists, result.SkipReason)

	// Zero mutations: the prior record is untouched and no agent ran.
	assert.Empty(t, h.invoker.Records)
	state, err := h.store.Load("DEV-7")
	require.NoError(t, err)
	assert.Equal(t, prior.UpdatedAt.UnixNano(), state.UpdatedAt.UnixNano())
	require.NotNil(t, state.Error)
	assert.Equal(t, "earlier failure", *state.Error)
}

func TestRunSkipsWhenWorktreeExists(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))

	_, err := h.worktree.Create(context.Background(), "DEV-8")
	require.NoError(t, err)

	result := h.executor.Run(context.Background(), "DEV-8")
	assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	assert.Equal(t, types.SkipReasonWorktreeExists, result.SkipReason)
	assert.Empty(t, h.invoker.Records)
	assert.False(t, h.store.Exists("DEV-8"))
}

func TestRunStateGuardWinsOverWorktreeGuard(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))

	// Both a record and a worktree exist: the record's reason wins,
	// even though the worktree also exists.
	_, err := h.worktree.Create(context.Background(), "DEV-9")
	require.NoError(t, err)
	require.NoError(t, h.store.Save(types.NewRunState("DEV-9", "story/DEV-9", "/w/DEV-9")))

	result := h.executor.Run(context.Background(), "DEV-9")
	assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	assert.Equal(t, types.SkipReasonRunExists, result.SkipReason)
}

func TestRunWorktreeCreationFailureLeavesNoState(t *testing.T) {
	h := newHarness(t, testutil.TwoAgentPipeline(t))
	h.runner.FailOn["worktree add"] = "fatal: could not create work tree"

	result := h.executor.Run(context.Background(), "DEV-10")
	assert.Equal(t, types.OutcomeFailed, result.Outcome)
	assert.Empty(t, result.FailedAgent)
	require.Error(t, result.Err)

	// The failure happened before any state existed.
	assert.False(t, h.store.Exists("DEV-10"))
	assert.Empty(t, h.invoker.Records)
}

func TestRunMissingPromptVariablesAreNonFatal(t *testing.T) {
	pl := testutil.WritePipeline(t, t.TempDir(), `
agents:
  - name: build
    promptPath: prompts/build.md
`, map[string]string{
		"build": "Do {{storyId}} but also {{mysteryVar}}",
	})
	h := newHarness(t, pl)

	result := h.executor.Run(context.Background(), "DEV-11")
	assert.Equal(t, types.OutcomeCompleted, result.Outcome)

	require.Len(t, h.invoker.Records, 1)
	// The unknown placeholder passes through verbatim.
	assert.Equal(t, "Do DEV-11 but also {{mysteryVar}}", h.invoker.Records[0].Invocation.Prompt)
}
