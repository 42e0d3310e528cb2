// Package types defines the core data model for storypipe runs.
package types

import "time"

// RunStatus represents the lifecycle state of a story run.
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"     // Created but no agent started yet
	RunStatusInProgress RunStatus = "in_progress" // Pipeline is executing agents
	RunStatusCompleted  RunStatus = "completed"   // All agents finished successfully
	RunStatusFailed     RunStatus = "failed"      // An agent failed or could not start
)

// Valid returns true if this is a recognized run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusPending, RunStatusInProgress, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final (completed or failed).
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// RunState is the durable record of one story's pipeline progress.
// The JSON shape is a stable on-disk contract consumed by the status
// command; field names must not change.
type RunState struct {
	StoryID         string    `json:"storyId"`
	Branch          string    `json:"branch"`
	WorktreePath    string    `json:"worktreePath"`
	Status          RunStatus `json:"status"`
	CurrentAgent    *string   `json:"currentAgent"`
	CompletedAgents []string  `json:"completedAgents"`
	StartedAt       time.Time `json:"startedAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Error           *string   `json:"error"`
}

// NewRunState builds a fresh pending record. Pure construction, no I/O.
func NewRunState(storyID, branch, worktreePath string) *RunState {
	now := time.Now()
	return &RunState{
		StoryID:         storyID,
		Branch:          branch,
		WorktreePath:    worktreePath,
		Status:          RunStatusPending,
		CompletedAgents: []string{},
		StartedAt:       now,
		UpdatedAt:       now,
	}
}

// Start transitions the record to in_progress.
func (r *RunState) Start() {
	r.Status = RunStatusInProgress
	r.touch()
}

// BeginAgent records that the named agent is about to execute.
/// This is the crash-diagnostic checkpoint: if the process dies mid-agent,
// CurrentAgent still names the step that was running.
func (r *RunState) BeginAgent(name string) {
	r.CurrentAgent = &name
	r.touch()
}

// CompleteAgent appends the named agent to the completed list.
func (r *RunState) CompleteAgent(name string) {
	r.CompletedAgents = append(r.CompletedAgents, name)
	r.touch()
}

// Complete marks the run as completed and clears the current agent.
func (r *RunState) Complete() {
	r.Status = RunStatusCompleted
	r.CurrentAgent = nil
	r.touch()
}

// Fail marks the run as failed with the given message.
func (r *RunState) Fail(msg string) {
	r.Status = RunStatusFailed
	r.CurrentAgent = nil
	r.Error = &msg
	r.touch()
}

// Progress returns how many agents have completed out of total.
func (r *RunState) Progress(total int) (done, of int) {
	return len(r.CompletedAgents), total
}

func (r *RunState) touch() {
	r.UpdatedAt = time.Now()
}
