// Package status renders run state and orchestrator summaries for the
// terminal. It consumes only the persisted JSON contract.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/storypipe-dev/storypipe/internal/types"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// colorStatus renders a run status with its conventional color.
func colorStatus(s types.RunStatus) string {
	switch s {
	case types.RunStatusCompleted:
		return green(string(s))
	case types.RunStatusFailed:
		return red(string(s))
	case types.RunStatusInProgress:
		return yellow(string(s))
	default:
		return string(s)
	}
}

// formatProgress renders agent progress as "done/total", or a bare
// count when the pipeline definition (and so the total) is unknown.
func formatProgress(s *types.RunState, totalAgents int) string {
	done, of := s.Progress(totalAgents)
	if of == 0 {
		return fmt.Sprintf("%d", done)
	}
	return fmt.Sprintf("%d/%d", done, of)
}

// FormatRunList renders a table of runs, most recently updated first.
// totalAgents is the number of agents in the pipeline definition; pass
// zero when no definition is available.
func FormatRunList(states []*types.RunState, totalAgents int) string {
	if len(states) == 0 {
		return "No runs found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-12s %-12s %-10s %s\n",
		"STORY", "STATUS", "AGENT", "DONE", "UPDATED")
	for _, s := range states {
		agent := "-"
		if s.CurrentAgent != nil {
			agent = *s.CurrentAgent
		}
		fmt.Fprintf(&b, "%-12s %-12s %-12s %-10s %s\n",
			s.StoryID,
			colorStatus(s.Status),
			agent,
			formatProgress(s, totalAgents),
			s.UpdatedAt.Format(time.RFC3339),
		)
	}
	return b.String()
}

// FormatRunDetail renders one run with full details.
func FormatRunDetail(s *types.RunState, totalAgents int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", bold("Story:"), s.StoryID)
	fmt.Fprintf(&b, "%s %s\n", bold("Status:"), colorStatus(s.Status))
	fmt.Fprintf(&b, "%s %s\n", bold("Progress:"), formatProgress(s, totalAgents))
	fmt.Fprintf(&b, "%s %s\n", bold("Branch:"), s.Branch)
	fmt.Fprintf(&b, "%s %s\n", bold("Worktree:"), s.WorktreePath)
	fmt.Fprintf(&b, "%s %s\n", bold("Started:"), s.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "%s %s\n", bold("Updated:"), s.UpdatedAt.Format(time.RFC3339))

	if s.CurrentAgent != nil {
		fmt.Fprintf(&b, "%s %s\n", bold("Running:"), cyan(*s.CurrentAgent))
	}

	if len(s.CompletedAgents) > 0 {
		fmt.Fprintf(&b, "%s\n", bold("Completed agents:"))
		for _, name := range s.CompletedAgents {
			fmt.Fprintf(&b, "  %s %s\n", green("✓"), name)
		}
	}

	if s.Error != nil {
		fmt.Fprintf(&b, "%s %s\n", bold("Error:"), red(*s.Error))
	}

	return b.String()
}

// FormatSummary renders the aggregate outcome of an orchestrator run.
func FormatSummary(summary *types.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", bold("Summary"))
	for _, res := range summary.Results {
		switch res.Outcome {
		case types.OutcomeCompleted:
			fmt.Fprintf(&b, "  %s %s\n", green("✓"), res.StoryID)
		case types.OutcomeSkipped:
			fmt.Fprintf(&b, "  %s %s (%s)\n", yellow("-"), res.StoryID, res.SkipReason)
		case types.OutcomeFailed:
			detail := ""
			if res.FailedAgent != "" {
				detail = fmt.Sprintf(" (agent %s)", res.FailedAgent)
			}
			fmt.Fprintf(&b, "  %s %s%s\n", red("✗"), res.StoryID, detail)
		}
	}
	fmt.Fprintf(&b, "\n%d completed, %d failed, %d skipped\n",
		summary.Completed, summary.Failed, summary.Skipped)
	return b.String()
}
