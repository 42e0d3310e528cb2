package types

// Outcome is the terminal result of running the pipeline for one story.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // All agents succeeded
	OutcomeFailed    Outcome = "failed"    // An agent or the worktree setup failed
	OutcomeSkipped   Outcome = "skipped"   // An idempotency guard fired
)

// Skip reasons distinguish which guard fired, since remediation differs.
const (
	SkipReasonRunExists      = "run already exists"
	SkipReasonWorktreeExists = "worktree already exists"
)

// Result describes the terminal outcome for one story identifier.
// Results are values, not errors: the orchestrator aggregates them and
// never aborts the loop on a failed item.
type Result struct {
	StoryID     string
	Outcome     Outcome
	SkipReason  string // Set only when Outcome is OutcomeSkipped
	FailedAgent string // Set when an agent exited non-zero
	Err         error  // Set when Outcome is OutcomeFailed
}

// Summary aggregates results across an orchestrator invocation.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int
	Results   []Result
}

// Add records one result in the summary.
func (s *Summary) Add(res Result) {
	s.Results = append(s.Results, res)
	switch res.Outcome {
	case OutcomeCompleted:
		s.Completed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// AllSucceeded reports whether every story completed. Skips count as
// non-success for exit-code purposes even though they are not errors.
func (s *Summary) AllSucceeded() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// Total returns the number of processed stories.
func (s *Summary) Total() int {
	return len(s.Results)
}
