// Package errors provides structured error types for storypipe.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error codes for storypipe operations.
const (
	// Config errors
	CodeConfigMissingField = "CONFIG_001" // Missing required field
	CodeConfigInvalidValue = "CONFIG_002" // Invalid value
	CodeConfigDuplicate    = "CONFIG_003" // Duplicate agent name
	CodeConfigPromptFile   = "CONFIG_004" // Prompt file unreadable

	// Worktree errors
	CodeWorktreeCollision = "WORKTREE_001" // Worktree already exists for story
	CodeWorktreeGitFailed = "WORKTREE_002" // Underlying git command failed

	// Run state errors
	CodeStateNotFound = "STATE_001" // No record for story
	CodeStateCorrupt  = "STATE_002" // Record exists but cannot be parsed
	CodeStateIO       = "STATE_003" // Read/write failure

	// Agent errors
	CodeAgentFailed = "AGENT_001" // Agent subprocess exited non-zero
)

// PipeError is the structured error type for storypipe operations.
type PipeError struct {
	Code    string         `json:"code"`              // Error code (e.g., "STATE_002")
	Message string         `json:"message"`           // Human-readable message
	Details map[string]any `json:"details,omitempty"` // Context (story_id, agent, etc.)
	Cause   error          `json:"-"`                 // Wrapped error (not serialized)
}

// Error implements the error interface.
func (e *PipeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *PipeError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error.
func (e *PipeError) WithDetail(key string, value any) *PipeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error.
func (e *PipeError) WithCause(err error) *PipeError {
	e.Cause = err
	return e
}

// MarshalJSON implements json.Marshaler with cause error message.
func (e *PipeError) MarshalJSON() ([]byte, error) {
	type alias PipeError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// New creates a new PipeError.
func New(code, message string) *PipeError {
	return &PipeError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new PipeError with formatted message.
func Newf(code, format string, args ...any) *PipeError {
	return &PipeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a PipeError.
func Wrap(code, message string, err error) *PipeError {
	return &PipeError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted PipeError.
func Wrapf(code string, err error, format string, args ...any) *PipeError {
	return &PipeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// --- Config Errors ---

// ConfigMissingField creates an error for a missing config field.
func ConfigMissingField(field string) *PipeError {
	return Newf(CodeConfigMissingField, "missing required config field: %s", field).
		WithDetail("field", field)
}

// ConfigInvalidValue creates an error for an invalid config value.
func ConfigInvalidValue(field string, value any, reason string) *PipeError {
	return Newf(CodeConfigInvalidValue, "invalid config value for %s: %s", field, reason).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// ConfigDuplicateAgent creates an error for a repeated agent name.
func ConfigDuplicateAgent(name string) *PipeError {
	return Newf(CodeConfigDuplicate, "duplicate agent name: %s", name).
		WithDetail("agent", name)
}

// ConfigPromptFile creates an error for an unreadable prompt file.
func ConfigPromptFile(agent, path string, err error) *PipeError {
	return Wrapf(CodeConfigPromptFile, err, "agent %s: prompt file not readable: %s", agent, path).
		WithDetail("agent", agent).
		WithDetail("path", path)
}

// --- Worktree Errors ---

// WorktreeCollision creates an error for an already-existing worktree.
func WorktreeCollision(storyID, path string) *PipeError {
	return Newf(CodeWorktreeCollision, "worktree already exists for %s at %s", storyID, path).
		WithDetail("story_id", storyID).
		WithDetail("path", path)
}

// WorktreeGitFailed creates an error for a failed git command.
func WorktreeGitFailed(storyID string, err error) *PipeError {
	return Wrap(CodeWorktreeGitFailed, "git worktree operation failed", err).
		WithDetail("story_id", storyID)
}

// --- Run State Errors ---

// StateNotFound creates an error for a missing run record.
func StateNotFound(storyID string) *PipeError {
	return Newf(CodeStateNotFound, "no run state for story: %s", storyID).
		WithDetail("story_id", storyID)
}

// StateCorrupt creates an error for an unparseable run record.
func StateCorrupt(storyID string, err error) *PipeError {
	return Wrapf(CodeStateCorrupt, err, "run state for story %s is corrupt", storyID).
		WithDetail("story_id", storyID)
}

// StateIO creates an error for a state read/write failure.
func StateIO(storyID string, err error) *PipeError {
	return Wrap(CodeStateIO, "run state I/O failure", err).
		WithDetail("story_id", storyID)
}

// --- Agent Errors ---

// AgentFailed creates an error for an agent exiting non-zero.
func AgentFailed(agent string, exitCode int) *PipeError {
	return Newf(CodeAgentFailed, "agent %s failed with exit code %d", agent, exitCode).
		WithDetail("agent", agent).
		WithDetail("exit_code", exitCode)
}

// HasCode checks if an error is a PipeError with the given code.
// It handles wrapped errors by unwrapping to find a PipeError.
func HasCode(err error, code string) bool {
	var perr *PipeError
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}

// Code returns the error code if err is a PipeError, empty string otherwise.
// It handles wrapped errors by unwrapping to find a PipeError.
func Code(err error) string {
	var perr *PipeError
	if errors.As(err, &perr) {
		return perr.Code
	}
	return ""
}
