// Package task implements the on-disk task store: creation, lookup,
// mutation, phase advancement, and archival of task records under the
// gantry data directory.
//
// Each active task owns a directory named <MM-DD>-<slug> containing a
// pretty-printed task.json record alongside the generated context
// manifests. Archived tasks are physically relocated under
// archive/<YYYY-MM>/ and never edited in place. Records are validated
// against an embedded JSON Schema; a record that fails validation is
// logged as a warning and treated as absent on read paths.
package task

import "time"

// Status represents the lifecycle state of a task.
type Status string

const (
	// StatusPlanning indicates the task has been created but work has not started.
	StatusPlanning Status = "planning"
	// StatusInProgress indicates a developer or agent is actively working the task.
	StatusInProgress Status = "in_progress"
	// StatusReview indicates the work is finished and awaiting review.
	StatusReview Status = "review"
	// StatusCompleted indicates the task is done and eligible for archival.
	StatusCompleted Status = "completed"
)

// ValidStatuses returns the accepted task statuses in lifecycle order.
func ValidStatuses() []Status {
	return []Status{StatusPlanning, StatusInProgress, StatusReview, StatusCompleted}
}

// IsValid reports whether s is one of the accepted statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPlanning, StatusInProgress, StatusReview, StatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether the status represents finished work.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted
}

// DevType classifies which side of the stack a task touches. The zero
// value means unclassified; context generation then emits only the
// shared base entries.
type DevType string

const (
	// DevTypeBackend marks server-side work.
	DevTypeBackend DevType = "backend"
	// DevTypeFrontend marks client-side work.
	DevTypeFrontend DevType = "frontend"
	// DevTypeFullstack marks work spanning both sides.
	DevTypeFullstack DevType = "fullstack"
	// DevTypeTest marks test-focused work, scoped like backend work.
	DevTypeTest DevType = "test"
)

// ValidDevTypes returns the accepted dev types, excluding the empty
// (unclassified) value.
func ValidDevTypes() []DevType {
	return []DevType{DevTypeBackend, DevTypeFrontend, DevTypeFullstack, DevTypeTest}
}

// IsValid reports whether d is an accepted dev type. Empty is valid and
// means unclassified.
func (d DevType) IsValid() bool {
	switch d {
	case "", DevTypeBackend, DevTypeFrontend, DevTypeFullstack, DevTypeTest:
		return true
	}
	return false
}

// NeedsBackend reports whether manifests for this dev type include the
// backend entries.
func (d DevType) NeedsBackend() bool {
	return d == DevTypeBackend || d == DevTypeTest || d == DevTypeFullstack
}

// NeedsFrontend reports whether manifests for this dev type include the
// frontend entries.
func (d DevType) NeedsFrontend() bool {
	return d == DevTypeFrontend || d == DevTypeFullstack
}

// Priority is a free-form urgency label. Low, medium, and high are the
// conventional values but any string is accepted.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is one task record as persisted in task.json. The record is
// pretty-printed on disk so that developers can read and hand-edit it.
type Task struct {
	// ID is the task directory name, <MM-DD>-<slug>, unique within the
	// active set.
	ID string `json:"id"`

	// Title is the human-readable task title the slug was derived from.
	Title string `json:"title"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// DevType classifies the task for context generation. Empty when
	// unclassified.
	DevType DevType `json:"dev_type,omitempty"`

	// Priority is a free-form urgency label.
	Priority Priority `json:"priority,omitempty"`

	// Creator is who created the task. Defaults to the assignee.
	Creator string `json:"creator,omitempty"`

	// Assignee is who owns the task. Always set.
	Assignee string `json:"assignee"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is set by ArchiveTask when the task is marked completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Branch is the isolation branch the task's work lives on.
	Branch string `json:"branch,omitempty"`

	// BaseBranch is the branch the isolation branch forked from.
	BaseBranch string `json:"base_branch,omitempty"`

	// WorktreePath is the worktree the task's agents run in.
	WorktreePath string `json:"worktree_path,omitempty"`

	// CurrentPhase indexes into NextAction. It only moves forward.
	CurrentPhase int `json:"current_phase"`

	// NextAction is the ordered phase plan, e.g. implement, check, debug.
	NextAction []string `json:"next_action,omitempty"`

	// Commit is the commit hash the finished work landed as.
	Commit string `json:"commit,omitempty"`

	// PRURL links to the pull request for the finished work.
	PRURL string `json:"pr_url,omitempty"`

	// Subtasks lists free-form sub-items of the task.
	Subtasks []string `json:"subtasks,omitempty"`

	// RelatedFiles lists files relevant to the task.
	RelatedFiles []string `json:"related_files,omitempty"`

	// Notes holds free-form notes.
	Notes string `json:"notes,omitempty"`
}

// Phase returns the name of the current phase from the phase plan, or
// "" when the plan is empty or the index is out of range.
func (t *Task) Phase() string {
	if t.CurrentPhase < 0 || t.CurrentPhase >= len(t.NextAction) {
		return ""
	}
	return t.NextAction[t.CurrentPhase]
}

// Slug returns the slug portion of the task's directory name.
func (t *Task) Slug() string {
	return SlugFromDir(t.ID)
}
