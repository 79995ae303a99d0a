// Package event defines event types for decoupling components in Gantry.
// These events let the task store, worktree manager and agent registry
// notify the CLI and each other without direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.created", "agent.finished")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskCreatedEvent is emitted when a new task directory is written.
type TaskCreatedEvent struct {
	baseEvent
	TaskDir  string // Task directory name, e.g. "08-21-fix-login-bug"
	Title    string // Human-readable task title
	Assignee string // Developer the task is assigned to
	DevType  string // Developer type: backend, frontend, fullstack, test
}

// NewTaskCreatedEvent creates a TaskCreatedEvent.
func NewTaskCreatedEvent(taskDir, title, assignee, devType string) TaskCreatedEvent {
	return TaskCreatedEvent{
		baseEvent: newBaseEvent("task.created"),
		TaskDir:   taskDir,
		Title:     title,
		Assignee:  assignee,
		DevType:   devType,
	}
}

// PhaseAdvancedEvent is emitted when a task moves to a new phase.
type PhaseAdvancedEvent struct {
	baseEvent
	TaskDir       string   // Task directory name
	PreviousPhase int      // Phase before the advance
	CurrentPhase  int      // Phase after the advance
	NextAction    []string // Actions queued for the new phase
}

// NewPhaseAdvancedEvent creates a PhaseAdvancedEvent.
func NewPhaseAdvancedEvent(taskDir string, previousPhase, currentPhase int, nextAction []string) PhaseAdvancedEvent {
	return PhaseAdvancedEvent{
		baseEvent:     newBaseEvent("task.phase_advanced"),
		TaskDir:       taskDir,
		PreviousPhase: previousPhase,
		CurrentPhase:  currentPhase,
		NextAction:    nextAction,
	}
}

// TaskArchivedEvent is emitted when a task is moved into a monthly
// archive bucket.
type TaskArchivedEvent struct {
	baseEvent
	TaskDir     string // Task directory name
	ArchivePath string // Destination path under the archive directory
}

// NewTaskArchivedEvent creates a TaskArchivedEvent.
func NewTaskArchivedEvent(taskDir, archivePath string) TaskArchivedEvent {
	return TaskArchivedEvent{
		baseEvent:   newBaseEvent("task.archived"),
		TaskDir:     taskDir,
		ArchivePath: archivePath,
	}
}

// -----------------------------------------------------------------------------
// Worktree Events
// -----------------------------------------------------------------------------

// WorktreeCreatedEvent is emitted when a git worktree is created.
type WorktreeCreatedEvent struct {
	baseEvent
	Path     string // Filesystem path of the new worktree
	Branch   string // Branch checked out in the worktree
	Warnings int    // Count of non-fatal setup failures (copies, hooks)
}

// NewWorktreeCreatedEvent creates a WorktreeCreatedEvent.
func NewWorktreeCreatedEvent(path, branch string, warnings int) WorktreeCreatedEvent {
	return WorktreeCreatedEvent{
		baseEvent: newBaseEvent("worktree.created"),
		Path:      path,
		Branch:    branch,
		Warnings:  warnings,
	}
}

// WorktreeRemovedEvent is emitted when a git worktree is removed.
type WorktreeRemovedEvent struct {
	baseEvent
	Path   string // Filesystem path of the removed worktree
	Branch string // Branch that was checked out, if known
}

// NewWorktreeRemovedEvent creates a WorktreeRemovedEvent.
func NewWorktreeRemovedEvent(path, branch string) WorktreeRemovedEvent {
	return WorktreeRemovedEvent{
		baseEvent: newBaseEvent("worktree.removed"),
		Path:      path,
		Branch:    branch,
	}
}

// -----------------------------------------------------------------------------
// Agent Events
// -----------------------------------------------------------------------------

// AgentLaunchedEvent is emitted when an agent process starts.
type AgentLaunchedEvent struct {
	baseEvent
	AgentID    string // Registry record ID
	TaskDir    string // Task the agent works on, if any
	Phase      string // Context phase: implement, check, debug
	Platform   string // Platform driving the agent: claude or codex
	PID        int    // OS process ID
	Background bool   // True when launched detached
}

// NewAgentLaunchedEvent creates an AgentLaunchedEvent.
func NewAgentLaunchedEvent(agentID, taskDir, phase, platform string, pid int, background bool) AgentLaunchedEvent {
	return AgentLaunchedEvent{
		baseEvent:  newBaseEvent("agent.launched"),
		AgentID:    agentID,
		TaskDir:    taskDir,
		Phase:      phase,
		Platform:   platform,
		PID:        pid,
		Background: background,
	}
}

// AgentFinishedEvent is emitted when an agent process reaches a terminal
// state: completed, failed, or orphaned.
type AgentFinishedEvent struct {
	baseEvent
	AgentID  string // Registry record ID
	TaskDir  string // Task the agent worked on, if any
	Status   string // Terminal status: completed, failed, orphaned
	ExitCode int    // Process exit code (-1 if unknown)
}

// NewAgentFinishedEvent creates an AgentFinishedEvent.
func NewAgentFinishedEvent(agentID, taskDir, status string, exitCode int) AgentFinishedEvent {
	return AgentFinishedEvent{
		baseEvent: newBaseEvent("agent.finished"),
		AgentID:   agentID,
		TaskDir:   taskDir,
		Status:    status,
		ExitCode:  exitCode,
	}
}

// Success reports whether the agent exited cleanly.
func (e AgentFinishedEvent) Success() bool {
	return e.Status == "completed" && e.ExitCode == 0
}

// -----------------------------------------------------------------------------
// Journal Events
// -----------------------------------------------------------------------------

// JournalSessionEvent is emitted when a session entry lands in a
// developer's journal.
type JournalSessionEvent struct {
	baseEvent
	Developer string // Journal owner
	Session   int    // Global session number
	File      string // Journal file the entry was appended to
	Rotated   bool   // True when the entry opened a new journal file
}

// NewJournalSessionEvent creates a JournalSessionEvent.
func NewJournalSessionEvent(developer string, session int, file string, rotated bool) JournalSessionEvent {
	return JournalSessionEvent{
		baseEvent: newBaseEvent("journal.session_added"),
		Developer: developer,
		Session:   session,
		File:      file,
		Rotated:   rotated,
	}
}
