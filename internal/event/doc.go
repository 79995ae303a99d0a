// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Gantry.
//
// This package enables loose coupling between the task store, worktree
// manager, agent registry and the CLI by allowing them to communicate
// through events rather than direct method calls. Components can publish
// events without knowing who will receive them, and subscribe to events
// without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Task Lifecycle:
//   - [TaskCreatedEvent]: Emitted when a new task directory is written
//   - [PhaseAdvancedEvent]: Emitted when a task moves to a new phase
//   - [TaskArchivedEvent]: Emitted when a task is archived
//
// Worktree Events:
//   - [WorktreeCreatedEvent]: Emitted when a git worktree is created
//   - [WorktreeRemovedEvent]: Emitted when a git worktree is removed
//
// Agent Events:
//   - [AgentLaunchedEvent]: Emitted when an agent process starts
//   - [AgentFinishedEvent]: Emitted when an agent reaches a terminal state
//
// Journal Events:
//   - [JournalSessionEvent]: Emitted when a session entry lands in a journal
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("agent.launched", func(e event.Event) {
//	    launched := e.(event.AgentLaunchedEvent)
//	    log.Printf("Agent %s started (pid %d)", launched.AgentID, launched.PID)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewTaskCreatedEvent("08-21-fix-login-bug", "Fix login bug", "alice", "backend"))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("task.archived", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - task.created, task.phase_advanced, task.archived
//   - worktree.created, worktree.removed
//   - agent.launched, agent.finished
//   - journal.session_added
package event
