// Package internal contains integration tests that verify the gantry
// packages compose correctly: domain components publish lifecycle events
// on the shared bus and their on-disk state stays consistent across
// package boundaries.
package internal

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/journal"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/gantryhq/gantry/internal/testutil"
)

// eventCollector records every event published on a bus in order.
type eventCollector struct {
	mu     sync.Mutex
	events []event.Event
}

func collectAll(bus *event.Bus) *eventCollector {
	c := &eventCollector{}
	bus.SubscribeAll(func(e event.Event) {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	})
	return c
}

func (c *eventCollector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.events))
	for i, e := range c.events {
		types[i] = e.EventType()
	}
	return types
}

func (c *eventCollector) at(i int) event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.events) {
		return nil
	}
	return c.events[i]
}

// TestTaskLifecycleEventFlow walks a task through create, advance and
// archive and verifies the store publishes the matching event sequence
// with domain context attached.
func TestTaskLifecycleEventFlow(t *testing.T) {
	dataDir := testutil.SetupDataDir(t)
	if _, err := developer.Init(dataDir, "alice"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	bus := event.NewBus()
	collector := collectAll(bus)

	store, err := task.NewStore(dataDir, logging.NopLogger(), bus)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	created, err := store.CreateTask("Fix login bug", task.CreateOptions{DevType: "backend"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := store.AdvancePhase(created.ID); err != nil {
		t.Fatalf("AdvancePhase() error = %v", err)
	}
	dest, err := store.ArchiveTask(created.ID)
	if err != nil {
		t.Fatalf("ArchiveTask() error = %v", err)
	}

	want := []string{"task.created", "task.phase_advanced", "task.archived"}
	got := collector.types()
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d type = %q, want %q", i, got[i], want[i])
		}
	}

	createdEvt, ok := collector.at(0).(event.TaskCreatedEvent)
	if !ok {
		t.Fatalf("event 0 is %T, want TaskCreatedEvent", collector.at(0))
	}
	if createdEvt.TaskDir != created.ID {
		t.Errorf("TaskCreatedEvent.TaskDir = %q, want %q", createdEvt.TaskDir, created.ID)
	}
	if createdEvt.Assignee != "alice" {
		t.Errorf("TaskCreatedEvent.Assignee = %q, want %q", createdEvt.Assignee, "alice")
	}

	advancedEvt, ok := collector.at(1).(event.PhaseAdvancedEvent)
	if !ok {
		t.Fatalf("event 1 is %T, want PhaseAdvancedEvent", collector.at(1))
	}
	if advancedEvt.PreviousPhase != 0 || advancedEvt.CurrentPhase != 1 {
		t.Errorf("phase advance %d -> %d, want 0 -> 1",
			advancedEvt.PreviousPhase, advancedEvt.CurrentPhase)
	}

	archivedEvt, ok := collector.at(2).(event.TaskArchivedEvent)
	if !ok {
		t.Fatalf("event 2 is %T, want TaskArchivedEvent", collector.at(2))
	}
	if archivedEvt.ArchivePath != dest {
		t.Errorf("TaskArchivedEvent.ArchivePath = %q, want %q", archivedEvt.ArchivePath, dest)
	}
}

// TestCurrentTaskPointerFollowsLifecycle verifies the pointer moves to each
// newly created task and is cleared only when the task it references is
// archived.
func TestCurrentTaskPointerFollowsLifecycle(t *testing.T) {
	dataDir := testutil.SetupDataDir(t)
	if _, err := developer.Init(dataDir, "alice"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	store, err := task.NewStore(dataDir, logging.NopLogger(), event.NewBus())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	first, err := store.CreateTask("Fix login bug", task.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if current, _ := store.CurrentTask(); current != first.ID {
		t.Errorf("current task = %q, want %q", current, first.ID)
	}

	second, err := store.CreateTask("Add rate limiting", task.CreateOptions{})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if current, _ := store.CurrentTask(); current != second.ID {
		t.Errorf("current task after second create = %q, want %q", current, second.ID)
	}

	// Archiving a non-current task leaves the pointer alone.
	if _, err := store.ArchiveTask(first.ID); err != nil {
		t.Fatalf("ArchiveTask(first) error = %v", err)
	}
	if current, _ := store.CurrentTask(); current != second.ID {
		t.Errorf("current task after archiving other = %q, want %q", current, second.ID)
	}

	// Archiving the current task clears the pointer.
	if _, err := store.ArchiveTask(second.ID); err != nil {
		t.Fatalf("ArchiveTask(second) error = %v", err)
	}
	if current, _ := store.CurrentTask(); current != "" {
		t.Errorf("current task after archiving current = %q, want empty", current)
	}
}

// TestSharedBusAcrossComponents wires the task store and journal manager to
// one bus and verifies a single subscriber observes both components'
// events, the way the CLI layer consumes them.
func TestSharedBusAcrossComponents(t *testing.T) {
	dataDir := testutil.SetupDataDir(t)
	if _, err := developer.Init(dataDir, "alice"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	bus := event.NewBus()

	var taskEvents, journalEvents int
	var mu sync.Mutex
	bus.Subscribe("task.created", func(e event.Event) {
		mu.Lock()
		taskEvents++
		mu.Unlock()
	})
	bus.Subscribe("journal.session_added", func(e event.Event) {
		mu.Lock()
		journalEvents++
		mu.Unlock()
	})
	collector := collectAll(bus)

	store, err := task.NewStore(dataDir, logging.NopLogger(), bus)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	journals := journal.NewManager(dataDir, 2000, logging.NopLogger(), bus)

	if _, err := store.CreateTask("Fix login bug", task.CreateOptions{}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	sess, err := journals.AddSession("alice", journal.Session{
		Title:   "Fixed the login redirect loop",
		Summary: "Session cookies were dropped on cross-origin redirects.",
	})
	if err != nil {
		t.Fatalf("AddSession() error = %v", err)
	}
	if sess.Number != 1 {
		t.Errorf("session number = %d, want 1", sess.Number)
	}

	mu.Lock()
	defer mu.Unlock()
	if taskEvents != 1 {
		t.Errorf("task.created events = %d, want 1", taskEvents)
	}
	if journalEvents != 1 {
		t.Errorf("journal.session_added events = %d, want 1", journalEvents)
	}
	if total := len(collector.types()); total != 2 {
		t.Errorf("total events = %d, want 2", total)
	}

	sessionEvt, ok := collector.at(1).(event.JournalSessionEvent)
	if !ok {
		t.Fatalf("event 1 is %T, want JournalSessionEvent", collector.at(1))
	}
	if sessionEvt.Developer != "alice" {
		t.Errorf("JournalSessionEvent.Developer = %q, want %q", sessionEvt.Developer, "alice")
	}
	if !sessionEvt.Rotated {
		t.Error("first session should report Rotated = true (file 1 was created)")
	}
}

// TestArchivedRecordIsImmutableAcrossPackages confirms the record an
// archive relocation writes matches what the lifecycle produced: the
// status flips to completed, everything else survives unchanged.
func TestArchivedRecordIsImmutableAcrossPackages(t *testing.T) {
	dataDir := testutil.SetupDataDir(t)
	if _, err := developer.Init(dataDir, "alice"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	store, err := task.NewStore(dataDir, logging.NopLogger(), event.NewBus())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	created, err := store.CreateTask("Fix login bug", task.CreateOptions{
		DevType:  "backend",
		Priority: "high",
		Notes:    "repro requires an expired session cookie",
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	dest, err := store.ArchiveTask(created.ID)
	if err != nil {
		t.Fatalf("ArchiveTask() error = %v", err)
	}
	if !strings.Contains(dest, created.ID) {
		t.Errorf("archive destination %q should contain task dir %q", dest, created.ID)
	}

	month := filepath.Base(filepath.Dir(dest))
	archived, err := store.ListArchivedTasks(month)
	if err != nil {
		t.Fatalf("ListArchivedTasks(%q) error = %v", month, err)
	}
	if len(archived) != 1 {
		t.Fatalf("archived tasks = %d, want 1", len(archived))
	}

	got := archived[0]
	if got.Status != task.StatusCompleted {
		t.Errorf("archived status = %q, want %q", got.Status, task.StatusCompleted)
	}
	if got.CompletedAt == nil {
		t.Error("archived record should have completed_at set")
	}
	if got.Title != created.Title || got.DevType != created.DevType ||
		got.Priority != created.Priority || got.Notes != created.Notes {
		t.Errorf("archived record mutated beyond completion fields: got %+v", got)
	}

	// The active set no longer knows the task.
	active, err := store.ListTasks(task.Filter{})
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active tasks after archive = %d, want 0", len(active))
	}
}
