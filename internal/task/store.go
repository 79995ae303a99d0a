package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/logging"
)

const (
	// TasksDir is the directory under the data dir holding active tasks.
	TasksDir = "tasks"
	// ArchiveDir is the directory under the data dir holding archived
	// tasks, bucketed by year-month.
	ArchiveDir = "archive"
	// RecordFileName is the task record file within a task directory.
	RecordFileName = "task.json"
	// CurrentTaskFileName is the single-line pointer file naming the
	// active task directory.
	CurrentTaskFileName = "current-task"
)

// ArchiveBucketFormat is the time layout for archive bucket names.
const ArchiveBucketFormat = "2006-01"

// DefaultPhases is the phase plan assigned when CreateTask receives none.
var DefaultPhases = []string{"implement", "check", "debug"}

// CreateOptions carries the optional fields accepted by CreateTask.
type CreateOptions struct {
	// DevType classifies the task for context generation. Empty is allowed.
	DevType DevType
	// Priority is a free-form urgency label.
	Priority Priority
	// Assignee overrides the developer identity as the task owner.
	Assignee string
	// Creator records who created the task. Defaults to the assignee.
	Creator string
	// Branch is the isolation branch the task's work will live on.
	Branch string
	// BaseBranch is the branch the isolation branch forks from.
	BaseBranch string
	// NextAction is the ordered phase plan. Defaults to DefaultPhases.
	NextAction []string
	// Notes seeds the free-form notes field.
	Notes string
}

// Filter narrows ListTasks results. Zero-value fields match everything.
type Filter struct {
	Status   Status
	DevType  DevType
	Assignee string
}

// Matches reports whether t passes every set field of the filter.
func (f Filter) Matches(t *Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.DevType != "" && t.DevType != f.DevType {
		return false
	}
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	return true
}

// Store manages task records under a gantry data directory. All record
// writes are atomic (temp file + rename). Read paths return nil for
// missing records and log-and-skip records that fail schema validation.
type Store struct {
	dataDir string
	logger  *logging.Logger
	bus     *event.Bus
	mu      sync.RWMutex
}

// NewStore creates a Store rooted at dataDir, creating the tasks
// directory if needed. A nil logger falls back to NopLogger; a nil bus
// disables event publication.
func NewStore(dataDir string, logger *logging.Logger, bus *event.Bus) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Join(dataDir, TasksDir), 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create tasks directory")
	}
	return &Store{dataDir: dataDir, logger: logger, bus: bus}, nil
}

// TasksPath returns the active tasks directory.
func (s *Store) TasksPath() string {
	return filepath.Join(s.dataDir, TasksDir)
}

// TaskPath returns the directory of one active task.
func (s *Store) TaskPath(dir string) string {
	return filepath.Join(s.dataDir, TasksDir, dir)
}

// ArchivePath returns the archive bucket directory for a year-month.
func (s *Store) ArchivePath(month string) string {
	return filepath.Join(s.dataDir, ArchiveDir, month)
}

func (s *Store) recordPath(dir string) string {
	return filepath.Join(s.TaskPath(dir), RecordFileName)
}

func (s *Store) currentTaskPath() string {
	return filepath.Join(s.dataDir, CurrentTaskFileName)
}

func (s *Store) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// CreateTask creates a new task directory and record. The title must
// yield a non-empty slug, and an assignee must be resolvable either from
// opts or from the developer identity file. A directory-name collision
// is reported, never merged. The new task becomes the current task.
func (s *Store) CreateTask(title string, opts CreateOptions) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := Slugify(title)
	if slug == "" {
		return nil, errors.NewValidationError("title must contain at least one alphanumeric character").
			WithField("title").
			WithValue(title)
	}
	if !opts.DevType.IsValid() {
		return nil, errors.NewValidationError("dev_type must be one of backend, frontend, fullstack, test").
			WithField("dev_type").
			WithValue(string(opts.DevType))
	}

	assignee := opts.Assignee
	if assignee == "" {
		dev, err := developer.Load(s.dataDir)
		if err != nil {
			return nil, err
		}
		if dev == nil {
			return nil, errors.NewTaskError("no assignee given and no developer identity initialized", errors.ErrNoAssignee)
		}
		assignee = dev.Name
	}
	creator := opts.Creator
	if creator == "" {
		creator = assignee
	}

	plan := opts.NextAction
	if len(plan) == 0 {
		plan = DefaultPhases
	}

	now := time.Now().UTC().Truncate(time.Second)
	dir := DirName(now, slug)

	t := &Task{
		ID:           dir,
		Title:        title,
		Status:       StatusPlanning,
		DevType:      opts.DevType,
		Priority:     opts.Priority,
		Creator:      creator,
		Assignee:     assignee,
		CreatedAt:    now,
		Branch:       opts.Branch,
		BaseBranch:   opts.BaseBranch,
		CurrentPhase: 0,
		NextAction:   append([]string(nil), plan...),
		Notes:        opts.Notes,
	}

	if err := os.Mkdir(s.TaskPath(dir), 0755); err != nil {
		if os.IsExist(err) {
			return nil, errors.NewAlreadyExistsError("task directory", dir).WithCause(errors.ErrTaskExists)
		}
		return nil, errors.Wrap(err, "failed to create task directory")
	}
	if err := s.writeRecord(dir, t); err != nil {
		return nil, err
	}
	if err := s.setCurrentTask(dir); err != nil {
		s.logger.Warn("failed to set current task pointer", "task", dir, "error", err)
	}

	s.logger.Info("task created", "task", dir, "title", title, "assignee", assignee, "dev_type", string(t.DevType))
	s.publish(event.NewTaskCreatedEvent(dir, title, assignee, string(t.DevType)))
	return t, nil
}

// ReadTask loads the record of an active task. It returns nil without an
// error when the directory does not exist; a record failing schema
// validation is logged as a warning and also treated as absent.
func (s *Store) ReadTask(dir string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readRecord(s.recordPath(dir), dir)
}

// WriteTask persists a record into a task directory, creating it if
// needed. The record must pass schema validation; the write is atomic.
func (s *Store) WriteTask(dir string, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.TaskPath(dir), 0755); err != nil {
		return errors.Wrap(err, "failed to create task directory")
	}
	return s.writeRecord(dir, t)
}

// FindTask resolves nameOrSlug against the active task set: first an
// exact directory-name match, then a slug match ignoring the date
// prefix (the input is slugified, so a raw title also resolves).
// Returns nil when nothing matches; an input matching several task
// directories is an error.
func (s *Store) FindTask(nameOrSlug string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir, err := s.findDir(nameOrSlug)
	if err != nil || dir == "" {
		return nil, err
	}
	return s.readRecord(s.recordPath(dir), dir)
}

// ListTasks returns all active task records matching the filter, ordered
// by directory name. Unreadable or invalid records are skipped with a
// warning. An active record already marked completed is reported as a
// warning too, since it usually means an archive was interrupted.
func (s *Store) ListTasks(filter Filter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dirs, err := s.taskDirs()
	if err != nil {
		return nil, err
	}

	var tasks []*Task
	for _, dir := range dirs {
		t, err := s.readRecord(s.recordPath(dir), dir)
		if err != nil {
			return nil, err
		}
		if t == nil {
			continue
		}
		if t.Status == StatusCompleted {
			s.logger.Warn("active task is marked completed, archive may have been interrupted", "task", dir)
		}
		if filter.Matches(t) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// UpdateTask shallow-merges partial into the stored record and persists
// the result atomically. A nil value removes the field. The merged
// record must pass schema validation; on failure nothing is written and
// a ValidationError is returned. Returns nil without an error when the
// task does not exist.
func (s *Store) UpdateTask(dir string, partial map[string]any) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(dir)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read task record %s", dir)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.NewValidationError("task record is not valid JSON").
			WithField("task").
			WithValue(dir).
			WithCause(err)
	}
	for k, v := range partial {
		if v == nil {
			delete(record, k)
			continue
		}
		record[k] = v
	}

	merged, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal merged task record")
	}
	merged = append(merged, '\n')
	if err := ValidateRecord(merged); err != nil {
		return nil, err
	}

	var t Task
	if err := json.Unmarshal(merged, &t); err != nil {
		return nil, errors.Wrapf(err, "failed to decode merged task record %s", dir)
	}
	if err := atomicWriteFile(path, merged, 0644); err != nil {
		return nil, err
	}

	s.logger.Debug("task updated", "task", dir, "fields", len(partial))
	return &t, nil
}

// AdvancePhase moves current_phase forward by one. Phases never move
// backward; advancing past the end of the phase plan fails with
// ErrPhaseExhausted. Returns nil without an error when the task does not
// exist.
func (s *Store) AdvancePhase(dir string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.readRecord(s.recordPath(dir), dir)
	if err != nil || t == nil {
		return nil, err
	}
	if len(t.NextAction) == 0 {
		return nil, errors.NewTaskError("task has no phase plan", errors.ErrPhaseExhausted).WithTaskDir(dir)
	}
	if t.CurrentPhase+1 >= len(t.NextAction) {
		return nil, errors.NewTaskError("already at the last phase", errors.ErrPhaseExhausted).
			WithTaskDir(dir).
			WithPhase(t.Phase())
	}

	previous := t.CurrentPhase
	t.CurrentPhase++
	if err := s.writeRecord(dir, t); err != nil {
		return nil, err
	}

	s.logger.Info("phase advanced", "task", dir, "from", previous, "to", t.CurrentPhase, "phase", t.Phase())
	s.publish(event.NewPhaseAdvancedEvent(dir, previous, t.CurrentPhase, t.NextAction))
	return t, nil
}

// ArchiveTask marks a task completed and relocates its directory into
// the archive bucket for the completion month. The two steps are not
// atomic, but each is idempotent: a record already marked completed is
// not re-marked, and a task found already archived only has the
// dangling current-task pointer cleaned up. The current-task pointer is
// cleared when it references the archived directory. Returns the
// archived directory path.
func (s *Store) ArchiveTask(nameOrSlug string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.findDir(nameOrSlug)
	if err != nil {
		return "", err
	}
	if dir == "" {
		// The active set has no match. If a previous run was interrupted
		// after the relocation, converge by finishing the pointer cleanup.
		archived, err := s.findArchivedDir(nameOrSlug)
		if err != nil {
			return "", err
		}
		if archived == "" {
			return "", errors.NewNotFoundError("task", nameOrSlug).WithCause(errors.ErrTaskNotFound)
		}
		s.logger.Debug("task already archived", "task", nameOrSlug, "archive", archived)
		if err := s.clearPointerTo(filepath.Base(archived)); err != nil {
			return "", err
		}
		return archived, nil
	}

	data, err := os.ReadFile(s.recordPath(dir))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read task record %s", dir)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return "", errors.NewValidationError("task record is not valid JSON").
			WithField("task").
			WithValue(dir).
			WithCause(err)
	}

	// Step 1: mark completed. A record already marked keeps its original
	// completion date so re-runs land in the same bucket.
	if t.Status != StatusCompleted || t.CompletedAt == nil {
		t.Status = StatusCompleted
		if t.CompletedAt == nil {
			now := time.Now().UTC().Truncate(time.Second)
			t.CompletedAt = &now
		}
		if err := s.writeRecord(dir, &t); err != nil {
			return "", err
		}
	}

	// Step 2: relocate under archive/<YYYY-MM>/, keyed by completion date.
	bucket := t.CompletedAt.Format(ArchiveBucketFormat)
	if err := os.MkdirAll(s.ArchivePath(bucket), 0755); err != nil {
		return "", errors.Wrap(err, "failed to create archive bucket")
	}
	dest := filepath.Join(s.ArchivePath(bucket), dir)
	if _, err := os.Stat(dest); err == nil {
		return "", errors.NewAlreadyExistsError("archived task", filepath.Join(bucket, dir))
	} else if !os.IsNotExist(err) {
		return "", errors.Wrap(err, "failed to check archive destination")
	}
	if err := os.Rename(s.TaskPath(dir), dest); err != nil {
		return "", errors.Wrap(err, "failed to relocate task directory")
	}

	// Step 3: drop the pointer when it references the archived task.
	if err := s.clearPointerTo(dir); err != nil {
		return "", err
	}

	s.logger.Info("task archived", "task", dir, "archive", dest)
	s.publish(event.NewTaskArchivedEvent(dir, dest))
	return dest, nil
}

// ListArchivedTasks returns archived task records, optionally restricted
// to one year-month bucket (format "2006-01"). Results are ordered by
// bucket then directory name. Unreadable records are skipped with a
// warning.
func (s *Store) ListArchivedTasks(month string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buckets []string
	if month != "" {
		if _, err := time.Parse(ArchiveBucketFormat, month); err != nil {
			return nil, errors.NewValidationError("month must use the YYYY-MM format").
				WithField("month").
				WithValue(month)
		}
		buckets = []string{month}
	} else {
		entries, err := os.ReadDir(filepath.Join(s.dataDir, ArchiveDir))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, errors.Wrap(err, "failed to read archive directory")
		}
		for _, e := range entries {
			if e.IsDir() {
				buckets = append(buckets, e.Name())
			}
		}
		sort.Strings(buckets)
	}

	var tasks []*Task
	for _, bucket := range buckets {
		entries, err := os.ReadDir(s.ArchivePath(bucket))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read archive bucket %s", bucket)
		}
		var dirs []string
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, e.Name())
			}
		}
		sort.Strings(dirs)
		for _, dir := range dirs {
			t, err := s.readRecord(filepath.Join(s.ArchivePath(bucket), dir, RecordFileName), dir)
			if err != nil {
				return nil, err
			}
			if t != nil {
				tasks = append(tasks, t)
			}
		}
	}
	return tasks, nil
}

// CurrentTask returns the directory name the current-task pointer
// references, or "" when no pointer is set.
func (s *Store) CurrentTask() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTask()
}

// SetCurrentTask points the current-task pointer at an existing active
// task directory.
func (s *Store) SetCurrentTask(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.recordPath(dir)); err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFoundError("task", dir).WithCause(errors.ErrTaskNotFound)
		}
		return errors.Wrap(err, "failed to check task record")
	}
	return s.setCurrentTask(dir)
}

// ClearCurrentTask removes the current-task pointer. Clearing an unset
// pointer is a no-op.
func (s *Store) ClearCurrentTask() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearCurrentTask()
}

// -----------------------------------------------------------------------------
// Internal helpers (callers hold the store mutex)
// -----------------------------------------------------------------------------

func (s *Store) readRecord(path, dir string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read task record %s", dir)
	}
	if err := ValidateRecord(data); err != nil {
		s.logger.Warn("task record failed validation, treating as absent", "task", dir, "error", err)
		return nil, nil
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "failed to decode task record %s", dir)
	}
	return &t, nil
}

func (s *Store) writeRecord(dir string, t *Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal task record")
	}
	data = append(data, '\n')
	if err := ValidateRecord(data); err != nil {
		return err
	}
	return atomicWriteFile(s.recordPath(dir), data, 0644)
}

func (s *Store) taskDirs() ([]string, error) {
	entries, err := os.ReadDir(s.TasksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read tasks directory")
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func (s *Store) findDir(nameOrSlug string) (string, error) {
	dirs, err := s.taskDirs()
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		if dir == nameOrSlug {
			return dir, nil
		}
	}

	slug := Slugify(nameOrSlug)
	if slug == "" {
		return "", nil
	}
	var matches []string
	for _, dir := range dirs {
		if SlugFromDir(dir) == slug {
			matches = append(matches, dir)
		}
	}
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		return "", errors.NewValidationError(
			fmt.Sprintf("%q matches %d tasks (%s), use the full directory name",
				nameOrSlug, len(matches), strings.Join(matches, ", "))).
			WithField("task")
	}
}

// findArchivedDir looks for nameOrSlug in the archive, newest bucket
// first, and returns the full archived directory path or "".
func (s *Store) findArchivedDir(nameOrSlug string) (string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dataDir, ArchiveDir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to read archive directory")
	}
	var buckets []string
	for _, e := range entries {
		if e.IsDir() {
			buckets = append(buckets, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(buckets)))

	slug := Slugify(nameOrSlug)
	for _, bucket := range buckets {
		dirs, err := os.ReadDir(s.ArchivePath(bucket))
		if err != nil {
			continue
		}
		for _, e := range dirs {
			if !e.IsDir() {
				continue
			}
			if e.Name() == nameOrSlug || (slug != "" && SlugFromDir(e.Name()) == slug) {
				return filepath.Join(s.ArchivePath(bucket), e.Name()), nil
			}
		}
	}
	return "", nil
}

func (s *Store) currentTask() (string, error) {
	data, err := os.ReadFile(s.currentTaskPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to read current task pointer")
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *Store) setCurrentTask(dir string) error {
	return atomicWriteFile(s.currentTaskPath(), []byte(dir+"\n"), 0644)
}

func (s *Store) clearCurrentTask() error {
	if err := os.Remove(s.currentTaskPath()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to clear current task pointer")
	}
	return nil
}

// clearPointerTo clears the current-task pointer only when it references
// the given directory.
func (s *Store) clearPointerTo(dir string) error {
	current, err := s.currentTask()
	if err != nil {
		return err
	}
	if current != dir {
		return nil
	}
	if err := s.clearCurrentTask(); err != nil {
		s.logger.Warn("failed to clear current task pointer", "task", dir, "error", err)
	}
	return nil
}

// atomicWriteFile writes data to a temporary file in the target's
// directory, syncs it, then renames it over the target so readers never
// observe a partial record.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Wrap(err, "failed to set temp file permissions")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "failed to rename temp file")
	}
	committed = true
	return nil
}
