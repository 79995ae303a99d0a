// Package registry tracks launched agent processes. Every launch
// creates one durable JSON record under the data dir's agents
// directory; the record is mutated as the process and its log stream
// progress, and removed only by explicit cleanup. Liveness is probed
// with signal 0, and log streams are only ever interpreted by the
// owning platform adapter.
package registry

import (
	"bufio"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/platform"
)

// AgentsDir is the directory under the data dir holding one record and
// one log per launched agent.
const AgentsDir = "agents"

// Status tracks an agent process through its lifecycle.
type Status string

const (
	// StatusLaunched means the record exists but the process has not
	// been observed running yet.
	StatusLaunched Status = "launched"
	// StatusRunning means the process started.
	StatusRunning Status = "running"
	// StatusCompleted means the agent finished its run successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the process exited without completing.
	StatusFailed Status = "failed"
	// StatusOrphaned means the agent was canceled; it is never
	// restarted automatically.
	StatusOrphaned Status = "orphaned"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusOrphaned
}

// Record is the durable bookkeeping for one launched agent.
type Record struct {
	ID       string `json:"id"`
	TaskDir  string `json:"task_dir"`
	Phase    string `json:"phase"`
	Platform string `json:"platform"`
	PID      int    `json:"pid"`
	// LogFile is where background output is redirected. Foreground
	// agents inherit stdio and have none.
	LogFile string `json:"log_file,omitempty"`
	// SessionID is the platform's own session identifier, learned from
	// the log stream when the platform reports one.
	SessionID  string     `json:"session_id,omitempty"`
	Status     Status     `json:"status"`
	Background bool       `json:"background"`
	ExitCode   int        `json:"exit_code"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// LaunchOptions configures one agent launch.
type LaunchOptions struct {
	// TaskDir is the task directory the agent is bound to.
	TaskDir string
	// Phase names the lifecycle phase the agent is running.
	Phase string
	// Prompt is passed verbatim to the platform CLI.
	Prompt string
	// WorkDir is the working directory, normally the task's worktree.
	WorkDir string
	// Background detaches the process and redirects its output to the
	// agent's log file.
	Background bool
}

// Registry persists agent records and owns process lifecycle
// bookkeeping.
type Registry struct {
	dir    string
	logger *logging.Logger
	bus    *event.Bus
	mu     sync.RWMutex
}

// NewRegistry creates a registry rooted at dataDir, creating the
// agents directory if needed.
func NewRegistry(dataDir string, logger *logging.Logger, bus *event.Bus) (*Registry, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	dir := filepath.Join(dataDir, AgentsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create agents directory")
	}
	return &Registry{dir: dir, logger: logger, bus: bus}, nil
}

func (r *Registry) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// RecordPath returns the JSON record path for an agent id.
func (r *Registry) RecordPath(id string) string {
	return filepath.Join(r.dir, id+".json")
}

// LogPath returns the log path for an agent id.
func (r *Registry) LogPath(id string) string {
	return filepath.Join(r.dir, id+".log")
}

// Launch starts one agent process bound to a task phase. Foreground
// launches inherit stdio and block until the process exits, returning
// a terminal record; an agent that ran but failed is reported through
// the record's status, not an error. Background launches detach the
// process and return as soon as it is released.
func (r *Registry) Launch(adapter platform.Adapter, opts LaunchOptions) (*Record, error) {
	if adapter == nil {
		return nil, errors.NewValidationError("adapter is required").WithField("adapter")
	}
	if strings.TrimSpace(opts.Prompt) == "" {
		return nil, errors.NewValidationError("prompt cannot be empty").WithField("prompt")
	}
	if opts.WorkDir == "" {
		return nil, errors.NewValidationError("work dir cannot be empty").WithField("work_dir")
	}
	if info, err := os.Stat(opts.WorkDir); err != nil || !info.IsDir() {
		return nil, errors.NewValidationError("work dir must be an existing directory").
			WithField("work_dir").
			WithValue(opts.WorkDir)
	}

	rec := &Record{
		ID:         uuid.NewString(),
		TaskDir:    opts.TaskDir,
		Phase:      opts.Phase,
		Platform:   string(adapter.Name()),
		Status:     StatusLaunched,
		Background: opts.Background,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if opts.Background {
		rec.LogFile = r.LogPath(rec.ID)
	}
	if err := r.saveRecord(rec); err != nil {
		return nil, err
	}

	bin, args := adapter.LaunchCommand(opts.Prompt)
	cmd := exec.Command(bin, args...)
	cmd.Dir = opts.WorkDir

	if opts.Background {
		return r.launchBackground(rec, cmd)
	}
	return r.launchForeground(rec, cmd)
}

func (r *Registry) launchForeground(rec *Record, cmd *exec.Cmd) (*Record, error) {
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		_, _ = r.markFinished(rec.ID, StatusFailed, -1)
		return nil, errors.NewAgentError("failed to start agent: "+err.Error(), errors.ErrAgentStartFailed).
			WithAgentID(rec.ID)
	}

	if updated, err := r.markRunning(rec.ID, cmd.Process.Pid); err != nil || updated == nil {
		r.logger.Warn("failed to persist agent record", "agent", rec.ID)
		rec.PID = cmd.Process.Pid
		rec.Status = StatusRunning
	} else {
		rec = updated
	}
	r.logger.Info("agent launched",
		"agent", rec.ID, "platform", rec.Platform, "pid", rec.PID, "background", false)
	r.publish(event.NewAgentLaunchedEvent(rec.ID, rec.TaskDir, rec.Phase, rec.Platform, rec.PID, false))

	status, code := StatusCompleted, 0
	if err := cmd.Wait(); err != nil {
		status, code = StatusFailed, exitCode(err)
	}
	return r.markFinished(rec.ID, status, code)
}

func (r *Registry) launchBackground(rec *Record, cmd *exec.Cmd) (*Record, error) {
	logf, err := os.OpenFile(rec.LogFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		_, _ = r.markFinished(rec.ID, StatusFailed, -1)
		return nil, errors.Wrap(err, "failed to create agent log")
	}
	defer logf.Close()

	cmd.Stdin = nil
	cmd.Stdout = logf
	cmd.Stderr = logf
	cmd.SysProcAttr = detachAttr()

	if err := cmd.Start(); err != nil {
		_, _ = r.markFinished(rec.ID, StatusFailed, -1)
		return nil, errors.NewAgentError("failed to start agent: "+err.Error(), errors.ErrAgentStartFailed).
			WithAgentID(rec.ID)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		r.logger.Warn("failed to release agent process", "agent", rec.ID, "error", err.Error())
	}

	if updated, err := r.markRunning(rec.ID, pid); err != nil || updated == nil {
		r.logger.Warn("failed to persist agent record", "agent", rec.ID)
		rec.PID = pid
		rec.Status = StatusRunning
	} else {
		rec = updated
	}
	r.logger.Info("agent launched",
		"agent", rec.ID, "platform", rec.Platform, "pid", pid, "background", true)
	r.publish(event.NewAgentLaunchedEvent(rec.ID, rec.TaskDir, rec.Phase, rec.Platform, pid, true))
	return rec, nil
}

// Get returns an agent record, or nil when none exists.
func (r *Registry) Get(id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadRecord(id)
}

// Refresh reconciles a record against the live process. A non-terminal
// record whose process has exited is marked terminal, deriving the
// outcome from the last canonical event in its log.
func (r *Registry) Refresh(id string) (*Record, error) {
	rec, err := r.Get(id)
	if err != nil || rec == nil {
		return rec, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}
	if rec.PID > 0 && isProcessAlive(rec.PID) {
		return rec, nil
	}
	status, code := r.outcomeFromLog(rec)
	return r.markFinished(id, status, code)
}

// List returns every known agent record, reconciled against live
// processes, ordered by start time.
func (r *Registry) List() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read agents directory")
	}

	var records []*Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := r.Refresh(strings.TrimSuffix(name, ".json"))
		if err != nil {
			r.logger.Warn("skipping agent record", "file", name, "error", err.Error())
			continue
		}
		if rec != nil {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// Cancel terminates an agent with SIGTERM and marks its record
// orphaned. Canceled agents are never restarted automatically.
func (r *Registry) Cancel(id string) (*Record, error) {
	rec, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.NewNotFoundError("agent", id).WithCause(errors.ErrAgentNotFound)
	}
	if rec.Status.Terminal() {
		return nil, errors.NewAgentError("agent is not running", errors.ErrAgentNotRunning).
			WithAgentID(id).
			WithPID(rec.PID)
	}

	if rec.PID > 0 {
		if proc, err := os.FindProcess(rec.PID); err == nil {
			if err := proc.Signal(syscall.SIGTERM); err != nil {
				r.logger.Warn("failed to signal agent", "agent", id, "pid", rec.PID, "error", err.Error())
			}
		}
	}
	r.logger.Info("agent canceled", "agent", id, "pid", rec.PID)
	return r.markFinished(id, StatusOrphaned, -1)
}

// Clean removes terminal records and their logs. olderThan > 0 keeps
// records that finished more recently than the cutoff; zero removes
// every terminal record.
func (r *Registry) Clean(olderThan time.Duration) (int, error) {
	records, err := r.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	now := time.Now().UTC()
	for _, rec := range records {
		if !rec.Status.Terminal() {
			continue
		}
		ref := rec.StartedAt
		if rec.FinishedAt != nil {
			ref = *rec.FinishedAt
		}
		if olderThan > 0 && now.Sub(ref) < olderThan {
			continue
		}

		r.mu.Lock()
		err := os.Remove(r.RecordPath(rec.ID))
		if rec.LogFile != "" {
			_ = os.Remove(rec.LogFile)
		}
		r.mu.Unlock()
		if err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove agent record", "agent", rec.ID, "error", err.Error())
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info("agent records cleaned", "removed", removed)
	}
	return removed, nil
}

// markRunning records the pid once the process has started.
func (r *Registry) markRunning(id string, pid int) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.loadRecord(id)
	if err != nil || rec == nil {
		return rec, err
	}
	rec.PID = pid
	rec.Status = StatusRunning
	return rec, r.saveRecordLocked(rec)
}

// markSession folds the platform session id into the record the first
// time the log stream reveals it.
func (r *Registry) markSession(id, sessionID string) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.loadRecord(id)
	if err != nil || rec == nil || rec.SessionID != "" {
		return
	}
	rec.SessionID = sessionID
	if err := r.saveRecordLocked(rec); err != nil {
		r.logger.Warn("failed to persist agent session", "agent", id, "error", err.Error())
	}
}

// markFinished moves a record to a terminal status exactly once,
// persisting it and publishing agent.finished. Already-terminal
// records are returned unchanged.
func (r *Registry) markFinished(id string, status Status, exitCode int) (*Record, error) {
	r.mu.Lock()
	rec, err := r.loadRecord(id)
	if err != nil || rec == nil {
		r.mu.Unlock()
		return rec, err
	}
	if rec.Status.Terminal() {
		r.mu.Unlock()
		return rec, nil
	}
	now := time.Now().UTC().Truncate(time.Second)
	rec.Status = status
	rec.ExitCode = exitCode
	rec.FinishedAt = &now
	saveErr := r.saveRecordLocked(rec)
	r.mu.Unlock()

	if saveErr != nil {
		return rec, saveErr
	}
	r.logger.Info("agent finished", "agent", id, "status", string(status), "exit_code", exitCode)
	r.publish(event.NewAgentFinishedEvent(id, rec.TaskDir, string(status), exitCode))
	return rec, nil
}

// outcomeFromLog derives a terminal status for a dead agent from the
// last terminal event its adapter can parse out of the log. No
// parseable completion means the process died mid-run.
func (r *Registry) outcomeFromLog(rec *Record) (Status, int) {
	if rec.LogFile == "" {
		return StatusFailed, -1
	}
	adapter, err := platform.ForName(rec.Platform)
	if err != nil {
		return StatusFailed, -1
	}
	f, err := os.Open(rec.LogFile)
	if err != nil {
		return StatusFailed, -1
	}
	defer f.Close()

	var last *platform.AgentEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ev := adapter.ParseLogLine(scanner.Text())
		if ev == nil {
			continue
		}
		if ev.Type == platform.EventComplete || ev.Type == platform.EventError {
			last = ev
		}
	}
	if last != nil && last.Type == platform.EventComplete {
		return StatusCompleted, 0
	}
	return StatusFailed, -1
}

func (r *Registry) loadRecord(id string) (*Record, error) {
	data, err := os.ReadFile(r.RecordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read agent record")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		r.logger.Warn("skipping corrupt agent record", "agent", id, "error", err.Error())
		return nil, nil
	}
	return &rec, nil
}

func (r *Registry) saveRecord(rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveRecordLocked(rec)
}

func (r *Registry) saveRecordLocked(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode agent record")
	}
	return atomicWriteFile(r.RecordPath(rec.ID), append(data, '\n'), 0644)
}

// exitCode extracts the process exit code from a Wait error.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// isProcessAlive reports whether pid is still running. Signal 0 probes
// existence without delivering anything.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

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
		return errors.Wrap(err, "failed to replace file")
	}
	committed = true
	return nil
}
