package registry

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/platform"
	"github.com/gantryhq/gantry/internal/testutil"
)

// stubAdapter rides on the real claude adapter so records resolve back
// to a working parser, but launches an arbitrary shell script instead
// of the platform CLI.
type stubAdapter struct {
	platform.Adapter
	bin    string
	script string
}

func newStubAdapter(script string) *stubAdapter {
	return &stubAdapter{Adapter: platform.NewClaudeAdapter(), bin: "sh", script: script}
}

func (s *stubAdapter) LaunchCommand(prompt string) (string, []string) {
	return s.bin, []string{"-c", s.script}
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestRegistry(t *testing.T) (*Registry, string, *event.Bus) {
	t.Helper()
	dataDir := testutil.SetupDataDir(t)
	bus := event.NewBus()
	r, err := NewRegistry(dataDir, nil, bus)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return r, dataDir, bus
}

func launchOpts(t *testing.T, background bool) LaunchOptions {
	t.Helper()
	return LaunchOptions{
		TaskDir:    "08-25-fix-login-bug",
		Phase:      "implement",
		Prompt:     "run the implement phase",
		WorkDir:    t.TempDir(),
		Background: background,
	}
}

// waitTerminal polls Refresh until the record settles.
func waitTerminal(t *testing.T, r *Registry, id string) *Record {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := r.Refresh(id)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if rec != nil && rec.Status.Terminal() {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("agent never reached a terminal state")
	return nil
}

func TestNewRegistry_CreatesAgentsDir(t *testing.T) {
	dataDir := t.TempDir()
	if _, err := NewRegistry(dataDir, nil, nil); err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dataDir, AgentsDir))
	if err != nil || !info.IsDir() {
		t.Errorf("agents dir not created: %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusLaunched, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusOrphaned, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Status(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLaunch_Foreground(t *testing.T) {
	requireSh(t)
	r, _, bus := newTestRegistry(t)

	var launched []event.AgentLaunchedEvent
	var finished []event.AgentFinishedEvent
	bus.Subscribe("agent.launched", func(e event.Event) {
		if le, ok := e.(event.AgentLaunchedEvent); ok {
			launched = append(launched, le)
		}
	})
	bus.Subscribe("agent.finished", func(e event.Event) {
		if fe, ok := e.(event.AgentFinishedEvent); ok {
			finished = append(finished, fe)
		}
	})

	rec, err := r.Launch(newStubAdapter("exit 0"), launchOpts(t, false))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if rec.Status != StatusCompleted || rec.ExitCode != 0 {
		t.Errorf("record = %s/%d, want completed/0", rec.Status, rec.ExitCode)
	}
	if rec.PID <= 0 {
		t.Errorf("PID = %d, want a real pid", rec.PID)
	}
	if rec.LogFile != "" {
		t.Errorf("LogFile = %q, want none for foreground", rec.LogFile)
	}
	if rec.FinishedAt == nil {
		t.Error("FinishedAt not set")
	}
	if rec.Platform != "claude" {
		t.Errorf("Platform = %q, want claude", rec.Platform)
	}

	persisted, err := r.Get(rec.ID)
	if err != nil || persisted == nil {
		t.Fatalf("Get() = %v, %v", persisted, err)
	}
	if persisted.Status != StatusCompleted {
		t.Errorf("persisted status = %s, want completed", persisted.Status)
	}

	if len(launched) != 1 || launched[0].AgentID != rec.ID || launched[0].Background {
		t.Errorf("launched events = %+v", launched)
	}
	if len(finished) != 1 || finished[0].Status != "completed" || finished[0].ExitCode != 0 {
		t.Errorf("finished events = %+v", finished)
	}
}

func TestLaunch_ForegroundFailure(t *testing.T) {
	requireSh(t)
	r, _, _ := newTestRegistry(t)

	rec, err := r.Launch(newStubAdapter("exit 3"), launchOpts(t, false))
	if err != nil {
		t.Fatalf("Launch() error = %v, agent failure belongs in the record", err)
	}
	if rec.Status != StatusFailed || rec.ExitCode != 3 {
		t.Errorf("record = %s/%d, want failed/3", rec.Status, rec.ExitCode)
	}
}

func TestLaunch_Background(t *testing.T) {
	requireSh(t)
	r, _, _ := newTestRegistry(t)

	script := `printf '%s\n' '{"type":"system","subtype":"init","session_id":"sess-1","model":"sonnet"}' '{"type":"result","subtype":"success","is_error":false,"result":"done"}'`
	rec, err := r.Launch(newStubAdapter(script), launchOpts(t, true))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	if rec.Status != StatusRunning {
		t.Errorf("status right after launch = %s, want running", rec.Status)
	}
	if rec.LogFile != r.LogPath(rec.ID) {
		t.Errorf("LogFile = %q, want %q", rec.LogFile, r.LogPath(rec.ID))
	}

	final := waitTerminal(t, r, rec.ID)
	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, want completed from the result line", final.Status)
	}

	data, err := os.ReadFile(rec.LogFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(data) == 0 {
		t.Error("agent log is empty")
	}
}

func TestLaunch_BackgroundDerivesFailure(t *testing.T) {
	requireSh(t)
	r, _, _ := newTestRegistry(t)

	t.Run("error result line", func(t *testing.T) {
		script := `printf '%s\n' '{"type":"result","subtype":"error_during_execution","is_error":true,"result":"boom"}'`
		rec, err := r.Launch(newStubAdapter(script), launchOpts(t, true))
		if err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		final := waitTerminal(t, r, rec.ID)
		if final.Status != StatusFailed {
			t.Errorf("final status = %s, want failed", final.Status)
		}
	})

	t.Run("died without any terminal event", func(t *testing.T) {
		rec, err := r.Launch(newStubAdapter(`echo plain text; exit 1`), launchOpts(t, true))
		if err != nil {
			t.Fatalf("Launch() error = %v", err)
		}
		final := waitTerminal(t, r, rec.ID)
		if final.Status != StatusFailed || final.ExitCode != -1 {
			t.Errorf("final = %s/%d, want failed/-1", final.Status, final.ExitCode)
		}
	})
}

func TestLaunch_Validation(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	adapter := newStubAdapter("exit 0")

	tests := []struct {
		name string
		mod  func(*LaunchOptions)
	}{
		{"empty prompt", func(o *LaunchOptions) { o.Prompt = "  " }},
		{"empty work dir", func(o *LaunchOptions) { o.WorkDir = "" }},
		{"missing work dir", func(o *LaunchOptions) { o.WorkDir = filepath.Join(o.WorkDir, "gone") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := launchOpts(t, false)
			tt.mod(&opts)
			_, err := r.Launch(adapter, opts)
			var valErr *errors.ValidationError
			if !errors.As(err, &valErr) {
				t.Errorf("error = %v, want validation failure", err)
			}
		})
	}

	t.Run("nil adapter", func(t *testing.T) {
		_, err := r.Launch(nil, launchOpts(t, false))
		var valErr *errors.ValidationError
		if !errors.As(err, &valErr) {
			t.Errorf("error = %v, want validation failure", err)
		}
	})
}

func TestLaunch_StartFailure(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	adapter := newStubAdapter("exit 0")
	adapter.bin = filepath.Join(t.TempDir(), "no-such-binary")

	_, err := r.Launch(adapter, launchOpts(t, false))
	if !errors.Is(err, errors.ErrAgentStartFailed) {
		t.Errorf("error does not wrap ErrAgentStartFailed: %v", err)
	}

	records, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 || records[0].Status != StatusFailed {
		t.Errorf("records = %+v, want one failed record", records)
	}
}

func TestGet_Missing(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	rec, err := r.Get("11111111-2222-3333-4444-555555555555")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Get() = %+v, want nil", rec)
	}
}

func TestCancel(t *testing.T) {
	requireSh(t)
	r, _, bus := newTestRegistry(t)

	var finished []event.AgentFinishedEvent
	bus.Subscribe("agent.finished", func(e event.Event) {
		if fe, ok := e.(event.AgentFinishedEvent); ok {
			finished = append(finished, fe)
		}
	})

	rec, err := r.Launch(newStubAdapter("sleep 30"), launchOpts(t, true))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	canceled, err := r.Cancel(rec.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if canceled.Status != StatusOrphaned || canceled.ExitCode != -1 {
		t.Errorf("canceled = %s/%d, want orphaned/-1", canceled.Status, canceled.ExitCode)
	}
	if len(finished) != 1 || finished[0].Status != "orphaned" {
		t.Errorf("finished events = %+v", finished)
	}

	if _, err := r.Cancel(rec.ID); !errors.Is(err, errors.ErrAgentNotRunning) {
		t.Errorf("second Cancel() error = %v, want ErrAgentNotRunning", err)
	}
}

func TestCancel_Unknown(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	_, err := r.Cancel("11111111-2222-3333-4444-555555555555")
	if !errors.Is(err, errors.ErrAgentNotFound) {
		t.Errorf("error does not wrap ErrAgentNotFound: %v", err)
	}
}

func TestList(t *testing.T) {
	requireSh(t)
	r, _, _ := newTestRegistry(t)

	first, err := r.Launch(newStubAdapter("exit 0"), launchOpts(t, false))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	second, err := r.Launch(newStubAdapter("exit 1"), launchOpts(t, false))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}

	records, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("List() returned %d records, want 2", len(records))
	}

	byID := make(map[string]*Record)
	for _, rec := range records {
		byID[rec.ID] = rec
	}
	if got := byID[first.ID]; got == nil || got.Status != StatusCompleted {
		t.Errorf("first record = %+v, want completed", got)
	}
	if got := byID[second.ID]; got == nil || got.Status != StatusFailed {
		t.Errorf("second record = %+v, want failed", got)
	}
}

func TestList_SkipsCorruptRecords(t *testing.T) {
	r, dataDir, _ := newTestRegistry(t)
	testutil.WriteFile(t, dataDir, filepath.Join(AgentsDir, "broken.json"), "{not json")

	records, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("List() = %+v, want empty", records)
	}
}

func TestClean(t *testing.T) {
	requireSh(t)
	r, _, _ := newTestRegistry(t)

	done, err := r.Launch(newStubAdapter("exit 0"), launchOpts(t, false))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	running, err := r.Launch(newStubAdapter("sleep 30"), launchOpts(t, true))
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	t.Cleanup(func() { _, _ = r.Cancel(running.ID) })

	t.Run("age cutoff keeps young records", func(t *testing.T) {
		removed, err := r.Clean(time.Hour)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if removed != 0 {
			t.Errorf("removed = %d, want 0 inside the age cutoff", removed)
		}
	})

	t.Run("zero cutoff removes terminal records only", func(t *testing.T) {
		removed, err := r.Clean(0)
		if err != nil {
			t.Fatalf("Clean() error = %v", err)
		}
		if removed != 1 {
			t.Errorf("removed = %d, want 1", removed)
		}

		if rec, _ := r.Get(done.ID); rec != nil {
			t.Error("terminal record survived Clean(0)")
		}
		if rec, _ := r.Get(running.ID); rec == nil {
			t.Error("running record removed by Clean")
		}
	})
}
