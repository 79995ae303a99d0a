package platform

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gantryhq/gantry/internal/task"
)

func manifestFiles(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	for _, phase := range ManifestPhases() {
		data, err := os.ReadFile(ManifestPath(dir, phase))
		if err != nil {
			t.Fatalf("read %s manifest: %v", phase, err)
		}
		files[phase] = data
	}
	return files
}

func TestGenerateContextFiles(t *testing.T) {
	dir := t.TempDir()
	adapter := NewClaudeAdapter()

	if err := GenerateContextFiles(adapter, dir, task.DevTypeBackend); err != nil {
		t.Fatalf("GenerateContextFiles() error = %v", err)
	}

	files := manifestFiles(t, dir)
	for phase, data := range files {
		if len(data) == 0 {
			t.Errorf("%s manifest is empty", phase)
		}
		for i, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
				t.Errorf("%s manifest line %d is not a single json record: %q", phase, i, line)
			}
		}
	}

	// The wire format keeps field order and omits the default type.
	first := strings.SplitN(string(files[PhaseCheck]), "\n", 2)[0]
	want := `{"file":"CLAUDE.md","reason":"repository instructions"}`
	if first != want {
		t.Errorf("first check entry = %s, want %s", first, want)
	}
}

func TestGenerateContextFiles_Idempotent(t *testing.T) {
	dir := t.TempDir()
	adapter := NewClaudeAdapter()

	if err := GenerateContextFiles(adapter, dir, task.DevTypeBackend); err != nil {
		t.Fatalf("first GenerateContextFiles() error = %v", err)
	}
	firstRun := manifestFiles(t, dir)

	if err := GenerateContextFiles(adapter, dir, task.DevTypeBackend); err != nil {
		t.Fatalf("second GenerateContextFiles() error = %v", err)
	}
	secondRun := manifestFiles(t, dir)

	for _, phase := range ManifestPhases() {
		if string(firstRun[phase]) != string(secondRun[phase]) {
			t.Errorf("%s manifest differs between identical runs", phase)
		}
	}
}

func TestGenerateContextFiles_OverwritesPriorContent(t *testing.T) {
	dir := t.TempDir()
	adapter := NewClaudeAdapter()

	if err := GenerateContextFiles(adapter, dir, task.DevTypeFullstack); err != nil {
		t.Fatalf("GenerateContextFiles() error = %v", err)
	}
	if err := AppendEntry(ManifestPath(dir, PhaseCheck), ContextEntry{
		File: "NOTES.md", Reason: "hand-added",
	}); err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	if err := GenerateContextFiles(adapter, dir, task.DevTypeBackend); err != nil {
		t.Fatalf("regenerate error = %v", err)
	}

	entries, err := ReadManifest(ManifestPath(dir, PhaseCheck))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	for _, e := range entries {
		if e.File == "NOTES.md" {
			t.Error("manual entry survived regeneration")
		}
		if e.File == "src/components" {
			t.Error("stale fullstack entry survived regeneration with backend dev type")
		}
	}
}

func TestCheckManifest_BackendScope(t *testing.T) {
	dir := t.TempDir()
	adapter := NewClaudeAdapter()

	if err := GenerateContextFiles(adapter, dir, task.DevTypeBackend); err != nil {
		t.Fatalf("GenerateContextFiles() error = %v", err)
	}

	entries, err := ReadManifest(ManifestPath(dir, PhaseCheck))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}

	byFile := make(map[string]ContextEntry)
	for _, e := range entries {
		byFile[e.File] = e
	}
	for _, want := range []string{"CLAUDE.md", "tests", "src/api"} {
		if _, ok := byFile[want]; !ok {
			t.Errorf("check manifest missing %q, entries %v", want, entries)
		}
	}
	if _, ok := byFile["src/components"]; ok {
		t.Error("check manifest for backend work includes the frontend entry")
	}
}

func TestImplementEntries(t *testing.T) {
	adapter := NewClaudeAdapter()
	base := len(adapter.ImplementBase())
	backend := len(adapter.ImplementBackend())
	frontend := len(adapter.ImplementFrontend())

	tests := []struct {
		name    string
		devType task.DevType
		want    int
	}{
		{"unset dev type gets base only", task.DevType(""), base},
		{"backend", task.DevTypeBackend, base + backend},
		{"test scoped like backend", task.DevTypeTest, base + backend},
		{"frontend", task.DevTypeFrontend, base + frontend},
		{"fullstack gets both", task.DevTypeFullstack, base + backend + frontend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImplementEntries(adapter, tt.devType)
			if len(got) != tt.want {
				t.Errorf("ImplementEntries(%q) returned %d entries, want %d", tt.devType, len(got), tt.want)
			}
			// Base entries always lead, in adapter order.
			for i, e := range adapter.ImplementBase() {
				if got[i] != e {
					t.Errorf("entry %d = %+v, want base entry %+v", i, got[i], e)
				}
			}
		})
	}
}

func TestWriteManifest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context_check.jsonl")
	want := []ContextEntry{
		{File: "README.md", Reason: "overview"},
		{File: "src/api", Type: EntryTypeDirectory, Reason: "handlers"},
	}

	if err := WriteManifest(path, want); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestReadManifest_Missing(t *testing.T) {
	entries, err := ReadManifest(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if entries != nil {
		t.Errorf("entries = %v, want nil for a missing manifest", entries)
	}
}

func TestReadManifest_SkipsUnparseableLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context_debug.jsonl")
	content := `{"file":"README.md","reason":"overview"}
not json at all

{"file":"docs","type":"directory","reason":"notes"}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want the 2 valid records", entries)
	}
	if entries[0].File != "README.md" || entries[1].File != "docs" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestAppendEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context_implement.jsonl")
	if err := WriteManifest(path, []ContextEntry{{File: "README.md", Reason: "overview"}}); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}

	if err := AppendEntry(path, ContextEntry{File: "Makefile", Reason: "build targets"}); err != nil {
		t.Fatalf("AppendEntry() error = %v", err)
	}

	entries, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if len(entries) != 2 || entries[1].File != "Makefile" {
		t.Errorf("entries = %+v, want the appended Makefile last", entries)
	}
}

func TestContextEntryKind(t *testing.T) {
	if got := (ContextEntry{File: "README.md"}).Kind(); got != EntryTypeFile {
		t.Errorf("Kind() = %q, want %q for empty type", got, EntryTypeFile)
	}
	if got := (ContextEntry{File: "docs", Type: EntryTypeDirectory}).Kind(); got != EntryTypeDirectory {
		t.Errorf("Kind() = %q, want %q", got, EntryTypeDirectory)
	}
}
