package platform

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/task"
)

// Entry types. An empty Type means EntryTypeFile.
const (
	EntryTypeFile      = "file"
	EntryTypeDirectory = "directory"
)

// ContextEntry is one record of a context manifest: a path an agent is
// permitted to read for a phase, with the reason it is included.
type ContextEntry struct {
	File   string `json:"file"`
	Type   string `json:"type,omitempty"`
	Reason string `json:"reason"`
}

// Kind returns the entry type, defaulting to file.
func (e ContextEntry) Kind() string {
	if e.Type == "" {
		return EntryTypeFile
	}
	return e.Type
}

// Phases with a context manifest, in generation order.
const (
	PhaseImplement = "implement"
	PhaseCheck     = "check"
	PhaseDebug     = "debug"
)

// ManifestPhases returns the phases GenerateContextFiles writes, in
// order.
func ManifestPhases() []string {
	return []string{PhaseImplement, PhaseCheck, PhaseDebug}
}

// ManifestFileName returns the manifest file name for a phase.
func ManifestFileName(phase string) string {
	return "context_" + phase + ".jsonl"
}

// ManifestPath returns the manifest path for a phase inside a task
// directory.
func ManifestPath(taskDir, phase string) string {
	return filepath.Join(taskDir, ManifestFileName(phase))
}

// ImplementEntries composes the implement manifest for a dev type:
// base entries, plus backend entries for backend-scoped work, plus
// frontend entries for frontend-scoped work. Fullstack work gets both.
func ImplementEntries(a Adapter, devType task.DevType) []ContextEntry {
	entries := append([]ContextEntry{}, a.ImplementBase()...)
	if devType.NeedsBackend() {
		entries = append(entries, a.ImplementBackend()...)
	}
	if devType.NeedsFrontend() {
		entries = append(entries, a.ImplementFrontend()...)
	}
	return entries
}

// GenerateContextFiles writes the three phase manifests into taskDir,
// overwriting any prior content. Output is a pure function of
// (platform, dev type), so regenerating with the same inputs yields
// byte-identical files; manually appended entries do not survive
// regeneration.
func GenerateContextFiles(a Adapter, taskDir string, devType task.DevType) error {
	manifests := []struct {
		phase   string
		entries []ContextEntry
	}{
		{PhaseImplement, ImplementEntries(a, devType)},
		{PhaseCheck, a.CheckContext(devType)},
		{PhaseDebug, a.DebugContext(devType)},
	}

	for _, m := range manifests {
		if err := WriteManifest(ManifestPath(taskDir, m.phase), m.entries); err != nil {
			return errors.NewPlatformError("failed to write context manifest", err).
				WithPlatform(string(a.Name())).
				WithPhase(m.phase)
		}
	}
	return nil
}

// WriteManifest writes entries as one JSON record per line, replacing
// any existing manifest atomically.
func WriteManifest(path string, entries []ContextEntry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return errors.Wrap(err, "failed to encode context entry")
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return atomicWriteFile(path, buf.Bytes(), 0644)
}

// ReadManifest parses a manifest back into entries. A missing file
// yields no entries; lines that do not parse are skipped.
func ReadManifest(path string) ([]ContextEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to open manifest")
	}
	defer f.Close()

	var entries []ContextEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e ContextEntry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}
	return entries, nil
}

// AppendEntry adds one manually curated entry to an existing manifest.
// The entry lasts until the next regeneration.
func AppendEntry(path string, e ContextEntry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "failed to encode context entry")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to open manifest")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "failed to append context entry")
	}
	return nil
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
