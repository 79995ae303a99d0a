// Package platform adapts orchestration calls to one concrete agent
// tool. Each supported platform implements the same Adapter contract:
// phase-scoped context entries, launch command construction, and
// normalization of the tool's log stream into canonical events.
// Selection probes the repository root for platform config directories
// and falls back to the default with a loud warning when nothing is
// found.
package platform

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/task"
)

// Name identifies a supported agent platform.
type Name string

const (
	// NameClaude is the Claude Code CLI.
	NameClaude Name = "claude"
	// NameCodex is the Codex CLI.
	NameCodex Name = "codex"
)

// EventType classifies a canonical agent log event.
type EventType string

const (
	// EventToolCall records the agent invoking a tool or command.
	EventToolCall EventType = "tool_call"
	// EventMessage records agent prose output.
	EventMessage EventType = "message"
	// EventError records a failure reported by the agent.
	EventError EventType = "error"
	// EventComplete records the agent finishing its run.
	EventComplete EventType = "complete"
)

// AgentEvent is one normalized agent log event. Every platform's
// stream is translated into this shape; consumers never see
// platform-specific payloads.
type AgentEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	// SessionID is set when the underlying line carries the platform's
	// session identifier.
	SessionID string `json:"session_id,omitempty"`
}

// Adapter provides platform-specific behavior for one agent tool.
type Adapter interface {
	Name() Name
	DisplayName() string
	// ConfigDir is the directory name probed under the repository root
	// to detect this platform.
	ConfigDir() string

	// ImplementBase returns the entries every implement manifest
	// starts with; ImplementBackend and ImplementFrontend return the
	// dev-type additions.
	ImplementBase() []ContextEntry
	ImplementBackend() []ContextEntry
	ImplementFrontend() []ContextEntry
	// CheckContext and DebugContext return the fully composed manifest
	// for their phase.
	CheckContext(devType task.DevType) []ContextEntry
	DebugContext(devType task.DevType) []ContextEntry

	// LaunchCommand builds the argv that runs one agent with the given
	// prompt. Process bookkeeping lives in the registry.
	LaunchCommand(prompt string) (string, []string)
	// ParseLogLine normalizes one raw log line, returning nil for
	// lines that carry no canonical event.
	ParseLogLine(line string) *AgentEvent
}

// All returns every supported adapter in probe order.
func All() []Adapter {
	return []Adapter{NewClaudeAdapter(), NewCodexAdapter()}
}

// Default returns the adapter used when nothing is configured or
// detected.
func Default() Adapter {
	return NewClaudeAdapter()
}

// ForName returns the adapter for a configured platform name.
func ForName(name string) (Adapter, error) {
	switch Name(strings.ToLower(strings.TrimSpace(name))) {
	case NameClaude:
		return NewClaudeAdapter(), nil
	case NameCodex:
		return NewCodexAdapter(), nil
	default:
		return nil, errors.NewPlatformError("unsupported platform", errors.ErrPlatformUnknown).
			WithPlatform(name)
	}
}

// Source records how an adapter was selected.
type Source string

const (
	// SourceConfig means the platform was pinned explicitly.
	SourceConfig Source = "config"
	// SourceProbe means a platform config directory was found.
	SourceProbe Source = "probe"
	// SourceFallback means nothing was configured or detected.
	SourceFallback Source = "fallback"
)

// Detection is the result of platform selection. Probed lists every
// path checked, so fallback warnings can name them.
type Detection struct {
	Adapter Adapter
	Source  Source
	Probed  []string
}

// Detect selects the adapter for a repository. An explicit configured
// name wins; otherwise each adapter's config directory is probed under
// repoRoot in order. When nothing hits, the default platform is used
// and the fallback is logged as a warning naming every probed path,
// since a silent default can mask a misconfigured checkout.
func Detect(repoRoot, configured string, logger *logging.Logger) (*Detection, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	if configured != "" {
		adapter, err := ForName(configured)
		if err != nil {
			return nil, err
		}
		logger.Debug("platform pinned by config", "platform", string(adapter.Name()))
		return &Detection{Adapter: adapter, Source: SourceConfig}, nil
	}

	var probed []string
	for _, adapter := range All() {
		dir := filepath.Join(repoRoot, adapter.ConfigDir())
		probed = append(probed, dir)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		logger.Debug("platform detected", "platform", string(adapter.Name()), "dir", dir)
		return &Detection{Adapter: adapter, Source: SourceProbe, Probed: probed}, nil
	}

	fallback := Default()
	logger.Warn("no platform configuration found, falling back to default",
		"default", string(fallback.Name()),
		"probed", strings.Join(probed, ", "),
		"hint", "set the platform config key to silence this warning")
	return &Detection{Adapter: fallback, Source: SourceFallback, Probed: probed}, nil
}
