package platform

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gantryhq/gantry/internal/task"
)

// CodexAdapter implements Adapter for the Codex CLI.
type CodexAdapter struct{}

// NewCodexAdapter creates the Codex adapter.
func NewCodexAdapter() *CodexAdapter {
	return &CodexAdapter{}
}

func (c *CodexAdapter) Name() Name { return NameCodex }

func (c *CodexAdapter) DisplayName() string { return "Codex" }

func (c *CodexAdapter) ConfigDir() string { return ".codex" }

func (c *CodexAdapter) ImplementBase() []ContextEntry {
	return []ContextEntry{
		{File: "AGENTS.md", Reason: "repository instructions"},
		{File: "README.md", Reason: "project overview"},
		{File: "docs", Type: EntryTypeDirectory, Reason: "design notes and conventions"},
	}
}

func (c *CodexAdapter) ImplementBackend() []ContextEntry {
	return []ContextEntry{
		{File: "src/api", Type: EntryTypeDirectory, Reason: "backend handlers and services"},
		{File: "src/db", Type: EntryTypeDirectory, Reason: "data access and migrations"},
	}
}

func (c *CodexAdapter) ImplementFrontend() []ContextEntry {
	return []ContextEntry{
		{File: "src/components", Type: EntryTypeDirectory, Reason: "ui components"},
		{File: "src/styles", Type: EntryTypeDirectory, Reason: "stylesheets and design tokens"},
	}
}

func (c *CodexAdapter) CheckContext(devType task.DevType) []ContextEntry {
	entries := []ContextEntry{
		{File: "AGENTS.md", Reason: "repository instructions"},
		{File: "tests", Type: EntryTypeDirectory, Reason: "suites the change must keep green"},
	}
	if devType.NeedsBackend() {
		entries = append(entries, ContextEntry{
			File: "src/api", Type: EntryTypeDirectory, Reason: "backend code under review",
		})
	}
	if devType.NeedsFrontend() {
		entries = append(entries, ContextEntry{
			File: "src/components", Type: EntryTypeDirectory, Reason: "frontend code under review",
		})
	}
	return entries
}

func (c *CodexAdapter) DebugContext(devType task.DevType) []ContextEntry {
	entries := []ContextEntry{
		{File: "AGENTS.md", Reason: "repository instructions"},
		{File: "logs", Type: EntryTypeDirectory, Reason: "runtime logs and crash output"},
	}
	if devType.NeedsBackend() {
		entries = append(entries, ContextEntry{
			File: "src/api", Type: EntryTypeDirectory, Reason: "backend code under debug",
		})
	}
	if devType.NeedsFrontend() {
		entries = append(entries, ContextEntry{
			File: "src/components", Type: EntryTypeDirectory, Reason: "frontend code under debug",
		})
	}
	return entries
}

func (c *CodexAdapter) LaunchCommand(prompt string) (string, []string) {
	return "codex", []string{"exec", "--json", prompt}
}

// codexLine is the subset of the exec --json JSONL shape the
// normalizer reads. Every line wraps its payload in a msg object
// tagged by type.
type codexLine struct {
	Msg struct {
		Type             string   `json:"type"`
		Message          string   `json:"message"`
		Command          []string `json:"command"`
		LastAgentMessage string   `json:"last_agent_message"`
	} `json:"msg"`
}

func (c *CodexAdapter) ParseLogLine(line string) *AgentEvent {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "{") {
		return nil
	}
	var raw codexLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}

	ev := &AgentEvent{Timestamp: time.Now().UTC()}
	switch raw.Msg.Type {
	case "task_started":
		ev.Type = EventMessage
		ev.Content = "task started"
		return ev
	case "agent_message":
		if raw.Msg.Message == "" {
			return nil
		}
		ev.Type = EventMessage
		ev.Content = raw.Msg.Message
		return ev
	case "exec_command_begin":
		ev.Type = EventToolCall
		ev.Content = strings.Join(raw.Msg.Command, " ")
		return ev
	case "error":
		ev.Type = EventError
		ev.Content = raw.Msg.Message
		return ev
	case "task_complete":
		ev.Type = EventComplete
		ev.Content = raw.Msg.LastAgentMessage
		return ev
	default:
		return nil
	}
}
