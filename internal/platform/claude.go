package platform

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gantryhq/gantry/internal/task"
)

// ClaudeAdapter implements Adapter for the Claude Code CLI.
type ClaudeAdapter struct{}

// NewClaudeAdapter creates the Claude adapter.
func NewClaudeAdapter() *ClaudeAdapter {
	return &ClaudeAdapter{}
}

func (c *ClaudeAdapter) Name() Name { return NameClaude }

func (c *ClaudeAdapter) DisplayName() string { return "Claude" }

func (c *ClaudeAdapter) ConfigDir() string { return ".claude" }

func (c *ClaudeAdapter) ImplementBase() []ContextEntry {
	return []ContextEntry{
		{File: "CLAUDE.md", Reason: "repository instructions"},
		{File: "README.md", Reason: "project overview"},
		{File: "docs", Type: EntryTypeDirectory, Reason: "design notes and conventions"},
	}
}

func (c *ClaudeAdapter) ImplementBackend() []ContextEntry {
	return []ContextEntry{
		{File: "src/api", Type: EntryTypeDirectory, Reason: "backend handlers and services"},
		{File: "src/db", Type: EntryTypeDirectory, Reason: "data access and migrations"},
	}
}

func (c *ClaudeAdapter) ImplementFrontend() []ContextEntry {
	return []ContextEntry{
		{File: "src/components", Type: EntryTypeDirectory, Reason: "ui components"},
		{File: "src/styles", Type: EntryTypeDirectory, Reason: "stylesheets and design tokens"},
	}
}

func (c *ClaudeAdapter) CheckContext(devType task.DevType) []ContextEntry {
	entries := []ContextEntry{
		{File: "CLAUDE.md", Reason: "repository instructions"},
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

func (c *ClaudeAdapter) DebugContext(devType task.DevType) []ContextEntry {
	entries := []ContextEntry{
		{File: "CLAUDE.md", Reason: "repository instructions"},
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

func (c *ClaudeAdapter) LaunchCommand(prompt string) (string, []string) {
	return "claude", []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"-p", prompt,
	}
}

// claudeLine is the subset of the stream-json shape the normalizer
// reads. Assistant turns carry content blocks; result lines carry the
// final outcome.
type claudeLine struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	IsError   bool   `json:"is_error"`
	Result    string `json:"result"`
	Message   struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
			Name string `json:"name"`
		} `json:"content"`
	} `json:"message"`
}

func (c *ClaudeAdapter) ParseLogLine(line string) *AgentEvent {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "{") {
		return nil
	}
	var raw claudeLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil
	}

	ev := &AgentEvent{Timestamp: time.Now().UTC(), SessionID: raw.SessionID}
	switch raw.Type {
	case "system":
		if raw.Subtype != "init" {
			return nil
		}
		ev.Type = EventMessage
		ev.Content = "session initialized"
		if raw.Model != "" {
			ev.Content = "session initialized (" + raw.Model + ")"
		}
		return ev
	case "assistant":
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "tool_use":
				ev.Type = EventToolCall
				ev.Content = block.Name
				return ev
			case "text":
				text := strings.TrimSpace(block.Text)
				if text == "" {
					continue
				}
				ev.Type = EventMessage
				ev.Content = text
				return ev
			}
		}
		return nil
	case "result":
		if raw.IsError {
			ev.Type = EventError
		} else {
			ev.Type = EventComplete
		}
		ev.Content = raw.Result
		return ev
	default:
		return nil
	}
}
