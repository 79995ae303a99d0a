package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gantryhq/gantry/internal/platform"
	"github.com/gantryhq/gantry/internal/registry"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/gantryhq/gantry/internal/util"
)

// Styles for list and event rendering. 256-color codes so they degrade
// to plain text on dumb terminals.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// eventContentWidth bounds one rendered agent event line.
const eventContentWidth = 100

func separator() string {
	return strings.Repeat("─", 70)
}

func printHeader(title string) {
	fmt.Println(separator())
	fmt.Println(headerStyle.Render(title))
	fmt.Println(separator())
}

// renderTaskStatus colors a task lifecycle state for list output.
func renderTaskStatus(s task.Status) string {
	switch s {
	case task.StatusPlanning:
		return pendingStyle.Render(string(s))
	case task.StatusInProgress:
		return warnStyle.Render(string(s))
	case task.StatusReview:
		return accentStyle.Render(string(s))
	case task.StatusCompleted:
		return okStyle.Render(string(s))
	default:
		return string(s)
	}
}

// renderAgentStatus colors a registry state for list output.
func renderAgentStatus(s registry.Status) string {
	switch s {
	case registry.StatusLaunched, registry.StatusRunning:
		return warnStyle.Render(string(s))
	case registry.StatusCompleted:
		return okStyle.Render(string(s))
	case registry.StatusFailed:
		return errStyle.Render(string(s))
	case registry.StatusOrphaned:
		return mutedStyle.Render(string(s))
	default:
		return string(s)
	}
}

// renderAgentEvent formats one canonical agent event as a single
// terminal line, ANSI-aware truncated so tool output cannot wrap the
// whole screen.
func renderAgentEvent(ev platform.AgentEvent) string {
	stamp := mutedStyle.Render("[" + ev.Timestamp.Format("15:04:05") + "]")

	var tag string
	switch ev.Type {
	case platform.EventToolCall:
		tag = accentStyle.Render("tool")
	case platform.EventMessage:
		tag = pendingStyle.Render("msg ")
	case platform.EventError:
		tag = errStyle.Render("err ")
	case platform.EventComplete:
		tag = okStyle.Render("done")
	default:
		tag = string(ev.Type)
	}

	content := strings.ReplaceAll(ev.Content, "\n", " ")
	return util.TruncateANSI(fmt.Sprintf("%s %s %s", stamp, tag, content), eventContentWidth)
}

// padANSI pads a styled string to a visual column width. fmt's %-Ns pads
// by byte count, which escape sequences inflate.
func padANSI(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// shortID returns the first uuid segment, enough to disambiguate agents
// in list output while staying scannable.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
