package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/gantryhq/gantry/internal/platform"
	"github.com/gantryhq/gantry/internal/registry"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/gantryhq/gantry/internal/util"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Launch and track coding agents",
	Long: `Commands for launching platform agents against tasks and tracking
their lifecycle. Every launch gets a durable record under
.gantry/agents; background agents write their output to a log file
that can be followed live.`,
}

var agentLaunchCmd = &cobra.Command{
	Use:   "launch [task]",
	Short: "Launch an agent for a task phase",
	Long: `Launch the detected platform's agent for a task. The agent runs in
the task's worktree when one is recorded, otherwise in the repository
root. The prompt names the task, the phase and the files the phase's
context manifest puts in scope.

Foreground launches inherit the terminal and block until the agent
exits. Background launches detach and return immediately; follow them
with 'gantry agent logs <id> --follow'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAgentLaunch,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent records",
	RunE:  runAgentList,
}

var agentLogsCmd = &cobra.Command{
	Use:   "logs <agent-id>",
	Short: "Show an agent's canonical event log",
	Long: `Render a background agent's log as canonical events (tool calls,
messages, errors, completion). Agent IDs may be abbreviated to any
unique prefix. With --follow the log is tailed live until the agent
reaches a terminal state.`,
	Args: cobra.ExactArgs(1),
	RunE: runAgentLogs,
}

var agentCancelCmd = &cobra.Command{
	Use:   "cancel <agent-id>",
	Short: "Terminate a running agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentCancel,
}

var agentCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove finished agent records and logs",
	Long: `Remove records and logs of agents that reached a terminal state
longer ago than the configured retention (agent.log_max_age_hours).
With --all, every terminal record is removed regardless of age.`,
	RunE: runAgentClean,
}

var (
	agentLaunchPhase      string
	agentLaunchPrompt     string
	agentLaunchPlatform   string
	agentLaunchBackground bool

	agentLogsFollow bool

	agentCleanAll bool
)

func init() {
	rootCmd.AddCommand(agentCmd)
	agentCmd.AddCommand(agentLaunchCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentLogsCmd)
	agentCmd.AddCommand(agentCancelCmd)
	agentCmd.AddCommand(agentCleanCmd)

	agentLaunchCmd.Flags().StringVar(&agentLaunchPhase, "phase", "", "Phase to work (default: the task's current phase)")
	agentLaunchCmd.Flags().StringVar(&agentLaunchPrompt, "prompt", "", "Override the generated prompt")
	agentLaunchCmd.Flags().StringVar(&agentLaunchPlatform, "platform", "", "Platform to launch (default: detected)")
	agentLaunchCmd.Flags().BoolVarP(&agentLaunchBackground, "background", "b", false, "Detach the agent and return immediately")

	agentLogsCmd.Flags().BoolVarP(&agentLogsFollow, "follow", "f", false, "Follow the log live (like tail -f)")

	agentCleanCmd.Flags().BoolVar(&agentCleanAll, "all", false, "Remove every terminal record regardless of age")
}

func runAgentLaunch(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	store, err := env.taskStore()
	if err != nil {
		return err
	}
	t, err := resolveTask(store, args)
	if err != nil {
		return err
	}

	phase := agentLaunchPhase
	if phase == "" {
		phase = t.Phase()
	}
	if phase == "" {
		return fmt.Errorf("task has no phase plan, pass --phase explicitly")
	}

	configured := env.cfg.Platform
	if agentLaunchPlatform != "" {
		configured = agentLaunchPlatform
	}
	detection, err := platform.Detect(env.repoRoot, configured, env.logger)
	if err != nil {
		return err
	}
	if detection.Source == platform.SourceFallback {
		fmt.Printf("%s\n", warnStyle.Render(fmt.Sprintf(
			"warning: no platform configuration found (probed %s), using %s",
			strings.Join(detection.Probed, ", "), detection.Adapter.Name())))
	}

	workDir := env.repoRoot
	if t.WorktreePath != "" {
		if _, err := os.Stat(t.WorktreePath); err == nil {
			workDir = t.WorktreePath
		} else {
			fmt.Printf("%s\n", warnStyle.Render(fmt.Sprintf(
				"warning: recorded worktree %s is missing, running in the main tree", t.WorktreePath)))
		}
	}

	prompt := agentLaunchPrompt
	if prompt == "" {
		entries, err := platform.ReadManifest(platform.ManifestPath(store.TaskPath(t.ID), phase))
		if err != nil {
			return err
		}
		prompt = buildAgentPrompt(t, phase, entries)
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}

	// A planning task someone launches an agent for is being worked on.
	if t.Status == task.StatusPlanning {
		if _, err := store.UpdateTask(t.ID, map[string]any{"status": string(task.StatusInProgress)}); err != nil {
			env.logger.Warn("failed to move task to in_progress", "task", t.ID, "error", err.Error())
		}
	}

	rec, err := reg.Launch(detection.Adapter, registry.LaunchOptions{
		TaskDir:    t.ID,
		Phase:      phase,
		Prompt:     prompt,
		WorkDir:    workDir,
		Background: agentLaunchBackground,
	})
	if err != nil {
		return err
	}

	if rec.Background {
		fmt.Printf("Launched %s agent %s (pid %d)\n", rec.Platform, shortID(rec.ID), rec.PID)
		fmt.Printf("  Task:  %s (%s)\n", rec.TaskDir, rec.Phase)
		fmt.Printf("  Log:   %s\n", rec.LogFile)
		fmt.Printf("  Watch: gantry agent logs %s --follow\n", shortID(rec.ID))
		return nil
	}

	fmt.Printf("Agent %s finished: %s (exit %d)\n", shortID(rec.ID), renderAgentStatus(rec.Status), rec.ExitCode)
	if rec.Status != registry.StatusCompleted {
		return fmt.Errorf("agent did not complete")
	}
	return nil
}

// buildAgentPrompt composes the launch prompt from the task record and
// the phase's context manifest. Agents run in the worktree, so manifest
// entries are inlined rather than referenced by path.
func buildAgentPrompt(t *task.Task, phase string, entries []platform.ContextEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", t.Title)
	fmt.Fprintf(&b, "Phase: %s\n", phase)
	if t.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", t.Notes)
	}
	if len(t.Subtasks) > 0 {
		b.WriteString("Subtasks:\n")
		for _, sub := range t.Subtasks {
			fmt.Fprintf(&b, "- %s\n", sub)
		}
	}
	if len(entries) > 0 {
		b.WriteString("Consult this context before you start:\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s (%s)\n", e.File, e.Reason)
		}
	}
	return b.String()
}

func runAgentList(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}
	records, err := reg.List()
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Agents (%d)", len(records)))
	if len(records) == 0 {
		fmt.Println("\nNo agent records.")
		return nil
	}

	fmt.Println()
	for _, rec := range records {
		mode := "fg"
		if rec.Background {
			mode = "bg"
		}
		exit := ""
		if rec.Status.Terminal() {
			exit = fmt.Sprintf("exit %d", rec.ExitCode)
		}
		fmt.Printf("  %-10s %-26s %-10s %-8s %-3s %s %-10s %s\n",
			shortID(rec.ID),
			rec.TaskDir,
			rec.Phase,
			rec.Platform,
			mode,
			padANSI(renderAgentStatus(rec.Status), 10),
			exit,
			mutedStyle.Render(util.FormatRelativeTime(rec.StartedAt)))
	}
	return nil
}

// resolveAgent finds a record by full ID or unique prefix.
func resolveAgent(reg *registry.Registry, idOrPrefix string) (*registry.Record, error) {
	rec, err := reg.Get(idOrPrefix)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	records, err := reg.List()
	if err != nil {
		return nil, err
	}
	var matches []*registry.Record
	for _, r := range records {
		if strings.HasPrefix(r.ID, idOrPrefix) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no agent matches %q", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("agent prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

func runAgentLogs(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}
	rec, err := resolveAgent(reg, args[0])
	if err != nil {
		return err
	}
	if rec.LogFile == "" {
		fmt.Printf("Agent %s ran in the foreground and has no log.\n", shortID(rec.ID))
		return nil
	}

	if agentLogsFollow {
		return followAgentLog(reg, rec)
	}
	return printAgentLog(rec)
}

// printAgentLog renders the canonical events already in the log.
func printAgentLog(rec *registry.Record) error {
	adapter, err := platform.ForName(rec.Platform)
	if err != nil {
		return err
	}

	f, err := os.Open(rec.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Log file is gone; it may have been cleaned.")
			return nil
		}
		return fmt.Errorf("failed to open agent log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var shown int
	for scanner.Scan() {
		ev := adapter.ParseLogLine(scanner.Text())
		if ev == nil {
			continue
		}
		fmt.Println(renderAgentEvent(*ev))
		shown++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading agent log: %w", err)
	}
	if shown == 0 {
		fmt.Println("No events yet.")
	}
	return nil
}

// followAgentLog tails the log live until the agent reaches a terminal
// state or the user interrupts.
func followAgentLog(reg *registry.Registry, rec *registry.Record) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, err := reg.Tail(ctx, rec.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Following agent %s... (Ctrl+C to stop)\n\n", shortID(rec.ID))
	for ev := range events {
		fmt.Println(renderAgentEvent(ev))
	}

	final, err := reg.Get(rec.ID)
	if err != nil || final == nil {
		return err
	}
	if final.Status.Terminal() {
		fmt.Printf("\nAgent %s: %s (exit %d)\n", shortID(final.ID), renderAgentStatus(final.Status), final.ExitCode)
	}
	return nil
}

func runAgentCancel(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}
	rec, err := resolveAgent(reg, args[0])
	if err != nil {
		return err
	}

	canceled, err := reg.Cancel(rec.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Canceled agent %s (was pid %d)\n", shortID(canceled.ID), canceled.PID)
	return nil
}

func runAgentClean(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}

	maxAge := env.cfg.Agent.LogMaxAge()
	if agentCleanAll {
		maxAge = 0
	}

	removed, err := reg.Clean(maxAge)
	if err != nil {
		return err
	}

	if removed == 0 {
		fmt.Println("No agent records to clean.")
		return nil
	}
	fmt.Printf("Removed %d agent record(s).\n", removed)
	return nil
}
