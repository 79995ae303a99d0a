package cmd

import (
	"fmt"
	"strings"

	"github.com/gantryhq/gantry/internal/platform"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/gantryhq/gantry/internal/util"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  `Commands for creating, inspecting, advancing and archiving tasks.`,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a new task",
	Long: `Create a new task directory under .gantry/tasks.

The directory is named <MM-DD>-<slug> from today's date and the title.
The new task starts in the planning status at phase 0, becomes the
current task, and gets its per-phase context manifests generated for
the detected platform.

Examples:
  gantry task create "Fix login bug" --dev-type backend
  gantry task create "Add dark mode" --dev-type frontend --branch dark-mode --worktree`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active tasks",
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task]",
	Short: "Show one task record",
	Long: `Show the full record of a task. The task may be named by its
directory (08-25-fix-login-bug) or its slug (fix-login-bug). Without an
argument the current task is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskShow,
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task>",
	Short: "Update fields of a task record",
	Long: `Shallow-merge the given flags into a task record. Only flags that
are explicitly set are written; the merged record must still pass
schema validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskUpdate,
}

var taskAdvanceCmd = &cobra.Command{
	Use:   "advance [task]",
	Short: "Advance a task to its next phase",
	Long: `Move a task's current phase forward by one step in its phase plan.
Phases never move backward. Without an argument the current task is
advanced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTaskAdvance,
}

var taskArchiveCmd = &cobra.Command{
	Use:   "archive <task>",
	Short: "Mark a task completed and archive it",
	Long: `Mark a task completed and relocate its directory under
.gantry/archive/<YYYY-MM>/. Archived records are immutable. Re-running
an interrupted archive converges on the same result.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskArchive,
}

var taskArchivedCmd = &cobra.Command{
	Use:   "archived",
	Short: "List archived tasks",
	RunE:  runTaskArchived,
}

var taskCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current task",
	RunE:  runTaskCurrent,
}

var taskCurrentSetCmd = &cobra.Command{
	Use:   "set <task>",
	Short: "Point the current-task pointer at a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCurrentSet,
}

var taskCurrentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current-task pointer",
	RunE:  runTaskCurrentClear,
}

var (
	taskCreateDevType  string
	taskCreatePriority string
	taskCreateAssignee string
	taskCreateBranch   string
	taskCreateBase     string
	taskCreateNotes    string
	taskCreatePhases   []string
	taskCreateWorktree bool

	taskListStatus   string
	taskListDevType  string
	taskListAssignee string

	taskUpdateStatus   string
	taskUpdateDevType  string
	taskUpdatePriority string
	taskUpdateAssignee string
	taskUpdateBranch   string
	taskUpdateBase     string
	taskUpdateWtPath   string
	taskUpdateCommit   string
	taskUpdatePRURL    string
	taskUpdateNotes    string

	taskArchivedMonth string
)

func init() {
	rootCmd.AddCommand(taskCmd)
	taskCmd.AddCommand(taskCreateCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskUpdateCmd)
	taskCmd.AddCommand(taskAdvanceCmd)
	taskCmd.AddCommand(taskArchiveCmd)
	taskCmd.AddCommand(taskArchivedCmd)
	taskCmd.AddCommand(taskCurrentCmd)
	taskCurrentCmd.AddCommand(taskCurrentSetCmd)
	taskCurrentCmd.AddCommand(taskCurrentClearCmd)

	taskCreateCmd.Flags().StringVar(&taskCreateDevType, "dev-type", "", "Task classification: backend, frontend, fullstack or test")
	taskCreateCmd.Flags().StringVar(&taskCreatePriority, "priority", "", "Urgency label (low, medium, high)")
	taskCreateCmd.Flags().StringVar(&taskCreateAssignee, "assignee", "", "Task owner (default: the developer identity)")
	taskCreateCmd.Flags().StringVar(&taskCreateBranch, "branch", "", "Isolation branch for the task's work")
	taskCreateCmd.Flags().StringVar(&taskCreateBase, "base", "", "Branch the isolation branch forks from")
	taskCreateCmd.Flags().StringVar(&taskCreateNotes, "notes", "", "Free-form notes")
	taskCreateCmd.Flags().StringSliceVar(&taskCreatePhases, "phases", nil, "Phase plan (default: implement,check,debug)")
	taskCreateCmd.Flags().BoolVar(&taskCreateWorktree, "worktree", false, "Also create a git worktree on the task's branch")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status")
	taskListCmd.Flags().StringVar(&taskListDevType, "dev-type", "", "Filter by dev type")
	taskListCmd.Flags().StringVar(&taskListAssignee, "assignee", "", "Filter by assignee")

	taskUpdateCmd.Flags().StringVar(&taskUpdateStatus, "status", "", "Lifecycle status")
	taskUpdateCmd.Flags().StringVar(&taskUpdateDevType, "dev-type", "", "Task classification")
	taskUpdateCmd.Flags().StringVar(&taskUpdatePriority, "priority", "", "Urgency label")
	taskUpdateCmd.Flags().StringVar(&taskUpdateAssignee, "assignee", "", "Task owner")
	taskUpdateCmd.Flags().StringVar(&taskUpdateBranch, "branch", "", "Isolation branch")
	taskUpdateCmd.Flags().StringVar(&taskUpdateBase, "base", "", "Base branch")
	taskUpdateCmd.Flags().StringVar(&taskUpdateWtPath, "worktree-path", "", "Worktree the task's agents run in")
	taskUpdateCmd.Flags().StringVar(&taskUpdateCommit, "commit", "", "Commit hash the finished work landed as")
	taskUpdateCmd.Flags().StringVar(&taskUpdatePRURL, "pr-url", "", "Pull request URL")
	taskUpdateCmd.Flags().StringVar(&taskUpdateNotes, "notes", "", "Free-form notes")

	taskArchivedCmd.Flags().StringVar(&taskArchivedMonth, "month", "", "Restrict to one archive bucket (YYYY-MM)")
}

// resolveTask finds a task by argument or falls back to the current
// task. It errors when neither resolves.
func resolveTask(store *task.Store, args []string) (*task.Task, error) {
	if len(args) > 0 {
		t, err := store.FindTask(args[0])
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("task not found: %s", args[0])
		}
		return t, nil
	}

	dir, err := store.CurrentTask()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, fmt.Errorf("no current task, name one explicitly or run 'gantry task current set'")
	}
	t, err := store.ReadTask(dir)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("current task %s no longer exists", dir)
	}
	return t, nil
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
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

	t, err := store.CreateTask(args[0], task.CreateOptions{
		DevType:    task.DevType(taskCreateDevType),
		Priority:   task.Priority(taskCreatePriority),
		Assignee:   taskCreateAssignee,
		Branch:     taskCreateBranch,
		BaseBranch: taskCreateBase,
		NextAction: taskCreatePhases,
		Notes:      taskCreateNotes,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created task %s\n", t.ID)
	fmt.Printf("  Title:    %s\n", t.Title)
	fmt.Printf("  Assignee: %s\n", t.Assignee)
	fmt.Printf("  Phases:   %s\n", strings.Join(t.NextAction, " → "))

	// Context manifests are cheap and idempotent, so every new task gets
	// them immediately; `gantry context generate` rewrites them later.
	detection, err := platform.Detect(env.repoRoot, env.cfg.Platform, env.logger)
	if err != nil {
		return err
	}
	if err := platform.GenerateContextFiles(detection.Adapter, store.TaskPath(t.ID), t.DevType); err != nil {
		fmt.Printf("  %s\n", warnStyle.Render(fmt.Sprintf("warning: context generation failed: %v", err)))
	} else {
		fmt.Printf("  Context:  %s manifests written\n", detection.Adapter.Name())
	}

	if taskCreateWorktree {
		if err := createTaskWorktree(env, store, t); err != nil {
			return err
		}
	}
	return nil
}

// createTaskWorktree provisions a worktree for a freshly created task
// and records its path on the task.
func createTaskWorktree(env *cmdEnv, store *task.Store, t *task.Task) error {
	branch := t.Branch
	if branch == "" {
		branch = t.Slug()
	}

	mgr := env.worktreeManager()
	wt, outcomes, err := mgr.CreateWorktree(branch, "", t.BaseBranch)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if o.Failed() {
			fmt.Printf("  %s\n", warnStyle.Render(fmt.Sprintf("warning: %s: %v", o.Step, o.Err)))
		}
	}

	if _, err := store.UpdateTask(t.ID, map[string]any{
		"branch":        branch,
		"worktree_path": wt.Path,
	}); err != nil {
		return err
	}

	fmt.Printf("  Worktree: %s (branch %s)\n", wt.Path, branch)
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
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

	tasks, err := store.ListTasks(task.Filter{
		Status:   task.Status(taskListStatus),
		DevType:  task.DevType(taskListDevType),
		Assignee: taskListAssignee,
	})
	if err != nil {
		return err
	}

	current, err := store.CurrentTask()
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Active Tasks (%d)", len(tasks)))
	if len(tasks) == 0 {
		fmt.Println("\nNo active tasks.")
		fmt.Println("Run 'gantry task create \"<title>\"' to create one.")
		return nil
	}

	fmt.Println()
	for _, t := range tasks {
		marker := " "
		if t.ID == current {
			marker = accentStyle.Render("*")
		}
		devType := string(t.DevType)
		if devType == "" {
			devType = "-"
		}
		fmt.Printf("%s %-28s %s %-10s %-10s %-12s %s\n",
			marker,
			t.ID,
			padANSI(renderTaskStatus(t.Status), 12),
			t.Phase(),
			devType,
			t.Assignee,
			mutedStyle.Render(util.FormatRelativeTime(t.CreatedAt)))
	}
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
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

	printTask(t)
	return nil
}

func printTask(t *task.Task) {
	fmt.Printf("Task: %s\n", t.ID)
	fmt.Printf("  Title:     %s\n", t.Title)
	fmt.Printf("  Status:    %s\n", renderTaskStatus(t.Status))
	if t.DevType != "" {
		fmt.Printf("  Dev type:  %s\n", t.DevType)
	}
	if t.Priority != "" {
		fmt.Printf("  Priority:  %s\n", t.Priority)
	}
	fmt.Printf("  Assignee:  %s\n", t.Assignee)
	if t.Creator != "" && t.Creator != t.Assignee {
		fmt.Printf("  Creator:   %s\n", t.Creator)
	}
	fmt.Printf("  Created:   %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if t.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
	}

	if len(t.NextAction) > 0 {
		var plan []string
		for i, phase := range t.NextAction {
			if i == t.CurrentPhase {
				plan = append(plan, accentStyle.Render("["+phase+"]"))
			} else {
				plan = append(plan, phase)
			}
		}
		fmt.Printf("  Phases:    %s\n", strings.Join(plan, " → "))
	}

	if t.Branch != "" {
		fmt.Printf("  Branch:    %s", t.Branch)
		if t.BaseBranch != "" {
			fmt.Printf(" (from %s)", t.BaseBranch)
		}
		fmt.Println()
	}
	if t.WorktreePath != "" {
		fmt.Printf("  Worktree:  %s\n", t.WorktreePath)
	}
	if t.Commit != "" {
		fmt.Printf("  Commit:    %s\n", t.Commit)
	}
	if t.PRURL != "" {
		fmt.Printf("  PR:        %s\n", t.PRURL)
	}
	if len(t.Subtasks) > 0 {
		fmt.Println("  Subtasks:")
		for _, sub := range t.Subtasks {
			fmt.Printf("    - %s\n", sub)
		}
	}
	if len(t.RelatedFiles) > 0 {
		fmt.Println("  Files:")
		for _, f := range t.RelatedFiles {
			fmt.Printf("    - %s\n", f)
		}
	}
	if t.Notes != "" {
		fmt.Printf("  Notes:     %s\n", t.Notes)
	}
}

func runTaskUpdate(cmd *cobra.Command, args []string) error {
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

	partial := map[string]any{}
	set := func(flag, key string, value string) {
		if cmd.Flags().Changed(flag) {
			partial[key] = value
		}
	}
	set("status", "status", taskUpdateStatus)
	set("dev-type", "dev_type", taskUpdateDevType)
	set("priority", "priority", taskUpdatePriority)
	set("assignee", "assignee", taskUpdateAssignee)
	set("branch", "branch", taskUpdateBranch)
	set("base", "base_branch", taskUpdateBase)
	set("worktree-path", "worktree_path", taskUpdateWtPath)
	set("commit", "commit", taskUpdateCommit)
	set("pr-url", "pr_url", taskUpdatePRURL)
	set("notes", "notes", taskUpdateNotes)

	if len(partial) == 0 {
		return fmt.Errorf("nothing to update, pass at least one field flag")
	}

	updated, err := store.UpdateTask(t.ID, partial)
	if err != nil {
		return err
	}
	if updated == nil {
		return fmt.Errorf("task not found: %s", t.ID)
	}

	fmt.Printf("Updated %s (%d field(s))\n", updated.ID, len(partial))
	return nil
}

func runTaskAdvance(cmd *cobra.Command, args []string) error {
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

	from := t.Phase()
	advanced, err := store.AdvancePhase(t.ID)
	if err != nil {
		return err
	}
	if advanced == nil {
		return fmt.Errorf("task not found: %s", t.ID)
	}

	fmt.Printf("Advanced %s: %s → %s (phase %d/%d)\n",
		advanced.ID, from, advanced.Phase(), advanced.CurrentPhase+1, len(advanced.NextAction))
	return nil
}

func runTaskArchive(cmd *cobra.Command, args []string) error {
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

	dest, err := store.ArchiveTask(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Archived to %s\n", dest)
	return nil
}

func runTaskArchived(cmd *cobra.Command, args []string) error {
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

	tasks, err := store.ListArchivedTasks(taskArchivedMonth)
	if err != nil {
		return err
	}

	title := "Archived Tasks"
	if taskArchivedMonth != "" {
		title = fmt.Sprintf("Archived Tasks (%s)", taskArchivedMonth)
	}
	printHeader(title)

	if len(tasks) == 0 {
		fmt.Println("\nNo archived tasks.")
		return nil
	}

	fmt.Println()
	for _, t := range tasks {
		completed := "unknown"
		if t.CompletedAt != nil {
			completed = t.CompletedAt.Format("2006-01-02")
		}
		fmt.Printf("  %-28s %-12s %-12s %s\n",
			t.ID, completed, t.Assignee, mutedStyle.Render(t.Title))
	}
	return nil
}

func runTaskCurrent(cmd *cobra.Command, args []string) error {
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

	dir, err := store.CurrentTask()
	if err != nil {
		return err
	}
	if dir == "" {
		fmt.Println("No current task.")
		return nil
	}

	t, err := store.ReadTask(dir)
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Printf("Current task %s no longer exists.\n", dir)
		fmt.Println("Run 'gantry task current clear' to drop the pointer.")
		return nil
	}

	fmt.Printf("%s  %s  %s (%s since %s)\n",
		t.ID,
		renderTaskStatus(t.Status),
		t.Title,
		t.Phase(),
		t.CreatedAt.Format("2006-01-02"))
	return nil
}

func runTaskCurrentSet(cmd *cobra.Command, args []string) error {
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
	t, err := store.FindTask(args[0])
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("task not found: %s", args[0])
	}

	if err := store.SetCurrentTask(t.ID); err != nil {
		return err
	}
	fmt.Printf("Current task is now %s\n", t.ID)
	return nil
}

func runTaskCurrentClear(cmd *cobra.Command, args []string) error {
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
	if err := store.ClearCurrentTask(); err != nil {
		return err
	}
	fmt.Println("Current task cleared.")
	return nil
}
