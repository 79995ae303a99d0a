package cmd

import (
	"fmt"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the overall orchestration state",
	Long:  `Display the developer identity, the current task, task counts and running agents.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	printHeader("Gantry Status")
	fmt.Println()

	dev, err := developer.Load(env.dataDir)
	if err != nil {
		return err
	}
	if dev == nil {
		fmt.Println("Developer: (not initialized)")
	} else {
		fmt.Printf("Developer: %s (since %s)\n", dev.Name, dev.InitializedAt.Format("2006-01-02"))
	}

	store, err := env.taskStore()
	if err != nil {
		return err
	}

	current, err := store.CurrentTask()
	if err != nil {
		return err
	}
	if current == "" {
		fmt.Println("Current task: (none)")
	} else if t, err := store.ReadTask(current); err != nil {
		return err
	} else if t == nil {
		fmt.Printf("Current task: %s %s\n", current, warnStyle.Render("(record missing)"))
	} else {
		fmt.Printf("Current task: %s (%s, phase %s)\n", t.ID, renderTaskStatus(t.Status), t.Phase())
	}

	tasks, err := store.ListTasks(task.Filter{})
	if err != nil {
		return err
	}
	counts := map[task.Status]int{}
	for _, t := range tasks {
		counts[t.Status]++
	}
	fmt.Printf("\nTasks: %d active\n", len(tasks))
	for _, s := range task.ValidStatuses() {
		if counts[s] > 0 {
			fmt.Printf("  %-12s %d\n", string(s)+":", counts[s])
		}
	}

	reg, err := env.agentRegistry()
	if err != nil {
		return err
	}
	records, err := reg.List()
	if err != nil {
		return err
	}
	var running int
	for _, rec := range records {
		if !rec.Status.Terminal() {
			running++
		}
	}
	fmt.Printf("\nAgents: %d total, %d running\n", len(records), running)
	if running > 0 {
		for _, rec := range records {
			if rec.Status.Terminal() {
				continue
			}
			fmt.Printf("  %s %s (%s, pid %d)\n",
				shortID(rec.ID), rec.TaskDir, rec.Phase, rec.PID)
		}
	}

	worktrees, err := env.worktreeManager().ListWorktrees()
	if err == nil {
		fmt.Printf("\nWorktrees: %d\n", len(worktrees))
	}

	return nil
}
