package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage git worktrees",
	Long: `Commands for the git worktrees that isolate concurrent agents.
Worktrees are created under the configured base directory (default: a
.worktrees directory next to the repository).`,
}

var worktreeCreateCmd = &cobra.Command{
	Use:   "create <branch>",
	Short: "Create a worktree on a new branch",
	Long: `Create a git worktree checked out on a new branch. After the
worktree exists, the configured copy_files globs are copied from the
main tree and the post_create hooks run inside the new worktree.
Copy and hook failures are reported as warnings, never rollbacks.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorktreeCreate,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktrees",
	RunE:  runWorktreeList,
}

var worktreeRemoveCmd = &cobra.Command{
	Use:   "remove <path-or-branch>",
	Short: "Remove a worktree",
	Long: `Remove a worktree by path or by branch name. Worktrees with
uncommitted changes are refused unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runWorktreeRemove,
}

var worktreePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Prune stale worktree bookkeeping",
	RunE:  runWorktreePrune,
}

var (
	worktreeCreatePath  string
	worktreeCreateBase  string
	worktreeRemoveForce bool
)

func init() {
	rootCmd.AddCommand(worktreeCmd)
	worktreeCmd.AddCommand(worktreeCreateCmd)
	worktreeCmd.AddCommand(worktreeListCmd)
	worktreeCmd.AddCommand(worktreeRemoveCmd)
	worktreeCmd.AddCommand(worktreePruneCmd)

	worktreeCreateCmd.Flags().StringVar(&worktreeCreatePath, "path", "", "Worktree directory (default: <base_dir>/<branch>)")
	worktreeCreateCmd.Flags().StringVar(&worktreeCreateBase, "base", "", "Branch to fork from (default: the checked-out branch)")
	worktreeRemoveCmd.Flags().BoolVarP(&worktreeRemoveForce, "force", "f", false, "Remove even with uncommitted changes")
}

func runWorktreeCreate(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	mgr := env.worktreeManager()
	wt, outcomes, err := mgr.CreateWorktree(args[0], worktreeCreatePath, worktreeCreateBase)
	if err != nil {
		return err
	}

	fmt.Printf("Created worktree %s\n", wt.Path)
	fmt.Printf("  Branch: %s\n", wt.Branch)
	for _, o := range outcomes {
		if o.Failed() {
			fmt.Printf("  %s\n", warnStyle.Render(fmt.Sprintf("warning: %s: %v", o.Step, o.Err)))
		} else {
			fmt.Printf("  %s\n", mutedStyle.Render(o.Step+" ok"))
		}
	}
	return nil
}

func runWorktreeList(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	mgr := env.worktreeManager()
	worktrees, err := mgr.ListWorktrees()
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Worktrees (%d)", len(worktrees)))
	fmt.Println()
	for _, wt := range worktrees {
		branch := wt.Branch
		if wt.Detached() {
			branch = mutedStyle.Render("(detached)")
		}
		marker := " "
		if wt.IsMain {
			marker = accentStyle.Render("*")
		}
		head := wt.Head
		if len(head) > 8 {
			head = head[:8]
		}
		fmt.Printf("%s %-40s %s %s\n", marker, wt.Path, padANSI(branch, 24), mutedStyle.Render(head))
	}
	return nil
}

func runWorktreeRemove(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	mgr := env.worktreeManager()

	// Accept a branch name as well as a path.
	target := args[0]
	wt, err := mgr.ByPath(target)
	if err != nil {
		return err
	}
	if wt == nil {
		wt, err = mgr.ByBranch(target)
		if err != nil {
			return err
		}
	}
	if wt == nil {
		return fmt.Errorf("no worktree matches %q", target)
	}
	if wt.IsMain {
		return fmt.Errorf("refusing to remove the main worktree")
	}

	if err := mgr.RemoveWorktree(wt.Path, worktreeRemoveForce); err != nil {
		return err
	}

	fmt.Printf("Removed worktree %s\n", wt.Path)
	return nil
}

func runWorktreePrune(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	mgr := env.worktreeManager()
	if err := mgr.PruneWorktrees(); err != nil {
		return err
	}

	fmt.Println("Pruned stale worktree bookkeeping.")
	return nil
}
