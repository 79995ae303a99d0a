package cmd

import (
	"fmt"
	"time"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Manage the developer journal",
	Long: `Commands for the per-developer journal of completed work sessions.
Journals are numbered markdown files that roll over at a line threshold;
session numbers stay strictly increasing across every file.`,
}

var journalLogCmd = &cobra.Command{
	Use:   "log <title>",
	Short: "Record a completed work session",
	Long: `Append a session block to the active journal file, rotating to the
next numbered file first if the active one is at its line threshold.

Examples:
  gantry journal log "Fixed the login redirect loop"
  gantry journal log "Shipped dark mode" --commit 4f2a91c --summary "Theme toggle plus persisted preference."`,
	Args: cobra.ExactArgs(1),
	RunE: runJournalLog,
}

var journalStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show journal rotation and session state",
	RunE:  runJournalStatus,
}

var journalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show recent journal sessions",
	RunE:  runJournalShow,
}

var (
	journalDeveloper  string
	journalLogSummary string
	journalLogCommit  string
	journalLogContent string
	journalShowLast   int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalLogCmd)
	journalCmd.AddCommand(journalStatusCmd)
	journalCmd.AddCommand(journalShowCmd)

	journalCmd.PersistentFlags().StringVar(&journalDeveloper, "developer", "", "Journal owner (default: the developer identity)")

	journalLogCmd.Flags().StringVar(&journalLogSummary, "summary", "", "One-paragraph recap of the session")
	journalLogCmd.Flags().StringVar(&journalLogCommit, "commit", "", "Commit hash tied to the session")
	journalLogCmd.Flags().StringVar(&journalLogContent, "content", "", "Free-form detail after the summary")

	journalShowCmd.Flags().IntVarP(&journalShowLast, "last", "n", 5, "Number of sessions to show (0 for all)")
}

// journalOwner resolves whose journal a command operates on.
func journalOwner(env *cmdEnv) (string, error) {
	if journalDeveloper != "" {
		return journalDeveloper, nil
	}
	dev, err := developer.Require(env.dataDir)
	if err != nil {
		return "", err
	}
	return dev.Name, nil
}

func runJournalLog(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	owner, err := journalOwner(env)
	if err != nil {
		return err
	}

	mgr := env.journalManager()
	session, err := mgr.AddSession(owner, journal.Session{
		Title:   args[0],
		Date:    time.Now(),
		Commit:  journalLogCommit,
		Summary: journalLogSummary,
		Content: journalLogContent,
	})
	if err != nil {
		return err
	}

	active, err := mgr.ActiveJournal(owner)
	if err != nil {
		return err
	}

	fmt.Printf("Recorded session %d: %s\n", session.Number, session.Title)
	fmt.Printf("  Journal: %s\n", active)
	return nil
}

func runJournalStatus(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	owner, err := journalOwner(env)
	if err != nil {
		return err
	}

	status, err := env.journalManager().Status(owner)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("Journal for %s", status.Developer))
	fmt.Println()
	if status.FileCount == 0 {
		fmt.Println("No journal yet.")
		fmt.Println("Run 'gantry journal log \"<title>\"' to record the first session.")
		return nil
	}

	fmt.Printf("  Files:        %d\n", status.FileCount)
	fmt.Printf("  Active file:  %s (%d/%d lines)\n", status.ActiveFile, status.ActiveLines, status.RotateLines)
	fmt.Printf("  Sessions:     %d (next number %d)\n", status.Sessions, status.NextNumber)
	if status.LastSession != nil {
		fmt.Printf("  Last session: #%d %s (%s)\n",
			status.LastSession.Number,
			status.LastSession.Title,
			status.LastSession.Date.Format("2006-01-02"))
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	if err := env.requireInit(); err != nil {
		return err
	}

	owner, err := journalOwner(env)
	if err != nil {
		return err
	}

	sessions, err := env.journalManager().Sessions(owner)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		return nil
	}

	if journalShowLast > 0 && len(sessions) > journalShowLast {
		sessions = sessions[len(sessions)-journalShowLast:]
	}

	for _, s := range sessions {
		fmt.Printf("%s %s\n", headerStyle.Render(fmt.Sprintf("#%d %s", s.Number, s.Title)),
			mutedStyle.Render(s.Date.Format("2006-01-02")))
		if s.Commit != "" {
			fmt.Printf("  commit %s\n", s.Commit)
		}
		if s.Summary != "" {
			fmt.Printf("  %s\n", s.Summary)
		}
		fmt.Println()
	}
	return nil
}
