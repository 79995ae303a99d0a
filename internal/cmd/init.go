package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gantryhq/gantry/internal/developer"
	"github.com/gantryhq/gantry/internal/journal"
	"github.com/gantryhq/gantry/internal/platform"
	"github.com/gantryhq/gantry/internal/registry"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "Initialize Gantry in the current repository",
	Long: `Initialize Gantry in the current git repository.
This creates a .gantry directory for task records, journals and agent
state, and records <name> as the developer identity that owns journals
and is the default task assignee.`,
	Args: cobra.ExactArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	env, err := newEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	for _, sub := range []string{
		task.TasksDir,
		task.ArchiveDir,
		journal.JournalsDir,
		registry.AgentsDir,
	} {
		if err := os.MkdirAll(filepath.Join(env.dataDir, sub), 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dev, err := developer.Init(env.dataDir, args[0])
	if err != nil {
		return err
	}

	detection, err := platform.Detect(env.repoRoot, env.cfg.Platform, env.logger)
	if err != nil {
		return err
	}

	env.logger.Info("gantry initialized",
		"developer", dev.Name,
		"data_dir", env.dataDir,
		"platform", string(detection.Adapter.Name()))

	fmt.Println("Gantry initialized successfully!")
	fmt.Printf("Developer: %s\n", dev.Name)
	fmt.Printf("Data directory: %s\n", env.dataDir)
	fmt.Printf("Platform: %s (%s)\n", detection.Adapter.DisplayName(), detection.Source)
	return nil
}
