package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/worktree"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Gantry configuration",
	Long: `View or modify Gantry configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the repository's .gantry.yaml.

Keys use dot notation, e.g.:
  gantry config set platform codex
  gantry config set worktree.base_dir ~/worktrees
  gantry config set journal.rotate_lines 1000

Valid keys:
  platform                 - Pin the agent platform (claude, codex)
  data_dir                 - Gantry data directory
  worktree.base_dir        - Where worktrees are created
  journal.rotate_lines     - Journal rotation threshold
  agent.log_max_age_hours  - Agent record retention (0 keeps forever)
  logging.enabled          - Debug logging on/off (true/false)
  logging.level            - Log level (debug/info/warn/error)
  logging.max_size_mb      - Debug log size before rotation
  logging.max_backups      - Rotated debug logs to keep
  logging.compress         - Gzip rotated debug logs (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

// configTarget is where `config set` writes: the repository's
// .gantry.yaml, or the working directory's when outside a repository.
func configTarget() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ".gantry.yaml"
	}
	if root, err := worktree.FindGitRoot(cwd); err == nil {
		return filepath.Join(root, ".gantry.yaml")
	}
	return filepath.Join(cwd, ".gantry.yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Printf("platform: %s\n", orUnset(cfg.Platform))
	fmt.Printf("data_dir: %s\n", cfg.DataDir)

	fmt.Println("worktree:")
	fmt.Printf("  base_dir: %s\n", orUnset(cfg.Worktree.BaseDir))
	fmt.Printf("  copy_files: %v\n", cfg.Worktree.CopyFiles)
	fmt.Printf("  post_create: %v\n", cfg.Worktree.PostCreate)

	fmt.Println("journal:")
	fmt.Printf("  rotate_lines: %d\n", cfg.Journal.RotateLines)

	fmt.Println("agent:")
	fmt.Printf("  log_max_age_hours: %d\n", cfg.Agent.LogMaxAgeHours)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Printf("  compress: %v\n", cfg.Logging.Compress)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"platform":                "string",
		"data_dir":                "string",
		"worktree.base_dir":       "string",
		"journal.rotate_lines":    "int",
		"agent.log_max_age_hours": "int",
		"logging.enabled":         "bool",
		"logging.level":           "string",
		"logging.max_size_mb":     "int",
		"logging.max_backups":     "int",
		"logging.compress":        "bool",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'gantry config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue any
	switch keyType {
	case "string":
		if key == "platform" && value != "" && !config.IsValidPlatform(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidPlatforms(), ", "))
		}
		if key == "logging.level" && !strings.EqualFold(logging.ParseLevel(value), value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.ToLower(strings.Join(logging.ValidLevels(), ", ")))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Set the value in viper and write the merged file
	viper.Set(key, typedValue)

	configFile := configTarget()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if viper.ConfigFileUsed() != "" {
		fmt.Println(viper.ConfigFileUsed())
		return nil
	}
	fmt.Printf("%s (not created yet)\n", configTarget())
	return nil
}
