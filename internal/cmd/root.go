package cmd

import (
	"strings"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "gantry",
	Short: "Task lifecycle and multi-agent context orchestrator",
	Long: `Gantry coordinates multi-phase development tasks across coding agents:
it tracks each task's lifecycle, generates the exact file context each
phase's agent may see, isolates concurrent agents in git worktrees, and
journals completed work sessions.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is .gantry.yaml in the repo or $HOME)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".gantry")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GANTRY")
	// Replace dots with underscores for nested keys in env vars
	// e.g., GANTRY_WORKTREE_BASE_DIR for worktree.base_dir
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
