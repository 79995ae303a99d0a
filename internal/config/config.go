package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Gantry configuration
type Config struct {
	// Platform pins the agent platform explicitly ("claude" or "codex").
	// Empty means detect from the repository, falling back to claude.
	Platform string `mapstructure:"platform"`
	// DataDir is where Gantry stores tasks, journals and agent records.
	// Relative paths resolve against the repository root (default: ".gantry")
	DataDir  string         `mapstructure:"data_dir"`
	Worktree WorktreeConfig `mapstructure:"worktree"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// WorktreeConfig controls where worktrees are created and how they are
// provisioned after creation
type WorktreeConfig struct {
	// BaseDir is the directory where git worktrees are created.
	// If empty, defaults to a ".worktrees" directory next to the repository
	// root. Can be an absolute path to keep worktrees on another drive.
	// Supports ~ for home directory expansion.
	BaseDir string `mapstructure:"base_dir"`
	// CopyFiles are glob patterns (relative to the repository root) of
	// untracked files to copy into new worktrees, e.g. ".env*" or
	// "config/*.local.json". Copy failures are reported as warnings.
	CopyFiles []string `mapstructure:"copy_files"`
	// PostCreate are shell commands run inside a new worktree after the
	// files are copied, e.g. "npm install". Failures are reported as
	// warnings and do not remove the worktree.
	PostCreate []string `mapstructure:"post_create"`
}

// JournalConfig controls developer journal behavior
type JournalConfig struct {
	// RotateLines is the line count at which a journal file rolls over to
	// the next numbered file (default: 2000)
	RotateLines int `mapstructure:"rotate_lines"`
}

// AgentConfig controls agent process tracking
type AgentConfig struct {
	// LogMaxAgeHours is how long finished agent records and logs are kept
	// before `gantry agent clean` removes them (default: 168, one week).
	// 0 keeps records forever.
	LogMaxAgeHours int `mapstructure:"log_max_age_hours"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// File overrides the log file location. If empty, defaults to
	// "debug.log" inside the data directory.
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// LogMaxAge returns the agent record retention period as a time.Duration
// (0 means keep forever)
func (c *AgentConfig) LogMaxAge() time.Duration {
	return time.Duration(c.LogMaxAgeHours) * time.Hour
}

// ResolveBaseDir returns the resolved worktree base directory.
// If BaseDir is empty, it returns a ".worktrees" directory that is a
// sibling of repoRoot. If BaseDir starts with ~, it expands to the user's
// home directory. A relative BaseDir is resolved relative to repoRoot.
func (w *WorktreeConfig) ResolveBaseDir(repoRoot string) string {
	if w.BaseDir == "" {
		return filepath.Join(filepath.Dir(repoRoot), ".worktrees")
	}
	return resolvePath(w.BaseDir, repoRoot)
}

// ResolveDataDir returns the resolved data directory.
// A relative DataDir (including the ".gantry" default) is resolved
// relative to repoRoot; ~ expands to the user's home directory.
func (c *Config) ResolveDataDir(repoRoot string) string {
	dir := c.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	return resolvePath(dir, repoRoot)
}

// ResolveLogFile returns the resolved debug log path, defaulting to
// "debug.log" inside the data directory.
func (c *Config) ResolveLogFile(repoRoot string) string {
	if c.Logging.File == "" {
		return filepath.Join(c.ResolveDataDir(repoRoot), "debug.log")
	}
	return resolvePath(c.Logging.File, repoRoot)
}

// resolvePath expands ~ and resolves relative paths against baseDir
func resolvePath(path, baseDir string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// DefaultDataDir is the data directory used when data_dir is not set
const DefaultDataDir = ".gantry"

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Platform: "", // Empty means detect, falling back to claude
		DataDir:  DefaultDataDir,
		Worktree: WorktreeConfig{
			BaseDir:    "", // Empty means sibling .worktrees directory
			CopyFiles:  []string{".env", ".env.local"},
			PostCreate: []string{},
		},
		Journal: JournalConfig{
			RotateLines: 2000,
		},
		Agent: AgentConfig{
			LogMaxAgeHours: 168, // One week
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("platform", defaults.Platform)
	viper.SetDefault("data_dir", defaults.DataDir)

	// Worktree defaults
	viper.SetDefault("worktree.base_dir", defaults.Worktree.BaseDir)
	viper.SetDefault("worktree.copy_files", defaults.Worktree.CopyFiles)
	viper.SetDefault("worktree.post_create", defaults.Worktree.PostCreate)

	// Journal defaults
	viper.SetDefault("journal.rotate_lines", defaults.Journal.RotateLines)

	// Agent defaults
	viper.SetDefault("agent.log_max_age_hours", defaults.Agent.LogMaxAgeHours)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ValidPlatforms returns the list of platforms Gantry can drive
func ValidPlatforms() []string {
	return []string{"claude", "codex"}
}

// IsValidPlatform checks if the given platform name is valid
func IsValidPlatform(platform string) bool {
	for _, valid := range ValidPlatforms() {
		if platform == valid {
			return true
		}
	}
	return false
}
