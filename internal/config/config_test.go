package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Platform defaults to empty, meaning detect
	if cfg.Platform != "" {
		t.Errorf("Platform = %q, want empty", cfg.Platform)
	}

	if cfg.DataDir != ".gantry" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, ".gantry")
	}

	// Verify default worktree config
	if cfg.Worktree.BaseDir != "" {
		t.Errorf("Worktree.BaseDir = %q, want empty", cfg.Worktree.BaseDir)
	}
	if len(cfg.Worktree.CopyFiles) != 2 || cfg.Worktree.CopyFiles[0] != ".env" || cfg.Worktree.CopyFiles[1] != ".env.local" {
		t.Errorf("Worktree.CopyFiles = %v, want [.env .env.local]", cfg.Worktree.CopyFiles)
	}
	if len(cfg.Worktree.PostCreate) != 0 {
		t.Errorf("Worktree.PostCreate should be empty, got %v", cfg.Worktree.PostCreate)
	}

	// Verify default journal config
	if cfg.Journal.RotateLines != 2000 {
		t.Errorf("Journal.RotateLines = %d, want 2000", cfg.Journal.RotateLines)
	}

	// Verify default agent config
	if cfg.Agent.LogMaxAgeHours != 168 {
		t.Errorf("Agent.LogMaxAgeHours = %d, want 168", cfg.Agent.LogMaxAgeHours)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want 10", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging.MaxBackups = %d, want 3", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.Compress {
		t.Error("Logging.Compress should be false by default")
	}
}

func TestAgentConfig_LogMaxAge(t *testing.T) {
	tests := []struct {
		hours    int
		expected time.Duration
	}{
		{168, 168 * time.Hour},
		{24, 24 * time.Hour},
		{1, time.Hour},
		{0, 0},
	}

	for _, tt := range tests {
		cfg := AgentConfig{LogMaxAgeHours: tt.hours}
		result := cfg.LogMaxAge()
		if result != tt.expected {
			t.Errorf("LogMaxAge() with %d hours = %v, want %v", tt.hours, result, tt.expected)
		}
	}
}

func TestWorktreeConfig_ResolveBaseDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("failed to determine home directory: %v", err)
	}

	tests := []struct {
		name     string
		baseDir  string
		repoRoot string
		want     string
	}{
		{
			name:     "empty defaults to sibling .worktrees",
			baseDir:  "",
			repoRoot: "/home/dev/myproject",
			want:     "/home/dev/.worktrees",
		},
		{
			name:     "absolute path used as-is",
			baseDir:  "/mnt/fast/worktrees",
			repoRoot: "/home/dev/myproject",
			want:     "/mnt/fast/worktrees",
		},
		{
			name:     "relative path resolves against repo root",
			baseDir:  "tmp/worktrees",
			repoRoot: "/home/dev/myproject",
			want:     "/home/dev/myproject/tmp/worktrees",
		},
		{
			name:     "tilde expands to home",
			baseDir:  "~/worktrees",
			repoRoot: "/home/dev/myproject",
			want:     filepath.Join(home, "worktrees"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := WorktreeConfig{BaseDir: tt.baseDir}
			got := cfg.ResolveBaseDir(tt.repoRoot)
			if got != tt.want {
				t.Errorf("ResolveBaseDir(%q) = %q, want %q", tt.repoRoot, got, tt.want)
			}
		})
	}
}

func TestConfig_ResolveDataDir(t *testing.T) {
	tests := []struct {
		name     string
		dataDir  string
		repoRoot string
		want     string
	}{
		{
			name:     "default resolves inside repo root",
			dataDir:  "",
			repoRoot: "/home/dev/myproject",
			want:     "/home/dev/myproject/.gantry",
		},
		{
			name:     "relative resolves against repo root",
			dataDir:  ".gantry",
			repoRoot: "/home/dev/myproject",
			want:     "/home/dev/myproject/.gantry",
		},
		{
			name:     "absolute used as-is",
			dataDir:  "/var/lib/gantry",
			repoRoot: "/home/dev/myproject",
			want:     "/var/lib/gantry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DataDir: tt.dataDir}
			got := cfg.ResolveDataDir(tt.repoRoot)
			if got != tt.want {
				t.Errorf("ResolveDataDir(%q) = %q, want %q", tt.repoRoot, got, tt.want)
			}
		})
	}
}

func TestConfig_ResolveLogFile(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		repoRoot string
		want     string
	}{
		{
			name:     "defaults to debug.log in data dir",
			cfg:      Config{DataDir: ".gantry"},
			repoRoot: "/home/dev/myproject",
			want:     "/home/dev/myproject/.gantry/debug.log",
		},
		{
			name:     "explicit file overrides",
			cfg:      Config{DataDir: ".gantry", Logging: LoggingConfig{File: "/tmp/gantry.log"}},
			repoRoot: "/home/dev/myproject",
			want:     "/tmp/gantry.log",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.ResolveLogFile(tt.repoRoot)
			if got != tt.want {
				t.Errorf("ResolveLogFile(%q) = %q, want %q", tt.repoRoot, got, tt.want)
			}
		})
	}
}

func TestValidPlatforms(t *testing.T) {
	platforms := ValidPlatforms()

	expected := []string{"claude", "codex"}
	if len(platforms) != len(expected) {
		t.Errorf("ValidPlatforms() length = %d, want %d", len(platforms), len(expected))
	}

	for i, platform := range expected {
		if platforms[i] != platform {
			t.Errorf("ValidPlatforms()[%d] = %q, want %q", i, platforms[i], platform)
		}
	}
}

func TestIsValidPlatform(t *testing.T) {
	tests := []struct {
		platform string
		valid    bool
	}{
		{"claude", true},
		{"codex", true},
		{"invalid", false},
		{"", false},
		{"CLAUDE", false}, // Case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			result := IsValidPlatform(tt.platform)
			if result != tt.valid {
				t.Errorf("IsValidPlatform(%q) = %v, want %v", tt.platform, result, tt.valid)
			}
		})
	}
}

func TestGet(t *testing.T) {
	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	// Get() should return defaults when no config file exists
	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}

	// Should have default values
	if cfg.DataDir != ".gantry" {
		t.Errorf("Get().DataDir = %q, want %q", cfg.DataDir, ".gantry")
	}
	if cfg.Journal.RotateLines != 2000 {
		t.Errorf("Get().Journal.RotateLines = %d, want 2000", cfg.Journal.RotateLines)
	}
}
