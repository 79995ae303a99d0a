package cmd

import (
	"fmt"
	"os"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/journal"
	"github.com/gantryhq/gantry/internal/logging"
	"github.com/gantryhq/gantry/internal/registry"
	"github.com/gantryhq/gantry/internal/task"
	"github.com/gantryhq/gantry/internal/worktree"
)

// cmdEnv bundles the components every command operates on: the resolved
// repository root, the effective configuration, the debug logger and the
// event bus. Commands build one at the start of their run and close it
// on exit.
type cmdEnv struct {
	repoRoot string
	dataDir  string
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
}

func newEnv() (*cmdEnv, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	repoRoot, err := worktree.FindGitRoot(cwd)
	if err != nil {
		return nil, fmt.Errorf("not a git repository (or any parent up to mount point)")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	env := &cmdEnv{
		repoRoot: repoRoot,
		dataDir:  cfg.ResolveDataDir(repoRoot),
		cfg:      cfg,
		logger:   logging.NopLogger(),
		bus:      event.NewBus(),
	}

	if cfg.Logging.Enabled {
		rotation := logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		}
		logger, err := logging.NewRotatingLogger(cfg.ResolveLogFile(repoRoot), cfg.Logging.Level, rotation)
		if err != nil {
			// A broken debug log never blocks the command itself.
			fmt.Fprintf(os.Stderr, "warning: debug log unavailable: %v\n", err)
		} else {
			env.logger = logger
		}
	}

	return env, nil
}

func (e *cmdEnv) Close() {
	_ = e.logger.Close()
}

// requireInit fails with a hint when the data directory does not exist
// yet, so every command after `gantry init` gives the same guidance.
func (e *cmdEnv) requireInit() error {
	if _, err := os.Stat(e.dataDir); os.IsNotExist(err) {
		return fmt.Errorf("gantry is not initialized here, run 'gantry init <your-name>' first")
	}
	return nil
}

func (e *cmdEnv) taskStore() (*task.Store, error) {
	return task.NewStore(e.dataDir, e.logger, e.bus)
}

func (e *cmdEnv) journalManager() *journal.Manager {
	return journal.NewManager(e.dataDir, e.cfg.Journal.RotateLines, e.logger, e.bus)
}

func (e *cmdEnv) worktreeManager() *worktree.Manager {
	return worktree.NewManager(e.repoRoot, e.cfg.Worktree, e.logger, e.bus)
}

func (e *cmdEnv) agentRegistry() (*registry.Registry, error) {
	return registry.NewRegistry(e.dataDir, e.logger, e.bus)
}
