package worktree

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gantryhq/gantry/internal/config"
	"github.com/gantryhq/gantry/internal/errors"
	"github.com/gantryhq/gantry/internal/event"
	"github.com/gantryhq/gantry/internal/logging"
)

// Manager provisions and removes worktrees for one repository.
type Manager struct {
	repoDir    string
	baseDir    string
	copyFiles  []string
	postCreate []string
	executor   CommandExecutor
	logger     *logging.Logger
	bus        *event.Bus
}

// NewManager creates a worktree manager for the repository rooted at
// repoDir (use FindGitRoot to locate it). Provisioning behavior comes
// from the worktree section of the configuration.
func NewManager(repoDir string, cfg config.WorktreeConfig, logger *logging.Logger, bus *event.Bus) *Manager {
	return NewManagerWithExecutor(repoDir, cfg, NewCLICommandExecutor(), logger, bus)
}

// NewManagerWithExecutor creates a Manager that runs git and hook
// commands through the given executor. Tests use this to fake git.
func NewManagerWithExecutor(repoDir string, cfg config.WorktreeConfig, executor CommandExecutor, logger *logging.Logger, bus *event.Bus) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repoDir:    repoDir,
		baseDir:    cfg.ResolveBaseDir(repoDir),
		copyFiles:  cfg.CopyFiles,
		postCreate: cfg.PostCreate,
		executor:   executor,
		logger:     logger,
		bus:        bus,
	}
}

// RepoDir returns the repository root the manager operates on.
func (m *Manager) RepoDir() string {
	return m.repoDir
}

// BaseDir returns the directory new worktrees default into.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// CreateWorktree creates a worktree with a new branch. An empty path
// defaults to <base_dir>/<branch>; an empty baseBranch starts the
// branch from HEAD. The returned outcomes record the best-effort
// bootstrap copy and post-create hook steps; their failures warn but
// never roll the worktree back.
func (m *Manager) CreateWorktree(branch, path, baseBranch string) (*Worktree, []errors.Outcome, error) {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return nil, nil, errors.NewValidationError("branch name cannot be empty").WithField("branch")
	}
	if path == "" {
		path = filepath.Join(m.baseDir, branch)
	}

	args := []string{"worktree", "add", "-b", branch, path}
	if baseBranch != "" {
		args = append(args, baseBranch)
	}
	output, err := m.executor.Run(m.repoDir, "git", args...)
	if err != nil {
		out := string(output)
		cause := err
		msg := "failed to create worktree"
		switch {
		case strings.Contains(out, "already exists") && strings.Contains(out, "branch"):
			msg = "branch already exists"
			cause = errors.ErrBranchExists
		case strings.Contains(out, "already exists"):
			msg = "worktree path already exists"
			cause = errors.ErrWorktreeExists
		}
		return nil, nil, errors.NewGitError(msg, cause).
			WithRepository(m.repoDir).
			WithWorktree(path).
			WithBranch(branch).
			WithGitOutput(out)
	}

	var outcomes []errors.Outcome
	outcomes = append(outcomes, m.copyBootstrapFiles(path)...)
	outcomes = append(outcomes, m.runPostCreateHooks(path)...)
	for _, o := range outcomes {
		m.logger.Outcome(o.Step, o.Severity.String(), o.Err)
	}

	wt := &Worktree{Path: path, Branch: branch}
	if head, err := m.executor.Run(path, "git", "rev-parse", "HEAD"); err == nil {
		wt.Head = strings.TrimSpace(string(head))
	}

	warnings := len(errors.Warnings(outcomes))
	m.logger.Info("worktree created",
		"path", path, "branch", branch, "base", baseBranch, "warnings", warnings)
	m.publish(event.NewWorktreeCreatedEvent(path, branch, warnings))
	return wt, outcomes, nil
}

// RemoveWorktree removes the worktree at path. force removes it even
// with uncommitted changes and, when git cannot remove it cleanly,
// falls back to deleting the directory and pruning stale references.
func (m *Manager) RemoveWorktree(path string, force bool) error {
	branch, _ := m.CurrentBranch(path)

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	output, err := m.executor.Run(m.repoDir, "git", args...)
	if err != nil {
		out := string(output)
		if strings.Contains(out, "is not a working tree") {
			return errors.NewGitError("worktree not found", errors.ErrWorktreeNotFound).
				WithRepository(m.repoDir).
				WithWorktree(path).
				WithGitOutput(out)
		}
		if !force {
			return errors.NewGitError("failed to remove worktree", err).
				WithRepository(m.repoDir).
				WithWorktree(path).
				WithGitOutput(out)
		}

		// Forced removal falls back to manual cleanup.
		_ = os.RemoveAll(path)
		_, _ = m.executor.Run(m.repoDir, "git", "worktree", "prune")
		return errors.NewGitError("failed to remove worktree cleanly", err).
			WithRepository(m.repoDir).
			WithWorktree(path).
			WithGitOutput(out)
	}

	m.logger.Info("worktree removed", "path", path, "branch", branch)
	m.publish(event.NewWorktreeRemovedEvent(path, branch))
	return nil
}

// PruneWorktrees drops stale worktree bookkeeping for directories that
// no longer exist.
func (m *Manager) PruneWorktrees() error {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "prune")
	if err != nil {
		return errors.NewGitError("failed to prune worktrees", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}
	m.logger.Debug("worktrees pruned", "repo", m.repoDir)
	return nil
}

// ListWorktrees returns all non-bare worktrees. The first entry is the
// main worktree.
func (m *Manager) ListWorktrees() ([]Worktree, error) {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.NewGitError("failed to list worktrees", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}
	return parsePorcelain(string(output)), nil
}

// ByBranch returns the worktree checked out on the given branch, or
// nil when no worktree has it.
func (m *Manager) ByBranch(branch string) (*Worktree, error) {
	worktrees, err := m.ListWorktrees()
	if err != nil {
		return nil, err
	}
	for _, wt := range worktrees {
		if wt.Branch == branch {
			return &wt, nil
		}
	}
	return nil, nil
}

// ByPath returns the worktree rooted at the given path, or nil when
// none matches. Paths are compared after cleaning.
func (m *Manager) ByPath(path string) (*Worktree, error) {
	worktrees, err := m.ListWorktrees()
	if err != nil {
		return nil, err
	}
	want := filepath.Clean(path)
	for _, wt := range worktrees {
		if filepath.Clean(wt.Path) == want {
			return &wt, nil
		}
	}
	return nil, nil
}

// CurrentBranch returns the branch checked out at path.
func (m *Manager) CurrentBranch(path string) (string, error) {
	output, err := m.executor.Run(path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to get branch", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// HasUncommittedChanges reports whether the worktree at path has
// staged, unstaged, or untracked changes.
func (m *Manager) HasUncommittedChanges(path string) (bool, error) {
	output, err := m.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("failed to check status", err).
			WithWorktree(path).
			WithGitOutput(string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// MainBranch returns "main" when that branch exists, otherwise
// "master".
func (m *Manager) MainBranch() string {
	if err := m.executor.RunQuiet(m.repoDir, "git", "rev-parse", "--verify", "main"); err == nil {
		return "main"
	}
	return "master"
}

// copyBootstrapFiles copies configured glob matches from the main tree
// into the new worktree, preserving relative paths and file modes.
func (m *Manager) copyBootstrapFiles(dst string) []errors.Outcome {
	if len(m.copyFiles) == 0 {
		return nil
	}

	var outcomes []errors.Outcome
	globs := make([]glob.Glob, 0, len(m.copyFiles))
	for _, pattern := range m.copyFiles {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			outcomes = append(outcomes, errors.WarnStep("compile pattern "+pattern, err))
			continue
		}
		globs = append(globs, g)
	}
	if len(globs) == 0 {
		return outcomes
	}

	matches, err := m.matchRepoFiles(globs)
	if err != nil {
		outcomes = append(outcomes, errors.WarnStep("scan bootstrap files", err))
		return outcomes
	}

	for _, rel := range matches {
		step := "copy " + rel
		target := filepath.Join(dst, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			outcomes = append(outcomes, errors.WarnStep(step, err))
			continue
		}
		if err := copyFile(filepath.Join(m.repoDir, filepath.FromSlash(rel)), target); err != nil {
			outcomes = append(outcomes, errors.WarnStep(step, err))
			continue
		}
		outcomes = append(outcomes, errors.OKStep(step))
	}
	return outcomes
}

// matchRepoFiles walks the main tree and returns slash-separated
// relative paths of regular files matching any glob. The .git
// directory is never entered.
func (m *Manager) matchRepoFiles(globs []glob.Glob) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(m.repoDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(m.repoDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, g := range globs {
			if g.Match(rel) {
				matches = append(matches, rel)
				break
			}
		}
		return nil
	})
	return matches, err
}

// runPostCreateHooks runs configured shell commands inside the new
// worktree, one warning outcome per failed hook.
func (m *Manager) runPostCreateHooks(dst string) []errors.Outcome {
	var outcomes []errors.Outcome
	for i, hook := range m.postCreate {
		step := fmt.Sprintf("post_create[%d]", i)
		output, err := m.executor.Run(dst, "sh", "-c", hook)
		if err != nil {
			outcomes = append(outcomes, errors.WarnStep(step,
				errors.Wrapf(err, "hook %q: %s", hook, strings.TrimSpace(string(output)))))
			continue
		}
		outcomes = append(outcomes, errors.OKStep(step))
	}
	return outcomes
}

// copyFile copies src to dst, preserving the source file's mode.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	if err := dstFile.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode())
}
