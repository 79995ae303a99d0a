// Package worktree provisions and tears down git worktrees so each
// agent works in an isolated checkout.
//
// Creation is a three-step sequence: `git worktree add -b <branch>`,
// then a best-effort copy of configured bootstrap files from the main
// tree, then best-effort post-create shell hooks inside the new
// worktree. The git step is essential and fails the operation; copy and
// hook failures are reported as warning outcomes and never roll the
// worktree back.
//
// All git invocations go through a CommandExecutor so tests can run
// against a fake instead of a real repository.
package worktree

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gantryhq/gantry/internal/errors"
)

// Worktree is one entry parsed from `git worktree list --porcelain`.
type Worktree struct {
	// Path is the worktree's root directory.
	Path string
	// Head is the commit the worktree is checked out at.
	Head string
	// Branch is the checked-out branch name with the refs/heads/ prefix
	// stripped, empty when the worktree is detached.
	Branch string
	// IsMain marks the repository's main worktree. Git lists the main
	// worktree first, so the first non-bare entry gets the flag.
	IsMain bool
}

// Detached reports whether the worktree has no branch checked out.
func (w Worktree) Detached() bool {
	return w.Branch == ""
}

// FindGitRoot walks up from startDir to the directory containing .git,
// which is a directory in a normal checkout and a file inside a
// worktree. It fails with ErrNotGitRepository when the filesystem root
// is reached first.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.NewGitError("not a git repository", errors.ErrNotGitRepository).
				WithRepository(startDir)
		}
		dir = parent
	}
}

// parsePorcelain decodes `git worktree list --porcelain` output.
// Entries are blank-line-delimited attribute lists. Bare entries are
// skipped; the first remaining entry is marked as the main worktree.
func parsePorcelain(output string) []Worktree {
	var worktrees []Worktree
	var cur *Worktree
	bare := false

	flush := func() {
		if cur != nil && cur.Path != "" && !bare {
			worktrees = append(worktrees, *cur)
		}
		cur = nil
		bare = false
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			flush()
			continue
		}
		if path, ok := strings.CutPrefix(line, "worktree "); ok {
			flush()
			cur = &Worktree{Path: path}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case strings.HasPrefix(line, "HEAD "):
			cur.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			cur.Branch = strings.TrimPrefix(ref, "refs/heads/")
		case line == "bare":
			bare = true
		case line == "detached":
			// Branch stays empty.
		}
	}
	flush()

	if len(worktrees) > 0 {
		worktrees[0].IsMain = true
	}
	return worktrees
}
