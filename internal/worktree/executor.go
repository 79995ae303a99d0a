package worktree

import "os/exec"

// CommandExecutor abstracts external command execution so tests can
// fake git and hook commands without a real repository.
type CommandExecutor interface {
	// Run executes a command in dir and returns its combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command in dir, discarding output.
	RunQuiet(dir string, name string, args ...string) error
}

// CLICommandExecutor runs commands with os/exec.
type CLICommandExecutor struct{}

// NewCLICommandExecutor creates an executor backed by os/exec.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{}
}

// Run executes a command and returns combined stdout and stderr.
func (e *CLICommandExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and reports only the error.
func (e *CLICommandExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}
