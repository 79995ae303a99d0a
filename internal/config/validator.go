package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "journal.rotate_lines")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePlatform()...)
	errors = append(errors, c.validateDataDir()...)
	errors = append(errors, c.validateWorktree()...)
	errors = append(errors, c.validateJournal()...)
	errors = append(errors, c.validateAgent()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePlatform validates the platform key. Empty is valid and means
// detect from the repository.
func (c *Config) validatePlatform() []ValidationError {
	var errors []ValidationError

	if c.Platform != "" && !IsValidPlatform(c.Platform) {
		errors = append(errors, ValidationError{
			Field:   "platform",
			Value:   c.Platform,
			Message: fmt.Sprintf("must be one of: %s (or empty to detect)", strings.Join(ValidPlatforms(), ", ")),
		})
	}

	return errors
}

// validateDataDir validates the data_dir key
func (c *Config) validateDataDir() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.DataDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "data_dir",
			Value:   c.DataDir,
			Message: "cannot be empty",
		})
		return errors
	}

	errors = append(errors, validatePath(c.DataDir, "data_dir")...)

	return errors
}

// validateWorktree validates the WorktreeConfig
func (c *Config) validateWorktree() []ValidationError {
	var errors []ValidationError

	if c.Worktree.BaseDir != "" {
		errors = append(errors, validatePath(c.Worktree.BaseDir, "worktree.base_dir")...)
	}

	// Copy patterns must be non-empty relative globs that actually compile
	for i, pattern := range c.Worktree.CopyFiles {
		fieldName := fmt.Sprintf("worktree.copy_files[%d]", i)

		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "pattern cannot be empty",
			})
			continue
		}

		if strings.HasPrefix(pattern, "/") {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "must be relative to the repository root (remove leading /)",
			})
		}

		if strings.Contains(pattern, "..") {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "cannot contain parent directory references (..)",
			})
		}

		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	for i, command := range c.Worktree.PostCreate {
		if strings.TrimSpace(command) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("worktree.post_create[%d]", i),
				Value:   command,
				Message: "command cannot be empty",
			})
		}
	}

	return errors
}

// validateJournal validates the JournalConfig
func (c *Config) validateJournal() []ValidationError {
	var errors []ValidationError

	if c.Journal.RotateLines <= 0 {
		errors = append(errors, ValidationError{
			Field:   "journal.rotate_lines",
			Value:   c.Journal.RotateLines,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound so a typo does not disable rotation in practice
	const maxRotateLines = 1_000_000
	if c.Journal.RotateLines > maxRotateLines {
		errors = append(errors, ValidationError{
			Field:   "journal.rotate_lines",
			Value:   c.Journal.RotateLines,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRotateLines),
		})
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if c.Agent.LogMaxAgeHours < 0 {
		errors = append(errors, ValidationError{
			Field:   "agent.log_max_age_hours",
			Value:   c.Agent.LogMaxAgeHours,
			Message: "must be non-negative (0 keeps records forever)",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	if c.Logging.File != "" {
		errors = append(errors, validatePath(c.Logging.File, "logging.file")...)
	}

	return errors
}

// validatePath checks a configured filesystem path for invalid characters
// and unreasonable length
func validatePath(path, field string) []ValidationError {
	var errors []ValidationError

	// Null bytes are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	// Most filesystems limit paths to around 4096 bytes
	const maxPathLength = 4096
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
