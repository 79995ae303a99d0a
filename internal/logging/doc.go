// Package logging provides structured logging for gantry.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. It is
// designed to help troubleshoot multi-agent orchestration runs by providing
// structured, filterable logs that can be analyzed after the fact.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (task, phase, agent ID, developer)
//   - Log rotation with configurable size limits
//   - Optional gzip compression for rotated logs
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger writing to the data directory's debug log:
//
//	logger, err := logging.NewLogger(".gantry/debug.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("operation completed", "duration_ms", 150)
//	logger.Warn("potential issue", "threshold", 100)
//	logger.Error("operation failed", "error", err.Error())
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	taskLogger := logger.WithTask("08-21-fix-login-bug")
//	phaseLogger := taskLogger.WithPhase("implement")
//	agentLogger := phaseLogger.WithAgent("3f2a91c4")
//
//	// All logs from agentLogger include task, phase and agent_id
//	agentLogger.Info("agent launched", "pid", 4242)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"agent launched","task":"08-21-fix-login-bug","phase":"implement","agent_id":"3f2a91c4","pid":4242}
//
// # Log Rotation
//
// For long-running orchestrations, use rotation to prevent unbounded growth:
//
//	config := logging.RotationConfig{
//	    MaxSizeMB:  10,   // Rotate when file exceeds 10MB
//	    MaxBackups: 3,    // Keep 3 backup files
//	    Compress:   true, // Gzip compress rotated files
//	}
//
//	logger, err := logging.NewRotatingLogger(".gantry/debug.log", "INFO", config)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Rotated files are named: debug.log.1, debug.log.2, etc., where .1 is the
// most recent backup. When compression is enabled, rotated files become
// debug.log.1.gz, etc. This size-based scheme applies only to gantry's own
// debug log; developer journal files rotate by line count and never rename
// already-written files.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: Detailed information for debugging
//   - [LevelInfo]: General operational information (default)
//   - [LevelWarn]: Warning conditions that may need attention
//   - [LevelError]: Error conditions that affect functionality
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings.
//
// # Configuration
//
// The logging system is typically configured via gantry's config file:
//
//	logging:
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 3
package logging
