// Package logging provides structured logging for termai agent sessions.
//
// This package wraps Go's log/slog to produce JSON-formatted logs with
// context propagation for debugging agent runs after the fact. Every run
// of the agent loop appends to a per-session log file, so a misbehaving
// run (stuck loops, rejected approvals, lock contention) can be replayed
// from its structured trace.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (session ID, run ID, execution phase, tool)
//   - Size-based log rotation with optional gzip compression
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via the With* methods share the underlying writer safely.
//
// # Basic Usage
//
// Create a logger for a session directory:
//
//	logger, err := logging.NewLogger("/path/to/session", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithSession(sess.ID).WithRun(runID)
//	runLog.Info("step completed", "iteration", 4, "tool", "write_file")
//
// Loggers scoped to an execution phase or tool add those fields to every
// entry:
//
//	phaseLog := runLog.WithPhase("executing")
//	phaseLog.Warn("file lock contended", "path", "main.go", "holder", other)
package logging
