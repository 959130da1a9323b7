// Package shell executes commands for the run engine. The primary
// implementation keeps one long-lived shell under a PTY so environment
// mutations (exports, cd, venv activation) persist across calls within
// a session. A separate manager owns background processes started by
// process-control tools.
package shell

import (
	"context"
	"time"

	apperrors "github.com/TannerBurns/termai/internal/errors"
)

// ErrClosed is returned by executors after Close.
var ErrClosed = apperrors.New("shell executor closed")

// Opts carries per-call execution options. Zero values fall back to the
// executor's configured defaults.
type Opts struct {
	// Timeout overrides the configured command timeout. Negative
	// disables the timeout for this call.
	Timeout time.Duration
}

// Result describes one executed command. Output is the combined
// stdout/stderr stream as seen on the terminal.
type Result struct {
	Command   string
	Output    string
	ExitCode  int
	Success   bool
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
}

// Executor runs one command at a time and reports its outcome. A
// timed-out command yields a Result with TimedOut set, not an error;
// errors are reserved for cancellation and executor failures.
type Executor interface {
	Execute(ctx context.Context, command string, opts Opts) (Result, error)
	Close() error
}
