package shell

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/TannerBurns/termai/internal/config"
	apperrors "github.com/TannerBurns/termai/internal/errors"
	"github.com/TannerBurns/termai/internal/logging"
)

// ErrShellExited is returned when the underlying shell process died
// mid-command. The executor starts a fresh shell on the next call.
var ErrShellExited = apperrors.New("shell process exited")

// initTimeout bounds the shell startup handshake.
const initTimeout = 10 * time.Second

// PTYExecutor runs commands in one long-lived shell attached to a PTY.
// Environment mutations persist across calls; commands are serialized.
// The shell starts lazily on first use and is restarted after a timeout
// or crash, losing accumulated environment state.
type PTYExecutor struct {
	program        string
	workdir        string
	outputLimit    int
	defaultTimeout time.Duration
	logger         *logging.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	ptmx   *os.File
	readCh chan []byte
	done   chan struct{}
	closed bool
}

var _ Executor = (*PTYExecutor)(nil)

// NewPTYExecutor creates an executor for the given working directory.
func NewPTYExecutor(cfg *config.Config, workdir string, logger *logging.Logger) *PTYExecutor {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	program := cfg.Shell.Program
	if program == "" {
		program = os.Getenv("SHELL")
	}
	if program == "" {
		program = "/bin/bash"
	}

	return &PTYExecutor{
		program:        program,
		workdir:        workdir,
		outputLimit:    cfg.Shell.OutputLimit,
		defaultTimeout: cfg.Shell.CommandTimeout(),
		logger:         logger.With("component", "shell"),
	}
}

// Execute runs one command and collects its combined output. A command
// timeout produces a Result with TimedOut set and a nil error; parent
// context cancellation aborts with the context error. Either way the
// shell is restarted, so in-flight state does not leak into the next
// command.
func (e *PTYExecutor) Execute(ctx context.Context, command string, opts Opts) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Result{}, ErrClosed
	}
	if err := e.ensureShellLocked(); err != nil {
		return Result{}, err
	}

	timeout := e.defaultTimeout
	switch {
	case opts.Timeout > 0:
		timeout = opts.Timeout
	case opts.Timeout < 0:
		timeout = 0
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.runLocked(ctx, command)
	res.Command = command
	res.Duration = time.Since(start)
	return res, err
}

// Close terminates the shell. Safe to call more than once.
func (e *PTYExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.ptmx != nil {
		_, _ = e.ptmx.WriteString("exit\n")
	}
	e.teardownLocked()
	return nil
}

// ensureShellLocked starts the shell if it is not running and quiets
// it: echo off, prompts cleared. The handshake drains startup banners
// so they never leak into the first command's output.
func (e *PTYExecutor) ensureShellLocked() error {
	if e.ptmx != nil {
		return nil
	}

	cmd := exec.Command(e.program, shellArgs(e.program)...)
	cmd.Dir = e.workdir
	cmd.Env = append(os.Environ(), "TERM=dumb")

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return apperrors.Wrap(err, "start shell")
	}
	// Wide columns keep long lines unwrapped in captured output.
	_ = pty.Setsize(ptmx, &pty.Winsize{Rows: 40, Cols: 200})

	e.cmd = cmd
	e.ptmx = ptmx
	e.readCh = make(chan []byte, 32)
	e.done = make(chan struct{})
	go pump(ptmx, e.readCh, e.done)

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if _, err := e.runLocked(ctx, "stty -echo 2>/dev/null; export PS1= PS2= PROMPT_COMMAND="); err != nil {
		e.teardownLocked()
		return apperrors.Wrap(err, "initialize shell")
	}

	e.logger.Debug("shell started", "program", e.program, "workdir", e.workdir)
	return nil
}

// runLocked writes the command followed by an exit-code marker and
// collects output until the marker comes back.
func (e *PTYExecutor) runLocked(ctx context.Context, command string) (Result, error) {
	marker := fmt.Sprintf("__TERMAI_%s__", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])

	if _, err := fmt.Fprintf(e.ptmx, "%s\nprintf '\\n%s:%%d\\n' $?\n", command, marker); err != nil {
		e.teardownLocked()
		return Result{ExitCode: -1}, apperrors.Wrap(err, "write command")
	}

	return e.collectLocked(ctx, marker)
}

// collectLocked reads shell output line by line until the marker line
// arrives, keeping output within the configured cap.
func (e *PTYExecutor) collectLocked(ctx context.Context, marker string) (Result, error) {
	const flushAt = 64 * 1024

	out := newCappedBuffer(e.outputLimit)
	markerBytes := []byte(marker)
	var lineBuf []byte
	lineStart := true

	for {
		select {
		case <-ctx.Done():
			partial := finishOutput(out, lineBuf)
			e.logger.Warn("command interrupted, restarting shell", "cause", ctx.Err())
			e.teardownLocked()
			if ctx.Err() == context.DeadlineExceeded {
				return Result{Output: partial, ExitCode: -1, TimedOut: true, Truncated: out.Truncated()}, nil
			}
			return Result{Output: partial, ExitCode: -1, Truncated: out.Truncated()}, ctx.Err()

		case data, ok := <-e.readCh:
			if !ok {
				partial := finishOutput(out, lineBuf)
				e.teardownLocked()
				return Result{Output: partial, ExitCode: -1, Truncated: out.Truncated()}, ErrShellExited
			}

			for _, c := range data {
				if c != '\n' {
					lineBuf = append(lineBuf, c)
					if len(lineBuf) >= flushAt {
						_, _ = out.Write(lineBuf)
						lineBuf = lineBuf[:0]
						lineStart = false
					}
					continue
				}

				line := bytes.TrimRight(lineBuf, "\r")
				if lineStart && bytes.HasPrefix(line, markerBytes) {
					code := parseExitCode(line, marker)
					return Result{
						Output:    finishOutput(out, nil),
						ExitCode:  code,
						Success:   code == 0,
						Truncated: out.Truncated(),
					}, nil
				}
				_, _ = out.Write(line)
				_ = out.WriteByte('\n')
				lineBuf = lineBuf[:0]
				lineStart = true
			}
		}
	}
}

// teardownLocked kills the shell's process group and clears state so
// the next Execute starts fresh.
func (e *PTYExecutor) teardownLocked() {
	if e.done != nil {
		close(e.done)
		e.done = nil
	}
	if e.cmd != nil && e.cmd.Process != nil {
		// The shell is its session leader; the negative pid signals the
		// whole group, taking stray children with it.
		_ = syscall.Kill(-e.cmd.Process.Pid, syscall.SIGKILL)
		cmd := e.cmd
		go func() { _ = cmd.Wait() }()
	}
	if e.ptmx != nil {
		_ = e.ptmx.Close()
	}
	e.cmd = nil
	e.ptmx = nil
	e.readCh = nil
}

// pump moves bytes from the PTY to the collector until the PTY closes.
func pump(ptmx *os.File, out chan<- []byte, done <-chan struct{}) {
	defer close(out)
	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case out <- data:
			case <-done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// finishOutput flushes any partial line and normalizes the tail.
func finishOutput(out *cappedBuffer, rest []byte) string {
	if len(rest) > 0 {
		_, _ = out.Write(bytes.TrimRight(rest, "\r"))
	}
	return strings.TrimRight(out.String(), "\n")
}

// parseExitCode extracts the status from a "<marker>:<code>" line.
func parseExitCode(line []byte, marker string) int {
	rest := strings.TrimPrefix(string(line), marker)
	rest = strings.TrimPrefix(rest, ":")
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return -1
	}
	return code
}

// shellArgs suppresses rc files for shells we know, keeping prompts and
// banners out of captured output.
func shellArgs(program string) []string {
	switch filepath.Base(program) {
	case "bash":
		return []string{"--norc", "--noprofile"}
	case "zsh":
		return []string{"--no-rcs"}
	default:
		return nil
	}
}
